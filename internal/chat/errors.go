package chat

import "errors"

var (
	// ErrUnauthenticated means there is no signed-in user. Callers redirect to
	// sign-in.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotAMember is returned by the platform when posting to a group the
	// caller has not joined.
	ErrNotAMember = errors.New("not a member of this group")

	// ErrFetchFailed wraps read failures. The message list is cleared and the
	// thread stays selected.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrSendFailed wraps write failures. The optimistic entry is rolled back.
	ErrSendFailed = errors.New("send failed")

	// ErrJoinFailed wraps membership failures. The selection does not change.
	ErrJoinFailed = errors.New("join failed")

	// ErrFeedLost is reported when the change feed for the active thread
	// ends unexpectedly. Reload subscribes again.
	ErrFeedLost = errors.New("live updates lost")

	// ErrNoThread is returned by Send and Reload when nothing is selected.
	ErrNoThread = errors.New("no active thread")

	// ErrEmptyMessage rejects a send whose body is only whitespace.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrClosed is returned by every operation after Session.Close.
	ErrClosed = errors.New("session closed")
)
