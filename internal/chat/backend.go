package chat

import (
	"context"

	"chatsync/internal/models"
)

// Backend is the platform's auth, query and write surface as seen by the
// signed-in user
type Backend interface {
	// CurrentUser returns the signed-in user or ErrUnauthenticated
	CurrentUser(ctx context.Context) (models.User, error)

	// ListUsers returns every other user in a stable order
	ListUsers(ctx context.Context) ([]models.User, error)
	ListGroups(ctx context.Context) ([]models.Group, error)

	// DirectMessages returns every direct message the current user sent or
	// received, across all peers
	DirectMessages(ctx context.Context) ([]models.DirectMessage, error)
	GroupMessages(ctx context.Context, groupID string) ([]models.GroupMessage, error)

	SendDirectMessage(ctx context.Context, msg models.NewDirectMessage) error
	SendGroupMessage(ctx context.Context, msg models.NewGroupMessage) error

	IsMember(ctx context.Context, groupID string) (bool, error)
	// JoinGroup is idempotent: joining an existing membership succeeds
	JoinGroup(ctx context.Context, groupID string) error
}

// Feed is the platform's change-feed service
type Feed interface {
	// Subscribe starts delivering change events for scope. ctx bounds the
	// handshake only; the stream lives until Close. onChange is called from a
	// goroutine owned by the feed, one event at a time.
	Subscribe(ctx context.Context, scope models.Scope, onChange func(models.ChangeEvent)) (Subscription, error)
}

// Subscription is a live change-feed stream
type Subscription interface {
	// Done is closed once the stream has ended, either through Close or
	// because the connection dropped
	Done() <-chan struct{}
	Close() error
}
