package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chatsync/internal/models"
)

// State is the synchronization state of the active thread
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateSending
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	}
	return "idle"
}

// Notice is a transient, user-visible failure report
type Notice struct {
	Err    error
	Thread Thread
	At     time.Time
}

// Notifier receives notices. Implementations must not call back into the
// Session synchronously.
type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Snapshot is an immutable copy of session state for rendering
type Snapshot struct {
	Self     models.User
	Users    []models.User
	Groups   []models.Group
	Thread   Thread
	Active   bool
	State    State
	Messages []Message
	// Err is the last fetch or send failure on the active thread
	Err error
}

type Option func(*Session)

func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithObserver registers fn to receive a snapshot after every change.
// Snapshots from concurrent operations may arrive out of order; fn should
// re-read Snapshot when ordering matters.
func WithObserver(fn func(Snapshot)) Option {
	return func(s *Session) { s.observer = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator overrides the source of optimistic message identities
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// Session synchronizes one signed-in user's view of the active thread
type Session struct {
	backend  Backend
	bridge   *Bridge
	notifier Notifier
	observer func(Snapshot)
	logger   *log.Logger
	now      func() time.Time
	newID    func() string

	// lifetime of change-triggered reloads
	ctx    context.Context
	cancel context.CancelFunc

	// serializes writes so a reload never races a second in-flight insert
	sendMu sync.Mutex

	mu     sync.Mutex
	closed bool
	self   models.User
	sel    Selection
	joined map[string]bool

	// gen changes whenever the active thread changes. Results captured
	// under an older gen are dropped.
	gen uint64
	// fetchSeq orders reloads within one gen; only the newest result that
	// completes is kept.
	fetchSeq     uint64
	committedSeq uint64
	// minSeq is the first reload allowed to commit. Raised when a write is
	// confirmed so a fetch that started before it cannot drop the message.
	minSeq uint64

	loading    bool
	pending    int
	dirty      bool
	optimistic []Message
	messages   []Message
	lastErr    error
}

func NewSession(backend Backend, feed Feed, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		backend: backend,
		bridge:  NewBridge(feed),
		logger:  log.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
		ctx:     ctx,
		cancel:  cancel,
		joined:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start resolves the signed-in user, loads the directory and selects the
// default thread. Failures of the default selection are reported through
// the notifier only.
func (s *Session) Start(ctx context.Context) error {
	self, err := s.backend.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return err
		}
		return s.report(Thread{}, fmt.Errorf("%w: current user: %w", ErrFetchFailed, err))
	}

	var (
		users  []models.User
		groups []models.Group
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if users, err = s.backend.ListUsers(gctx); err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if groups, err = s.backend.ListGroups(gctx); err != nil {
			return fmt.Errorf("list groups: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return s.report(Thread{}, fmt.Errorf("%w: %w", ErrFetchFailed, err))
	}

	peers := users[:0:0]
	for _, u := range users {
		if u.ID != self.ID {
			peers = append(peers, u)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.self = self
	s.sel.SetDirectory(peers, groups)
	for i := range groups {
		if groups[i].HasMember(self.ID) {
			s.joined[groups[i].ID] = true
		}
	}
	_, hasActive := s.sel.Active()
	def, hasDefault := s.sel.Default()
	s.mu.Unlock()
	s.emit()

	if !hasActive && hasDefault {
		_ = s.Select(ctx, def.ID, def.IsGroup())
	}
	return nil
}

// Select makes the given thread active. A group the user has not joined is
// joined first; if that fails the previous selection stays active and an
// error wrapping ErrJoinFailed is returned. A load failure leaves the new
// thread selected with an empty list and returns an error wrapping
// ErrFetchFailed.
func (s *Session) Select(ctx context.Context, id string, isGroup bool) error {
	t := Thread{Kind: KindDirect, ID: id}
	if isGroup {
		t.Kind = KindGroup
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.self.ID == "" {
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	if cur, ok := s.sel.Active(); ok && cur == t {
		s.mu.Unlock()
		return nil
	}
	needJoin := RequiresMembership(t) && !s.joined[t.ID]
	self := s.self.ID
	s.mu.Unlock()

	if needJoin {
		if err := s.join(ctx, t.ID); err != nil {
			return s.report(t, err)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.sel.activate(t)
	s.resetThreadLocked()
	s.loading = true
	s.mu.Unlock()
	s.emit()

	s.subscribe(ctx, gen, t, self)
	return s.reload(ctx, gen, t)
}

// subscribe points the bridge at t. Failure leaves the thread usable
// without live updates.
func (s *Session) subscribe(ctx context.Context, gen uint64, t Thread, self string) {
	err := s.bridge.Switch(ctx, gen, t.Scope(self),
		func(ev models.ChangeEvent) { s.onChange(gen, ev) },
		func() { s.onFeedLost(gen, t) },
	)
	if err != nil {
		s.report(t, fmt.Errorf("live updates unavailable: %w", err))
	}
}

// Deselect clears the active thread and tears down its subscription
func (s *Session) Deselect() {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.sel.clear()
	s.resetThreadLocked()
	s.mu.Unlock()

	s.bridge.Close(gen)
	s.emit()
}

// Reload refetches the active thread and subscribes again if its change
// feed is not live
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	t, ok := s.sel.Active()
	gen := s.gen
	self := s.self.ID
	s.mu.Unlock()
	if !ok {
		return ErrNoThread
	}
	if _, live := s.bridge.Scope(); !live {
		s.subscribe(ctx, gen, t, self)
	}
	return s.reload(ctx, gen, t)
}

// Send posts body to the active thread. An optimistic entry is visible
// before the write completes; it is replaced by a reload on success and
// removed on failure.
func (s *Session) Send(ctx context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	t, ok := s.sel.Active()
	if !ok {
		s.mu.Unlock()
		return ErrNoThread
	}
	gen := s.gen
	temp := Message{
		ID:         tempPrefix + s.newID(),
		Body:       body,
		CreatedAt:  s.now(),
		SenderID:   s.self.ID,
		SenderName: youName,
		Pending:    true,
	}
	if t.IsGroup() {
		temp.GroupID = t.ID
	} else {
		temp.ReceiverID = t.ID
	}
	s.optimistic = append(s.optimistic, temp)
	s.messages = append(s.messages, temp)
	sortMessages(s.messages)
	s.pending++
	s.mu.Unlock()
	s.emit()

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	err := s.write(ctx, t, body)

	s.mu.Lock()
	current := gen == s.gen
	if current {
		s.pending--
		s.optimistic = without(s.optimistic, temp.ID)
		if err == nil {
			s.minSeq = s.fetchSeq + 1
		}
	}
	if err == nil {
		s.mu.Unlock()
		if current {
			// Failures here are reported by reload; the write itself
			// went through.
			_ = s.reload(ctx, gen, t)
		}
		return nil
	}

	if errors.Is(err, ErrNotAMember) && t.IsGroup() {
		delete(s.joined, t.ID)
	}
	redo := false
	if current {
		s.messages = without(s.messages, temp.ID)
		s.lastErr = err
		redo = s.takeDirtyLocked()
	}
	s.mu.Unlock()
	s.emit()
	s.report(t, err)

	if redo {
		_ = s.reload(ctx, gen, t)
	}
	return err
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Self:     s.self,
		Users:    append([]models.User(nil), s.sel.Users()...),
		Groups:   append([]models.Group(nil), s.sel.Groups()...),
		State:    s.stateLocked(),
		Messages: append([]Message(nil), s.messages...),
		Err:      s.lastErr,
	}
	snap.Thread, snap.Active = s.sel.Active()
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Peer returns the counterpart of the active direct thread
func (s *Session) Peer() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Peer()
}

// Group returns the active group thread's group
func (s *Session) Group() (models.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Group()
}

// Close tears down the subscription and cancels change-triggered reloads
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++
	gen := s.gen
	s.sel.clear()
	s.resetThreadLocked()
	s.mu.Unlock()

	s.cancel()
	s.bridge.Close(gen)
	return nil
}

func (s *Session) join(ctx context.Context, groupID string) error {
	member, err := s.backend.IsMember(ctx, groupID)
	if err != nil {
		return fmt.Errorf("%w: membership of %s: %w", ErrJoinFailed, groupID, err)
	}
	if !member {
		if err := s.backend.JoinGroup(ctx, groupID); err != nil {
			return fmt.Errorf("%w: group %s: %w", ErrJoinFailed, groupID, err)
		}
	}
	s.mu.Lock()
	s.joined[groupID] = true
	s.mu.Unlock()
	return nil
}

func (s *Session) onChange(gen uint64, ev models.ChangeEvent) {
	s.mu.Lock()
	t, ok := s.sel.Active()
	if s.closed || gen != s.gen || !ok || !t.Scope(s.self.ID).Matches(ev) {
		s.mu.Unlock()
		return
	}
	if s.loading || s.pending > 0 {
		s.dirty = true
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	_ = s.reload(ctx, gen, t)
}

func (s *Session) onFeedLost(gen uint64, t Thread) {
	s.mu.Lock()
	current := !s.closed && gen == s.gen
	s.mu.Unlock()
	if current {
		s.report(t, ErrFeedLost)
	}
}

// reload fetches the thread and replaces the list wholesale. Optimistic
// entries still awaiting confirmation are carried over.
func (s *Session) reload(ctx context.Context, gen uint64, t Thread) error {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.fetchSeq++
	seq := s.fetchSeq
	self := s.self.ID
	s.mu.Unlock()

	msgs, err := s.fetch(ctx, t, self)

	s.mu.Lock()
	if gen != s.gen || seq < s.committedSeq || seq < s.minSeq {
		s.mu.Unlock()
		return nil
	}
	s.committedSeq = seq
	s.loading = false
	if err != nil {
		msgs = nil
	}
	msgs = append(msgs, s.optimistic...)
	sortMessages(msgs)
	s.messages = msgs
	s.lastErr = err
	redo := s.takeDirtyLocked()
	s.mu.Unlock()
	s.emit()

	if err != nil {
		return s.report(t, err)
	}
	if redo {
		return s.reload(ctx, gen, t)
	}
	return nil
}

func (s *Session) fetch(ctx context.Context, t Thread, self string) ([]Message, error) {
	if t.IsGroup() {
		rows, err := s.backend.GroupMessages(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: group %s: %w", ErrFetchFailed, t.ID, err)
		}
		return groupThread(rows, t.ID), nil
	}
	rows, err := s.backend.DirectMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: direct messages: %w", ErrFetchFailed, err)
	}
	return directThread(rows, self, t.ID), nil
}

func (s *Session) write(ctx context.Context, t Thread, body string) error {
	var err error
	if t.IsGroup() {
		err = s.backend.SendGroupMessage(ctx, models.NewGroupMessage{GroupID: t.ID, Body: body})
	} else {
		err = s.backend.SendDirectMessage(ctx, models.NewDirectMessage{ReceiverID: t.ID, Body: body})
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

func (s *Session) takeDirtyLocked() bool {
	if !s.dirty || s.loading || s.pending > 0 {
		return false
	}
	s.dirty = false
	return true
}

func (s *Session) resetThreadLocked() {
	s.loading = false
	s.pending = 0
	s.dirty = false
	s.optimistic = nil
	s.messages = nil
	s.lastErr = nil
}

func (s *Session) stateLocked() State {
	if _, ok := s.sel.Active(); !ok {
		return StateIdle
	}
	switch {
	case s.loading:
		return StateLoading
	case s.pending > 0:
		return StateSending
	}
	return StateReady
}

func (s *Session) emit() {
	if s.observer == nil {
		return
	}
	s.observer(s.Snapshot())
}

// report logs err, hands it to the notifier and returns it
func (s *Session) report(t Thread, err error) error {
	s.logger.Printf("chat: %v", err)
	if s.notifier != nil {
		s.notifier.Notify(Notice{Err: err, Thread: t, At: s.now()})
	}
	return err
}

func without(msgs []Message, id string) []Message {
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
