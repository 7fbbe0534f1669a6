package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatsync/internal/models"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeBackend is an in-memory platform with switches for failure injection
type fakeBackend struct {
	mu sync.Mutex

	self    models.User
	authErr error
	users   []models.User
	groups  []models.Group
	direct  []models.DirectMessage
	grouped map[string][]models.GroupMessage
	members map[string]map[string]bool
	seq     int

	fetchErr error
	sendErr  error
	joinErr  error

	// when set, direct fetches and sends block until the channel is closed
	directGate chan struct{}
	sendGate   chan struct{}
	// each direct fetch takes the next gate, reads its rows, then waits on it
	fetchGates []chan struct{}
	// each direct send takes the next gate and waits on it before writing
	sendGates []chan struct{}

	directFetches int
	groupFetches  int
	isMemberCalls int
	joinCalls     map[string]int
}

func newFakeBackend() *fakeBackend {
	self := models.User{ID: "u1", Name: "Ana", Email: "ana@example.com"}
	return &fakeBackend{
		self: self,
		users: []models.User{
			self,
			{ID: "u3", Name: "Zoe", Email: "zoe@example.com"},
			{ID: "u2", Name: "Bob", Email: "bob@example.com"},
		},
		groups: []models.Group{
			{ID: "g1", Name: "Unjoined", Members: []models.GroupMember{{GroupID: "g1", UserID: "u3"}}},
			{ID: "g2", Name: "Joined", Members: []models.GroupMember{{GroupID: "g2", UserID: "u1"}}},
		},
		grouped: map[string][]models.GroupMessage{},
		members: map[string]map[string]bool{
			"g1": {"u3": true},
			"g2": {"u1": true},
		},
		joinCalls: map[string]int{},
	}
}

func (f *fakeBackend) at(n int) time.Time { return base.Add(time.Duration(n) * time.Minute) }

func (f *fakeBackend) addDirect(from, to, body string, minute int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.direct = append(f.direct, models.DirectMessage{
		ID: fmt.Sprintf("d%d", f.seq), Body: body, CreatedAt: f.at(minute),
		SenderID: from, ReceiverID: to,
	})
}

func (f *fakeBackend) addGroup(groupID, from, body string, minute int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.grouped[groupID] = append(f.grouped[groupID], models.GroupMessage{
		ID: fmt.Sprintf("gm%d", f.seq), Body: body, CreatedAt: f.at(minute),
		SenderID: from, GroupID: groupID,
	})
}

func (f *fakeBackend) counts() (direct, group int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.directFetches, f.groupFetches
}

func (f *fakeBackend) CurrentUser(ctx context.Context) (models.User, error) {
	if f.authErr != nil {
		return models.User{}, f.authErr
	}
	return f.self, nil
}

func (f *fakeBackend) ListUsers(ctx context.Context) ([]models.User, error) {
	return f.users, nil
}

func (f *fakeBackend) ListGroups(ctx context.Context) ([]models.Group, error) {
	return f.groups, nil
}

func (f *fakeBackend) DirectMessages(ctx context.Context) ([]models.DirectMessage, error) {
	f.mu.Lock()
	f.directFetches++
	gate := f.directGate
	if len(f.fetchGates) > 0 {
		gate = f.fetchGates[0]
		f.fetchGates = f.fetchGates[1:]
	}
	err := f.fetchErr
	rows := append([]models.DirectMessage(nil), f.direct...)
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func newGates(n int) []chan struct{} {
	gates := make([]chan struct{}, n)
	for i := range gates {
		gates[i] = make(chan struct{})
	}
	return gates
}

func (f *fakeBackend) gateFetches(n int) []chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gates := newGates(n)
	f.fetchGates = append(f.fetchGates, gates...)
	return gates
}

func (f *fakeBackend) gateSends(n int) []chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gates := newGates(n)
	f.sendGates = append(f.sendGates, gates...)
	return gates
}

func (f *fakeBackend) GroupMessages(ctx context.Context, groupID string) ([]models.GroupMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupFetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if !f.members[groupID][f.self.ID] {
		return nil, ErrNotAMember
	}
	return append([]models.GroupMessage(nil), f.grouped[groupID]...), nil
}

func (f *fakeBackend) SendDirectMessage(ctx context.Context, msg models.NewDirectMessage) error {
	f.mu.Lock()
	gate := f.sendGate
	if len(f.sendGates) > 0 {
		gate = f.sendGates[0]
		f.sendGates = f.sendGates[1:]
	}
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.addDirect(f.self.ID, msg.ReceiverID, msg.Body, 30)
	return nil
}

func (f *fakeBackend) SendGroupMessage(ctx context.Context, msg models.NewGroupMessage) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	member := f.members[msg.GroupID][f.self.ID]
	f.mu.Unlock()
	if !member {
		return ErrNotAMember
	}
	f.addGroup(msg.GroupID, f.self.ID, msg.Body, 30)
	return nil
}

func (f *fakeBackend) IsMember(ctx context.Context, groupID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isMemberCalls++
	return f.members[groupID][f.self.ID], nil
}

func (f *fakeBackend) JoinGroup(ctx context.Context, groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinCalls[groupID]++
	if f.joinErr != nil {
		return f.joinErr
	}
	if f.members[groupID] == nil {
		f.members[groupID] = map[string]bool{}
	}
	f.members[groupID][f.self.ID] = true
	return nil
}

// fakeFeed delivers every published event to every live subscription and
// leaves scope filtering to the bridge
type fakeFeed struct {
	mu           sync.Mutex
	subs         map[*fakeSub]struct{}
	subscribeErr error
	opened       int
}

type fakeSub struct {
	feed  *fakeFeed
	scope models.Scope
	fn    func(models.ChangeEvent)
	done  chan struct{}
	once  sync.Once
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: map[*fakeSub]struct{}{}}
}

func (f *fakeFeed) Subscribe(ctx context.Context, scope models.Scope, fn func(models.ChangeEvent)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := &fakeSub{feed: f, scope: scope, fn: fn, done: make(chan struct{})}
	f.subs[sub] = struct{}{}
	f.opened++
	return sub, nil
}

func (s *fakeSub) Done() <-chan struct{} { return s.done }

func (s *fakeSub) Close() error {
	s.feed.mu.Lock()
	delete(s.feed.subs, s)
	s.feed.mu.Unlock()
	s.once.Do(func() { close(s.done) })
	return nil
}

// drop ends every live stream as a lost connection would
func (f *fakeFeed) drop() {
	f.mu.Lock()
	var subs []*fakeSub
	for s := range f.subs {
		subs = append(subs, s)
		delete(f.subs, s)
	}
	f.mu.Unlock()
	for _, s := range subs {
		s.once.Do(func() { close(s.done) })
	}
}

func (f *fakeFeed) live() []models.Scope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Scope
	for s := range f.subs {
		out = append(out, s.scope)
	}
	return out
}

func (f *fakeFeed) publish(ev models.ChangeEvent) {
	f.mu.Lock()
	var fns []func(models.ChangeEvent)
	for s := range f.subs {
		fns = append(fns, s.fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeLog) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}
