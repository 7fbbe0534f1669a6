package chat

import (
	"sort"

	"chatsync/internal/models"
)

// Kind distinguishes direct threads from group threads
type Kind int

const (
	KindDirect Kind = iota
	KindGroup
)

func (k Kind) String() string {
	if k == KindGroup {
		return "group"
	}
	return "direct"
}

// Thread identifies a conversation. For a direct thread ID is the peer's
// user ID, for a group thread it is the group ID.
type Thread struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (t Thread) IsGroup() bool { return t.Kind == KindGroup }

// Scope returns the change-feed scope for the thread as seen by self
func (t Thread) Scope(self string) models.Scope {
	if t.IsGroup() {
		return models.GroupScope(t.ID)
	}
	return models.DirectScope(self, t.ID)
}

// Selection is the directory of selectable threads plus the active one
type Selection struct {
	users  []models.User
	groups []models.Group
	active *Thread
}

// SetDirectory replaces the known peers and groups. Users are ordered by
// name then ID so the default selection is deterministic.
func (s *Selection) SetDirectory(users []models.User, groups []models.Group) {
	s.users = append([]models.User(nil), users...)
	sort.SliceStable(s.users, func(i, j int) bool {
		if s.users[i].Name != s.users[j].Name {
			return s.users[i].Name < s.users[j].Name
		}
		return s.users[i].ID < s.users[j].ID
	})
	s.groups = append([]models.Group(nil), groups...)
}

func (s *Selection) Users() []models.User   { return s.users }
func (s *Selection) Groups() []models.Group { return s.groups }

// Active returns the active thread, if any
func (s *Selection) Active() (Thread, bool) {
	if s.active == nil {
		return Thread{}, false
	}
	return *s.active, true
}

func (s *Selection) activate(t Thread) { s.active = &t }
func (s *Selection) clear()            { s.active = nil }

// Default is the first peer in directory order
func (s *Selection) Default() (Thread, bool) {
	if len(s.users) == 0 {
		return Thread{}, false
	}
	return Thread{Kind: KindDirect, ID: s.users[0].ID}, true
}

// Peer returns the counterpart user of the active direct thread
func (s *Selection) Peer() (models.User, bool) {
	t, ok := s.Active()
	if !ok || t.IsGroup() {
		return models.User{}, false
	}
	for _, u := range s.users {
		if u.ID == t.ID {
			return u, true
		}
	}
	return models.User{}, false
}

// Group returns the group of the active group thread
func (s *Selection) Group() (models.Group, bool) {
	t, ok := s.Active()
	if !ok || !t.IsGroup() {
		return models.Group{}, false
	}
	return s.lookupGroup(t.ID)
}

func (s *Selection) lookupGroup(id string) (models.Group, bool) {
	for _, g := range s.groups {
		if g.ID == id {
			return g, true
		}
	}
	return models.Group{}, false
}

// RequiresMembership reports whether messages for t may only be read after
// the caller has joined. True for every group thread.
func RequiresMembership(t Thread) bool { return t.IsGroup() }
