package models

import "time"

// Group represents a chat group
type Group struct {
	ID          string         `json:"id" db:"id" validate:"required"`
	Name        string         `json:"name" db:"name" validate:"required"`
	Description string         `json:"description" db:"description"`
	CreatedBy   string         `json:"createdBy" db:"created_by" validate:"required"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at" validate:"required"`
	Members     []GroupMember  `json:"members" validate:"dive"`
	Messages    []GroupMessage `json:"messages" validate:"dive"` // Most recent messages, denormalized
}

// GroupMember represents a user's membership in a group
type GroupMember struct {
	GroupID  string      `json:"groupId" db:"group_id" validate:"required"`
	UserID   string      `json:"userId" db:"user_id" validate:"required"`
	JoinedAt time.Time   `json:"joinedAt" db:"joined_at"`
	User     UserSummary `json:"user"`
}

// HasMember reports whether userID appears in the group's member list
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
