package models

import "time"

// DirectMessage is a message between two users
type DirectMessage struct {
	ID         string       `json:"id" db:"id" validate:"required"`
	Body       string       `json:"message" db:"message"`
	CreatedAt  time.Time    `json:"createdAt" db:"created_at" validate:"required"`
	SenderID   string       `json:"senderId" db:"sender_id" validate:"required"`
	ReceiverID string       `json:"receiverId" db:"receiver_id" validate:"required"`
	Sender     *UserSummary `json:"sender,omitempty"`
	Receiver   *UserSummary `json:"receiver,omitempty"`
}

// Between reports whether the message belongs to the unordered pair {a, b}
func (m *DirectMessage) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// GroupMessage is a message posted to a group
type GroupMessage struct {
	ID        string       `json:"id" db:"id" validate:"required"`
	Body      string       `json:"message" db:"message"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at" validate:"required"`
	SenderID  string       `json:"senderId" db:"sender_id" validate:"required"`
	GroupID   string       `json:"groupId" db:"group_id" validate:"required"`
	Sender    *UserSummary `json:"sender,omitempty"`
}

// NewDirectMessage is the write payload for a direct message
type NewDirectMessage struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Body       string `json:"message" validate:"required,max=4000"`
}

// NewGroupMessage is the write payload for a group message
type NewGroupMessage struct {
	GroupID string `json:"groupId" validate:"required"`
	Body    string `json:"message" validate:"required,max=4000"`
}
