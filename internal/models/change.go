package models

import (
	"errors"
	"time"
)

// Backing tables that emit change events
const (
	TableDirectMessages = "chats"
	TableGroupMessages  = "group_chats"
)

// ChangeType is the kind of row change
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent describes a row-level change. It carries only the keys needed
// to decide relevance, never the row content.
type ChangeEvent struct {
	Table      string     `json:"table" validate:"required,oneof=chats group_chats"`
	Type       ChangeType `json:"type" validate:"required,oneof=INSERT UPDATE DELETE"`
	GroupID    string     `json:"groupId,omitempty"`
	SenderID   string     `json:"senderId,omitempty"`
	ReceiverID string     `json:"receiverId,omitempty"`
	At         time.Time  `json:"at"`
}

// Scope filters which change events a subscription receives
type Scope struct {
	Table   string `json:"table"`
	GroupID string `json:"groupId,omitempty"`
	UserA   string `json:"userA,omitempty"`
	UserB   string `json:"userB,omitempty"`
}

var ErrInvalidScope = errors.New("invalid subscription scope")

// DirectScope scopes to the direct conversation between a and b
func DirectScope(a, b string) Scope {
	if b < a {
		a, b = b, a
	}
	return Scope{Table: TableDirectMessages, UserA: a, UserB: b}
}

// GroupScope scopes to the messages of one group
func GroupScope(groupID string) Scope {
	return Scope{Table: TableGroupMessages, GroupID: groupID}
}

// Validate checks the scope is one of the two supported shapes
func (s Scope) Validate() error {
	switch s.Table {
	case TableDirectMessages:
		if s.UserA == "" || s.UserB == "" || s.GroupID != "" {
			return ErrInvalidScope
		}
	case TableGroupMessages:
		if s.GroupID == "" || s.UserA != "" || s.UserB != "" {
			return ErrInvalidScope
		}
	default:
		return ErrInvalidScope
	}
	return nil
}

// Includes reports whether userID is one side of a direct scope
func (s Scope) Includes(userID string) bool {
	return s.UserA == userID || s.UserB == userID
}

// Key returns a canonical string form, stable for either pair ordering
func (s Scope) Key() string {
	if s.Table == TableGroupMessages {
		return s.Table + ":" + s.GroupID
	}
	a, b := s.UserA, s.UserB
	if b < a {
		a, b = b, a
	}
	return s.Table + ":" + a + ":" + b
}

// Matches reports whether ev falls inside the scope
func (s Scope) Matches(ev ChangeEvent) bool {
	if ev.Table != s.Table {
		return false
	}
	switch s.Table {
	case TableGroupMessages:
		return ev.GroupID != "" && ev.GroupID == s.GroupID
	case TableDirectMessages:
		return (ev.SenderID == s.UserA && ev.ReceiverID == s.UserB) ||
			(ev.SenderID == s.UserB && ev.ReceiverID == s.UserA)
	}
	return false
}
