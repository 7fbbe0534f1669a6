package models

import "time"

// User represents a user in the system
type User struct {
	ID        string    `json:"id" db:"id" validate:"required"`
	Name      string    `json:"name" db:"name" validate:"required"`
	Email     string    `json:"email" db:"email" validate:"required,email"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Password  string    `json:"-" db:"password_hash"` // Never expose in JSON
	CreatedAt time.Time `json:"createdAt" db:"created_at" validate:"required"`
}

// UserSummary is the short form embedded in messages and member lists
type UserSummary struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary converts User to UserSummary
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// UnknownSender is used when a message references a user that no longer resolves
func UnknownSender(id string) UserSummary {
	return UserSummary{ID: id, Name: "Unknown User"}
}
