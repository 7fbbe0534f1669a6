package chat

import (
	"sort"
	"time"

	"chatsync/internal/models"
)

const (
	tempPrefix = "temp-"
	youName    = "You"
)

// Message is a display row for either thread kind
type Message struct {
	ID         string    `json:"id"`
	Body       string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	ReceiverID string    `json:"receiverId,omitempty"`
	GroupID    string    `json:"groupId,omitempty"`
	// Pending marks an optimistic entry that the platform has not confirmed
	Pending bool `json:"pending,omitempty"`
}

// IsTemp reports whether id is an optimistic placeholder identity
func IsTemp(id string) bool {
	return len(id) > len(tempPrefix) && id[:len(tempPrefix)] == tempPrefix
}

func fromDirect(m models.DirectMessage) Message {
	name := ""
	if m.Sender != nil {
		name = m.Sender.Name
	}
	return Message{
		ID:         m.ID,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
		SenderID:   m.SenderID,
		SenderName: name,
		ReceiverID: m.ReceiverID,
	}
}

func fromGroup(m models.GroupMessage) Message {
	sender := models.UnknownSender(m.SenderID)
	if m.Sender != nil && m.Sender.Name != "" {
		sender = *m.Sender
	}
	return Message{
		ID:         m.ID,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
		SenderID:   m.SenderID,
		SenderName: sender.Name,
		GroupID:    m.GroupID,
	}
}

// directThread keeps the messages exchanged between self and peer
func directThread(all []models.DirectMessage, self, peer string) []Message {
	out := make([]Message, 0, len(all))
	for i := range all {
		if all[i].Between(self, peer) {
			out = append(out, fromDirect(all[i]))
		}
	}
	sortMessages(out)
	return out
}

func groupThread(all []models.GroupMessage, groupID string) []Message {
	out := make([]Message, 0, len(all))
	for _, m := range all {
		if m.GroupID == groupID {
			out = append(out, fromGroup(m))
		}
	}
	sortMessages(out)
	return out
}

// sortMessages orders ascending by creation time, ties by ID
func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// Day is one date-separator section of a message list
type Day struct {
	Date     time.Time
	Messages []Message
}

// GroupByDay splits an ordered message list into calendar days in loc
func GroupByDay(msgs []Message, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}
	var days []Day
	for _, m := range msgs {
		t := m.CreatedAt.In(loc)
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		if n := len(days); n > 0 && days[n-1].Date.Equal(date) {
			days[n-1].Messages = append(days[n-1].Messages, m)
			continue
		}
		days = append(days, Day{Date: date, Messages: []Message{m}})
	}
	return days
}
