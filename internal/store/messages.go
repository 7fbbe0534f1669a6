package store

import (
	"context"
	"errors"
	"fmt"

	"chatsync/internal/models"

	"github.com/jackc/pgx/v5"
)

func scanGroupMessage(row pgx.Row) (models.GroupMessage, error) {
	var msg models.GroupMessage
	var senderName, senderEmail *string
	if err := row.Scan(&msg.ID, &msg.Body, &msg.CreatedAt, &msg.SenderID, &msg.GroupID, &senderName, &senderEmail); err != nil {
		return models.GroupMessage{}, fmt.Errorf("scan group message: %w", err)
	}

	sender := models.UnknownSender(msg.SenderID)
	if senderName != nil {
		sender.Name = *senderName
	}
	if senderEmail != nil {
		sender.Email = *senderEmail
	}
	msg.Sender = &sender
	return msg, nil
}

// DirectMessagesFor returns every direct message the user sent or received,
// oldest first
func (s *Store) DirectMessagesFor(ctx context.Context, userID string) ([]models.DirectMessage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT
			c.id::text, c.message, c.created_at, c.sender_id::text, c.receiver_id::text,
			s.name, s.email, r.name, r.email
		FROM chats c
		INNER JOIN users s ON s.id = c.sender_id
		INNER JOIN users r ON r.id = c.receiver_id
		WHERE c.sender_id::text = $1 OR c.receiver_id::text = $1
		ORDER BY c.created_at ASC, c.id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list direct messages: %w", translate(err))
	}
	defer rows.Close()

	messages := []models.DirectMessage{}
	for rows.Next() {
		var msg models.DirectMessage
		var sender, receiver models.UserSummary
		err := rows.Scan(
			&msg.ID, &msg.Body, &msg.CreatedAt, &msg.SenderID, &msg.ReceiverID,
			&sender.Name, &sender.Email, &receiver.Name, &receiver.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("scan direct message: %w", err)
		}
		sender.ID = msg.SenderID
		receiver.ID = msg.ReceiverID
		msg.Sender = &sender
		msg.Receiver = &receiver
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GroupMessages returns all messages of a group, oldest first
func (s *Store) GroupMessages(ctx context.Context, groupID string) ([]models.GroupMessage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT gc.id::text, gc.message, gc.created_at, gc.sender_id::text, gc.group_id::text, u.name, u.email
		FROM group_chats gc
		LEFT JOIN users u ON u.id = gc.sender_id
		WHERE gc.group_id::text = $1
		ORDER BY gc.created_at ASC, gc.id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group messages: %w", translate(err))
	}
	defer rows.Close()

	messages := []models.GroupMessage{}
	for rows.Next() {
		msg, err := scanGroupMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// InsertDirectMessage stores a direct message from senderID
func (s *Store) InsertDirectMessage(ctx context.Context, senderID string, in models.NewDirectMessage) (models.DirectMessage, error) {
	var msg models.DirectMessage
	err := s.db.QueryRow(ctx, `
		INSERT INTO chats (message, sender_id, receiver_id)
		VALUES ($1, $2, $3)
		RETURNING id::text, message, created_at, sender_id::text, receiver_id::text
	`, in.Body, senderID, in.ReceiverID).
		Scan(&msg.ID, &msg.Body, &msg.CreatedAt, &msg.SenderID, &msg.ReceiverID)
	if err != nil {
		return models.DirectMessage{}, fmt.Errorf("insert direct message: %w", translate(err))
	}
	return msg, nil
}

// InsertGroupMessage stores a group message. The sender must be a member.
func (s *Store) InsertGroupMessage(ctx context.Context, senderID string, in models.NewGroupMessage) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := s.db.QueryRow(ctx, `
		INSERT INTO group_chats (message, sender_id, group_id)
		SELECT $1, gu.user_id, gu.group_id
		FROM group_users gu
		WHERE gu.group_id::text = $2 AND gu.user_id::text = $3
		RETURNING id::text, message, created_at, sender_id::text, group_id::text
	`, in.Body, in.GroupID, senderID).
		Scan(&msg.ID, &msg.Body, &msg.CreatedAt, &msg.SenderID, &msg.GroupID)
	if err != nil {
		err = translate(err)
		if errors.Is(err, ErrNotFound) {
			return models.GroupMessage{}, fmt.Errorf("insert group message: %w", ErrNotAMember)
		}
		return models.GroupMessage{}, fmt.Errorf("insert group message: %w", err)
	}
	return msg, nil
}
