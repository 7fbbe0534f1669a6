package store

import (
	"context"
	"fmt"

	"chatsync/internal/models"

	"github.com/jackc/pgx/v5"
)

// CreateGroup creates a group and adds the creator as its first member
func (s *Store) CreateGroup(ctx context.Context, creatorID, name, description string) (models.Group, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return models.Group{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var group models.Group
	err = tx.QueryRow(ctx, `
		INSERT INTO groups (name, description, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, created_by, created_at
	`, name, description, creatorID).
		Scan(&group.ID, &group.Name, &group.Description, &group.CreatedBy, &group.CreatedAt)
	if err != nil {
		return models.Group{}, fmt.Errorf("create group: %w", translate(err))
	}

	var member models.GroupMember
	err = tx.QueryRow(ctx, `
		INSERT INTO group_users (group_id, user_id)
		VALUES ($1, $2)
		RETURNING group_id, user_id, joined_at
	`, group.ID, creatorID).Scan(&member.GroupID, &member.UserID, &member.JoinedAt)
	if err != nil {
		return models.Group{}, fmt.Errorf("add creator to group: %w", translate(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Group{}, fmt.Errorf("commit: %w", err)
	}

	group.Members = []models.GroupMember{member}
	group.Messages = []models.GroupMessage{}
	return group, nil
}

// ListGroups returns all groups, newest first, with members and recent messages
func (s *Store) ListGroups(ctx context.Context) ([]models.Group, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, created_by, created_at
		FROM groups
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", translate(err))
	}

	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Group, error) {
		var g models.Group
		err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedBy, &g.CreatedAt)
		g.Members = []models.GroupMember{}
		g.Messages = []models.GroupMessage{}
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}
	if len(groups) == 0 {
		return groups, nil
	}

	index := make(map[string]int, len(groups))
	ids := make([]string, len(groups))
	for i, g := range groups {
		index[g.ID] = i
		ids[i] = g.ID
	}

	if err := s.attachMembers(ctx, groups, index, ids); err != nil {
		return nil, err
	}
	if err := s.attachRecentMessages(ctx, groups, index, ids); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Store) attachMembers(ctx context.Context, groups []models.Group, index map[string]int, ids []string) error {
	rows, err := s.db.Query(ctx, `
		SELECT gu.group_id::text, gu.user_id::text, gu.joined_at, u.name, u.email
		FROM group_users gu
		INNER JOIN users u ON u.id = gu.user_id
		WHERE gu.group_id::text = ANY($1)
		ORDER BY gu.joined_at ASC, gu.user_id ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("list group members: %w", translate(err))
	}
	defer rows.Close()

	for rows.Next() {
		var m models.GroupMember
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.JoinedAt, &m.User.Name, &m.User.Email); err != nil {
			return fmt.Errorf("scan group member: %w", err)
		}
		m.User.ID = m.UserID
		if i, ok := index[m.GroupID]; ok {
			groups[i].Members = append(groups[i].Members, m)
		}
	}
	return rows.Err()
}

func (s *Store) attachRecentMessages(ctx context.Context, groups []models.Group, index map[string]int, ids []string) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, message, created_at, sender_id, group_id, sender_name, sender_email
		FROM (
			SELECT gc.id::text, gc.message, gc.created_at, gc.sender_id::text, gc.group_id::text,
				u.name AS sender_name, u.email AS sender_email,
				ROW_NUMBER() OVER (PARTITION BY gc.group_id ORDER BY gc.created_at DESC) AS rn
			FROM group_chats gc
			LEFT JOIN users u ON u.id = gc.sender_id
			WHERE gc.group_id::text = ANY($1)
		) recent
		WHERE rn <= $2
		ORDER BY created_at ASC, id ASC
	`, ids, recentGroupMessages)
	if err != nil {
		return fmt.Errorf("list recent group messages: %w", translate(err))
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanGroupMessage(rows)
		if err != nil {
			return err
		}
		if i, ok := index[msg.GroupID]; ok {
			groups[i].Messages = append(groups[i].Messages, msg)
		}
	}
	return rows.Err()
}

// IsMember reports whether a user belongs to a group
func (s *Store) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var isMember bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM group_users WHERE group_id::text = $1 AND user_id::text = $2)
	`, groupID, userID).Scan(&isMember)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", translate(err))
	}
	return isMember, nil
}

// JoinGroup adds a user to a group. Joining twice is a no-op; joined reports
// whether a new membership row was written.
func (s *Store) JoinGroup(ctx context.Context, groupID, userID string) (joined bool, err error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO group_users (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("join group: %w", translate(err))
	}
	return tag.RowsAffected() == 1, nil
}
