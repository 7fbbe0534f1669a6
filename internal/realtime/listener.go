package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"chatsync/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const relistenDelay = 2 * time.Second

// Listener turns PostgreSQL notifications into hub change events
type Listener struct {
	pool    *pgxpool.Pool
	hub     *Hub
	channel string
}

// NewListener creates a listener for channel
func NewListener(pool *pgxpool.Pool, hub *Hub, channel string) *Listener {
	return &Listener{pool: pool, hub: hub, channel: channel}
}

// Run listens until ctx is done, re-establishing the LISTEN after errors
func (l *Listener) Run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("Change listener stopped: %v; retrying in %s", err, relistenDelay)

		select {
		case <-time.After(relistenDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Printf("✅ Listening for row changes on %q", l.channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		ev, err := ParseNotification(n.Payload)
		if err != nil {
			log.Printf("Ignoring notification: %v", err)
			continue
		}
		l.hub.Publish(ev)
	}
}

// ParseNotification decodes the key-only JSON written by notify_chat_change
func ParseNotification(payload string) (models.ChangeEvent, error) {
	var ev models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("decode notification: %w", err)
	}

	switch ev.Table {
	case models.TableDirectMessages, models.TableGroupMessages:
	default:
		return models.ChangeEvent{}, fmt.Errorf("unexpected table %q", ev.Table)
	}

	switch ev.Type {
	case models.ChangeInsert, models.ChangeUpdate, models.ChangeDelete:
	default:
		return models.ChangeEvent{}, fmt.Errorf("unexpected change type %q", ev.Type)
	}

	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return ev, nil
}
