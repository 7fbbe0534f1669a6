package chat

import (
	"context"
	"fmt"
	"sync"

	"chatsync/internal/models"
)

// Bridge owns the single live change-feed subscription of a session.
//
// Every Switch and Close carries the session generation it was issued for.
// Calls older than the newest one seen are ignored, so a slow switch for a
// thread the user already left cannot replace the current subscription.
type Bridge struct {
	feed Feed

	mu    sync.Mutex
	sub   Subscription
	scope models.Scope
	gen   uint64
}

func NewBridge(feed Feed) *Bridge {
	return &Bridge{feed: feed}
}

// Switch tears down the current subscription and subscribes to scope.
// handler only sees events that match scope. onLost, if set, is called once
// when the stream ends without Switch or Close having replaced it.
func (b *Bridge) Switch(ctx context.Context, gen uint64, scope models.Scope, handler func(models.ChangeEvent), onLost func()) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen < b.gen {
		return nil
	}
	b.gen = gen
	b.closeLocked()

	sub, err := b.feed.Subscribe(ctx, scope, func(ev models.ChangeEvent) {
		if scope.Matches(ev) {
			handler(ev)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", scope.Key(), err)
	}
	b.sub = sub
	b.scope = scope
	go b.watch(sub, onLost)
	return nil
}

// watch forgets sub once its stream ends on its own
func (b *Bridge) watch(sub Subscription, onLost func()) {
	<-sub.Done()

	b.mu.Lock()
	lost := b.sub == sub
	if lost {
		b.sub = nil
		b.scope = models.Scope{}
	}
	b.mu.Unlock()

	if lost && onLost != nil {
		onLost()
	}
}

// Close tears down the current subscription unconditionally
func (b *Bridge) Close(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen > b.gen {
		b.gen = gen
	}
	b.closeLocked()
}

// Scope returns the scope of the live subscription
func (b *Bridge) Scope() (models.Scope, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scope, b.sub != nil
}

func (b *Bridge) closeLocked() {
	if b.sub == nil {
		return
	}
	// The feed stops delivering on Close even when the unsubscribe frame
	// cannot be written, so the error carries nothing actionable.
	_ = b.sub.Close()
	b.sub = nil
	b.scope = models.Scope{}
}
