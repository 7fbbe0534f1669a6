package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"

	"chatsync/internal/chat"
	"chatsync/internal/models"
)

const handshakeTimeout = 10 * time.Second

// Change-feed frame types and error codes, mirrored from the server
const (
	frameSubscribe    = "subscribe"
	frameUnsubscribe  = "unsubscribe"
	frameSubscribed   = "subscribed"
	frameChange       = "change"
	frameError        = "error"
	feedCodeForbidden = "forbidden"
)

// FeedError is an error frame sent in reply to a subscribe
type FeedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("change feed %s: %s", e.Code, e.Message)
}

type outFrame struct {
	Type  string       `json:"type"`
	Ref   string       `json:"ref"`
	Scope models.Scope `json:"scope"`
}

type inFrame struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref"`
	Payload json.RawMessage `json:"payload"`
}

// Feed opens change-feed subscriptions, one WebSocket connection each
type Feed struct {
	url    string
	client *Client
	dialer *websocket.Dialer
	logger *log.Logger
}

var _ chat.Feed = (*Feed)(nil)

// Feed returns the change feed for this client's session
func (c *Client) Feed() *Feed {
	u := c.baseURL + "/realtime"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &Feed{
		url:    u,
		client: c,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		logger: log.Default(),
	}
}

// Subscribe dials the feed, sends a subscribe frame and waits for it to be
// acknowledged
func (f *Feed) Subscribe(ctx context.Context, scope models.Scope, onChange func(models.ChangeEvent)) (chat.Subscription, error) {
	token := f.client.Token()
	if token == "" {
		return nil, chat.ErrUnauthenticated
	}
	conn, err := f.dial(ctx, token)
	if errors.Is(err, chat.ErrUnauthenticated) && f.client.refresh(ctx, token) == nil {
		conn, err = f.dial(ctx, f.client.Token())
	}
	if err != nil {
		return nil, err
	}

	sub := &subscription{conn: conn, ref: uuid.NewString(), logger: f.logger, done: make(chan struct{})}
	if err := sub.handshake(ctx, scope); err != nil {
		conn.Close()
		return nil, err
	}

	go sub.readLoop(onChange)
	return sub, nil
}

func (f *Feed) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, errors.Join(chat.ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("dial change feed: %w", err)
	}
	return conn, nil
}

type subscription struct {
	conn   *websocket.Conn
	ref    string
	logger *log.Logger
	// closed when readLoop returns
	done chan struct{}

	once sync.Once
}

func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) handshake(ctx context.Context, scope models.Scope) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(handshakeTimeout)
	}
	s.conn.SetReadDeadline(deadline)
	s.conn.SetWriteDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})
	defer s.conn.SetWriteDeadline(time.Time{})

	if err := s.conn.WriteJSON(outFrame{Type: frameSubscribe, Ref: s.ref, Scope: scope}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	for {
		var fr inFrame
		if err := s.conn.ReadJSON(&fr); err != nil {
			return fmt.Errorf("await subscribe ack: %w", err)
		}
		if fr.Ref != s.ref {
			continue
		}
		switch fr.Type {
		case frameSubscribed:
			return nil
		case frameError:
			feedErr := &FeedError{}
			if err := json.Unmarshal(fr.Payload, feedErr); err != nil {
				return fmt.Errorf("%w: error frame: %v", ErrMalformedRow, err)
			}
			if feedErr.Code == feedCodeForbidden && scope.Table == models.TableGroupMessages {
				return errors.Join(chat.ErrNotAMember, feedErr)
			}
			return feedErr
		}
	}
}

func (s *subscription) readLoop(onChange func(models.ChangeEvent)) {
	defer close(s.done)
	for {
		var fr inFrame
		if err := s.conn.ReadJSON(&fr); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				s.logger.Printf("change feed: read: %v", err)
			}
			return
		}
		if fr.Type != frameChange {
			continue
		}
		var ev models.ChangeEvent
		if err := json.Unmarshal(fr.Payload, &ev); err != nil {
			s.logger.Printf("change feed: decode change: %v", err)
			continue
		}
		if err := checkRow(&ev); err != nil {
			s.logger.Printf("change feed: %v", err)
			continue
		}
		onChange(ev)
	}
}

// Close unsubscribes and closes the connection
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		deadline := time.Now().Add(time.Second)
		s.conn.SetWriteDeadline(deadline)
		_ = s.conn.WriteJSON(outFrame{Type: frameUnsubscribe, Ref: s.ref})
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = s.conn.Close()
	})
	return err
}
