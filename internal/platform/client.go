// Package platform is the concrete service client for the chat platform API.
// It implements chat.Backend over HTTP and chat.Feed over the WebSocket
// change feed.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"chatsync/internal/chat"
	"chatsync/internal/config"
	"chatsync/internal/models"
)

// Error codes sent by the platform in failed responses
const (
	codeUnauthorized = "unauthorized"
	codeNotAMember   = "not_a_member"
)

// APIError is a failed platform response that has no chat sentinel
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("platform %d: %s", e.Status, e.Message)
}

// envelope is the platform's response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

// Client talks to the platform API on behalf of one signed-in user
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client

	mu           sync.RWMutex
	token        string
	refreshToken string

	// serializes token refreshes
	refreshMu sync.Mutex
}

var _ chat.Backend = (*Client)(nil)

func New(cfg *config.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		timeout: cfg.Timeout,
		http: &fasthttp.Client{
			Name:                "chatsync",
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// SetToken installs an access token obtained elsewhere
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) setTokens(access, refresh string) {
	c.mu.Lock()
	c.token = access
	if refresh != "" {
		c.refreshToken = refresh
	}
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type session struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// Paths that must not trigger a token refresh when they answer 401
var noRefresh = map[string]bool{
	"/auth/login":    true,
	"/auth/register": true,
	"/auth/refresh":  true,
}

// SignIn exchanges credentials for an access token
func (c *Client) SignIn(ctx context.Context, email, password string) (models.User, error) {
	body := map[string]string{"email": email, "password": password}
	return c.startSession(ctx, "/auth/login", body)
}

// SignUp registers a new account and signs it in
func (c *Client) SignUp(ctx context.Context, name, email, password string) (models.User, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.startSession(ctx, "/auth/register", body)
}

func (c *Client) startSession(ctx context.Context, path string, body interface{}) (models.User, error) {
	var s session
	if err := c.do(ctx, fasthttp.MethodPost, path, body, &s); err != nil {
		return models.User{}, err
	}
	if s.AccessToken == "" {
		return models.User{}, fmt.Errorf("%w: session without access token", ErrMalformedRow)
	}
	if err := checkRow(&s.User); err != nil {
		return models.User{}, err
	}
	c.setTokens(s.AccessToken, s.RefreshToken)
	return s.User, nil
}

// refresh trades the refresh token for a new access token. stale is the
// access token that was rejected; if another caller already replaced it
// there is nothing to do.
func (c *Client) refresh(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	current, refreshToken := c.token, c.refreshToken
	c.mu.RUnlock()
	if current != stale {
		return nil
	}
	if refreshToken == "" {
		return chat.ErrUnauthenticated
	}

	var s session
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.send(ctx, fasthttp.MethodPost, "/auth/refresh", "", body, &s); err != nil {
		return err
	}
	if s.AccessToken == "" {
		return fmt.Errorf("%w: refresh without access token", ErrMalformedRow)
	}
	c.setTokens(s.AccessToken, s.RefreshToken)
	return nil
}

// SignOut ends the session on the platform and forgets the token
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, fasthttp.MethodPost, "/auth/logout", nil, nil)
	c.mu.Lock()
	c.token, c.refreshToken = "", ""
	c.mu.Unlock()
	return err
}

func (c *Client) CurrentUser(ctx context.Context) (models.User, error) {
	if c.Token() == "" {
		return models.User{}, chat.ErrUnauthenticated
	}
	var u models.User
	if err := c.do(ctx, fasthttp.MethodGet, "/auth/me", nil, &u); err != nil {
		return models.User{}, err
	}
	return u, checkRow(&u)
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, fasthttp.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, checkRows(users)
}

func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := c.do(ctx, fasthttp.MethodGet, "/groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, checkRows(groups)
}

// CreateGroup creates a group; the caller becomes its first member
func (c *Client) CreateGroup(ctx context.Context, name, description string) (models.Group, error) {
	body := map[string]string{"name": name, "description": description}
	var g models.Group
	if err := c.do(ctx, fasthttp.MethodPost, "/groups", body, &g); err != nil {
		return models.Group{}, err
	}
	return g, checkRow(&g)
}

func (c *Client) DirectMessages(ctx context.Context) ([]models.DirectMessage, error) {
	var msgs []models.DirectMessage
	if err := c.do(ctx, fasthttp.MethodGet, "/messages/direct", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, checkRows(msgs)
}

func (c *Client) GroupMessages(ctx context.Context, groupID string) ([]models.GroupMessage, error) {
	var msgs []models.GroupMessage
	if err := c.do(ctx, fasthttp.MethodGet, "/messages/group/"+url.PathEscape(groupID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, checkRows(msgs)
}

func (c *Client) SendDirectMessage(ctx context.Context, msg models.NewDirectMessage) error {
	return c.do(ctx, fasthttp.MethodPost, "/messages/direct", msg, nil)
}

func (c *Client) SendGroupMessage(ctx context.Context, msg models.NewGroupMessage) error {
	return c.do(ctx, fasthttp.MethodPost, "/messages/group", msg, nil)
}

func (c *Client) IsMember(ctx context.Context, groupID string) (bool, error) {
	var out struct {
		Member bool `json:"member"`
	}
	path := "/groups/" + url.PathEscape(groupID) + "/membership"
	if err := c.do(ctx, fasthttp.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.Member, nil
}

func (c *Client) JoinGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, fasthttp.MethodPost, "/groups/"+url.PathEscape(groupID)+"/join", nil, nil)
}

// do sends one request and decodes the envelope's data into out. A 401 is
// answered by one token refresh and one retry.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	token := c.Token()
	err := c.send(ctx, method, path, token, body, out)
	if !errors.Is(err, chat.ErrUnauthenticated) || noRefresh[path] || token == "" {
		return err
	}
	if rerr := c.refresh(ctx, token); rerr != nil {
		return err
	}
	return c.send(ctx, method, path, c.Token(), body, out)
}

func (c *Client) send(ctx context.Context, method, path, token string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(payload)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		if status >= 300 {
			return responseError(status, envelope{Error: fasthttp.StatusMessage(status)})
		}
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedRow, method, path, err)
	}

	if status >= 300 || !env.Success {
		return responseError(status, env)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedRow, method, path, err)
	}
	return nil
}

// responseError maps a failed response onto the chat error taxonomy
func responseError(status int, env envelope) error {
	apiErr := &APIError{Status: status, Code: env.Code, Message: env.Error}
	switch {
	case status == fasthttp.StatusUnauthorized || env.Code == codeUnauthorized:
		return errors.Join(chat.ErrUnauthenticated, apiErr)
	case env.Code == codeNotAMember:
		return errors.Join(chat.ErrNotAMember, apiErr)
	}
	return apiErr
}
