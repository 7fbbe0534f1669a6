package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"chatsync/internal/middleware"
	"chatsync/internal/models"
	"chatsync/internal/realtime"
	"chatsync/internal/store"
	"chatsync/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store
type memStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	groups   map[string]models.Group
	members  map[string]bool
	direct   []models.DirectMessage
	groupMsg []models.GroupMessage
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]models.User{},
		groups:  map[string]models.Group{},
		members: map[string]bool{},
	}
}

func (m *memStore) CreateUser(_ context.Context, name, email string, phone *string, hash string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return models.User{}, store.ErrEmailTaken
		}
	}
	u := models.User{ID: uuid.NewString(), Name: name, Email: email, Phone: phone, Password: hash, CreatedAt: time.Now()}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) GetUser(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (m *memStore) ListUsers(_ context.Context, except string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := []models.User{}
	for _, u := range m.users {
		if u.ID != except {
			users = append(users, u)
		}
	}
	return users, nil
}

func (m *memStore) CreateGroup(_ context.Context, creatorID, name, description string) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := models.Group{ID: uuid.NewString(), Name: name, Description: description, CreatedBy: creatorID, CreatedAt: time.Now()}
	m.groups[g.ID] = g
	m.members[g.ID+"/"+creatorID] = true
	return g, nil
}

func (m *memStore) ListGroups(context.Context) ([]models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	groups := []models.Group{}
	for _, g := range m.groups {
		groups = append(groups, g)
	}
	return groups, nil
}

func (m *memStore) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[groupID+"/"+userID], nil
}

func (m *memStore) JoinGroup(_ context.Context, groupID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[groupID]; !ok {
		return false, store.ErrNotFound
	}
	key := groupID + "/" + userID
	if m.members[key] {
		return false, nil
	}
	m.members[key] = true
	return true, nil
}

func (m *memStore) DirectMessagesFor(_ context.Context, userID string) ([]models.DirectMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.DirectMessage{}
	for _, msg := range m.direct {
		if msg.SenderID == userID || msg.ReceiverID == userID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) GroupMessages(_ context.Context, groupID string) ([]models.GroupMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.GroupMessage{}
	for _, msg := range m.groupMsg {
		if msg.GroupID == groupID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) InsertDirectMessage(_ context.Context, senderID string, in models.NewDirectMessage) (models.DirectMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[in.ReceiverID]; !ok {
		return models.DirectMessage{}, store.ErrNotFound
	}
	msg := models.DirectMessage{ID: uuid.NewString(), Body: in.Body, CreatedAt: time.Now(), SenderID: senderID, ReceiverID: in.ReceiverID}
	m.direct = append(m.direct, msg)
	return msg, nil
}

func (m *memStore) InsertGroupMessage(_ context.Context, senderID string, in models.NewGroupMessage) (models.GroupMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.members[in.GroupID+"/"+senderID] {
		return models.GroupMessage{}, store.ErrNotAMember
	}
	msg := models.GroupMessage{ID: uuid.NewString(), Body: in.Body, CreatedAt: time.Now(), SenderID: senderID, GroupID: in.GroupID}
	m.groupMsg = append(m.groupMsg, msg)
	return msg, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t      *testing.T
	app    *fiber.App
	store  *memStore
	tokens *utils.Tokens
}

func newHarness(t *testing.T) *harness {
	st := newMemStore()
	tokens := utils.NewTokens("secret", time.Minute, time.Hour)
	h := New(st, tokens, realtime.NewHub(st))

	app := fiber.New()
	auth := middleware.Auth(tokens)
	app.Post("/auth/register", h.Register)
	app.Post("/auth/login", h.Login)
	app.Get("/auth/me", auth, h.GetMe)
	app.Get("/users", auth, h.GetUsers)
	app.Post("/groups", auth, h.CreateGroup)
	app.Get("/groups/:groupId/membership", auth, h.GetMembership)
	app.Post("/groups/:groupId/join", auth, h.JoinGroup)
	app.Get("/messages/direct", auth, h.GetDirectMessages)
	app.Post("/messages/direct", auth, h.SendDirectMessage)
	app.Get("/messages/group/:groupId", auth, h.GetGroupMessages)
	app.Post("/messages/group", auth, h.SendGroupMessage)

	return &harness{t: t, app: app, store: st, tokens: tokens}
}

func (h *harness) do(method, path, token string, body interface{}) (int, envelope) {
	h.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.app.Test(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (h *harness) register(name, email string) (models.User, string) {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/auth/register", "", RegisterRequest{Name: name, Email: email, Password: "password123"})
	require.Equal(h.t, fiber.StatusCreated, status, env.Error)

	var session Session
	require.NoError(h.t, json.Unmarshal(env.Data, &session))
	return session.User, session.AccessToken
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	user, token := h.register("Ana", "Ana@Example.com")
	assert.Equal(t, "ana@example.com", user.Email)

	status, env := h.do(http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	status, env = h.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, utils.CodeUnauthorized, env.Code)

	status, _ = h.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "password123"})
	assert.Equal(t, fiber.StatusOK, status)

	status, env = h.do(http.MethodPost, "/auth/register", "", RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "password123"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, utils.CodeConflict, env.Code)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	status, env := h.do(http.MethodPost, "/auth/register", "", RegisterRequest{Name: "Ana", Email: "not-an-email", Password: "password123"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, utils.CodeBadRequest, env.Code)
	assert.Contains(t, env.Error, "Email")
}

func TestGroupMembershipFlow(t *testing.T) {
	h := newHarness(t)
	_, ownerToken := h.register("Owner", "owner@example.com")
	_, guestToken := h.register("Guest", "guest@example.com")

	status, env := h.do(http.MethodPost, "/groups", ownerToken, CreateGroupRequest{Name: "Team"})
	require.Equal(t, fiber.StatusCreated, status)
	var group models.Group
	require.NoError(t, json.Unmarshal(env.Data, &group))

	status, env = h.do(http.MethodGet, "/messages/group/"+group.ID, guestToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, utils.CodeNotAMember, env.Code)

	status, env = h.do(http.MethodPost, "/messages/group", guestToken, models.NewGroupMessage{GroupID: group.ID, Body: "hi"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, utils.CodeNotAMember, env.Code)

	status, env = h.do(http.MethodPost, "/groups/"+group.ID+"/join", guestToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Joined group successfully", env.Message)

	status, env = h.do(http.MethodPost, "/groups/"+group.ID+"/join", guestToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Already a member", env.Message)

	status, env = h.do(http.MethodGet, "/groups/"+group.ID+"/membership", guestToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"member":true}`, string(env.Data))

	status, _ = h.do(http.MethodPost, "/messages/group", guestToken, models.NewGroupMessage{GroupID: group.ID, Body: "hi"})
	assert.Equal(t, fiber.StatusCreated, status)

	status, env = h.do(http.MethodGet, "/messages/group/"+group.ID, guestToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	var messages []models.GroupMessage
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Body)
}

func TestJoinUnknownGroup(t *testing.T) {
	h := newHarness(t)
	_, token := h.register("Ana", "ana@example.com")

	status, env := h.do(http.MethodPost, "/groups/"+uuid.NewString()+"/join", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, utils.CodeNotFound, env.Code)

	status, _ = h.do(http.MethodPost, "/groups/not-a-uuid/join", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestDirectMessages(t *testing.T) {
	h := newHarness(t)
	ana, anaToken := h.register("Ana", "ana@example.com")
	ben, benToken := h.register("Ben", "ben@example.com")

	status, env := h.do(http.MethodGet, "/users", anaToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	var users []models.User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, ben.ID, users[0].ID)

	status, _ = h.do(http.MethodPost, "/messages/direct", anaToken, models.NewDirectMessage{ReceiverID: ben.ID, Body: "hello"})
	require.Equal(t, fiber.StatusCreated, status)

	status, env = h.do(http.MethodPost, "/messages/direct", anaToken, models.NewDirectMessage{ReceiverID: uuid.NewString(), Body: "hello"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, env = h.do(http.MethodPost, "/messages/direct", anaToken, models.NewDirectMessage{ReceiverID: ben.ID})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = h.do(http.MethodGet, "/messages/direct", benToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	var messages []models.DirectMessage
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, ana.ID, messages[0].SenderID)
}
