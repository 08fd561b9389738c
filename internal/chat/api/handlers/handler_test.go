package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"testing"

	"direct_chat_service/internal/chat/app"
	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}

type MockMemberUseCase struct{ mock.Mock }

func (m *MockMemberUseCase) Register(ctx context.Context, name, email, password string) (*app.AuthResult, error) {
	args := m.Called(name, email, password)
	if args.Get(0) != nil {
		return args.Get(0).(*app.AuthResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMemberUseCase) Login(ctx context.Context, email, password string) (*app.AuthResult, error) {
	args := m.Called(email, password)
	if args.Get(0) != nil {
		return args.Get(0).(*app.AuthResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMemberUseCase) Logout(ctx context.Context, memberID string) error {
	return m.Called(memberID).Error(0)
}

func (m *MockMemberUseCase) Profile(ctx context.Context, memberID string) (*domain.MemberProfile, error) {
	args := m.Called(memberID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.MemberProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMemberUseCase) Search(ctx context.Context, memberID, keyword string) ([]domain.MemberProfile, error) {
	args := m.Called(memberID, keyword)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.MemberProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMemberUseCase) UploadAvatar(ctx context.Context, memberID, filename string, r io.Reader, size int64, contentType string) (*domain.MemberProfile, error) {
	args := m.Called(memberID, filename, size, contentType)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.MemberProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMemberUseCase) CheckSession(ctx context.Context, memberID string) (bool, error) {
	args := m.Called(memberID)
	return args.Bool(0), args.Error(1)
}

type MockConversationUseCase struct{ mock.Mock }

func (m *MockConversationUseCase) List(ctx context.Context, memberID string) ([]domain.Conversation, error) {
	args := m.Called(memberID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversationUseCase) Open(ctx context.Context, memberID, recipientID string) (*domain.Conversation, error) {
	args := m.Called(memberID, recipientID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockMessageUseCase struct{ mock.Mock }

func (m *MockMessageUseCase) History(ctx context.Context, memberID, conversationID string) ([]domain.Message, error) {
	args := m.Called(memberID, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageUseCase) Create(ctx context.Context, memberID, conversationID, content string) (*domain.Message, error) {
	args := m.Called(memberID, conversationID, content)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// newTestApp 以 X-Member header 模擬 JWTMiddleware 放進 Locals 的 member id
func newTestApp(register func(app *fiber.App)) *fiber.App {
	a := fiber.New()
	a.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-Member"); id != "" {
			c.Locals(middlewares.TokenMemberID, id)
		}
		return c.Next()
	})
	register(a)
	return a
}

func doJSON(t *testing.T, a *fiber.App, method, path, member string, body interface{}) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if member != "" {
		req.Header.Set("X-Member", member)
	}
	resp, err := a.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestMemberHandler(t *testing.T) {
	uc := new(MockMemberUseCase)
	h := NewMemberHandler(uc)
	a := newTestApp(func(a *fiber.App) {
		a.Post("/register", h.Register)
		a.Post("/login", h.Login)
		a.Post("/logout", h.Logout)
		a.Get("/me", h.Me)
		a.Get("/search", h.Search)
	})

	t.Run("註冊成功回 201", func(t *testing.T) {
		uc.On("Register", "Alice", "alice@example.com", "Secret123").
			Return(&app.AuthResult{Token: "tok", Member: domain.MemberProfile{ID: "m1", Name: "Alice"}}, nil).Once()

		code, body := doJSON(t, a, "POST", "/register", "", RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "Secret123"})
		assert.Equal(t, fiber.StatusCreated, code)
		assert.JSONEq(t, `{"token":"tok","user":{"_id":"m1","name":"Alice","email":""}}`, string(body))
	})

	t.Run("重複 email 回 400", func(t *testing.T) {
		uc.On("Register", "Alice", "alice@example.com", "Secret123").Return(nil, domain.ErrEmailExists).Once()
		code, body := doJSON(t, a, "POST", "/register", "", RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "Secret123"})
		assert.Equal(t, fiber.StatusBadRequest, code)
		assert.Contains(t, string(body), "email already exists")
	})

	t.Run("登入失敗回 401", func(t *testing.T) {
		uc.On("Login", "alice@example.com", "bad").Return(nil, domain.ErrInvalidCredentials).Once()
		code, _ := doJSON(t, a, "POST", "/login", "", LoginRequest{Email: "alice@example.com", Password: "bad"})
		assert.Equal(t, fiber.StatusUnauthorized, code)
	})

	t.Run("內部錯誤不外洩", func(t *testing.T) {
		uc.On("Login", "alice@example.com", "Secret123").Return(nil, errors.New("pg: connection refused")).Once()
		code, body := doJSON(t, a, "POST", "/login", "", LoginRequest{Email: "alice@example.com", Password: "Secret123"})
		assert.Equal(t, fiber.StatusInternalServerError, code)
		assert.NotContains(t, string(body), "pg:")
	})

	t.Run("登出", func(t *testing.T) {
		uc.On("Logout", "m1").Return(nil).Once()
		code, _ := doJSON(t, a, "POST", "/logout", "m1", nil)
		assert.Equal(t, fiber.StatusOK, code)

		code, _ = doJSON(t, a, "POST", "/logout", "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, code)
	})

	t.Run("me 與搜尋", func(t *testing.T) {
		uc.On("Profile", "m1").Return(&domain.MemberProfile{ID: "m1", Name: "Alice"}, nil).Once()
		code, body := doJSON(t, a, "GET", "/me", "m1", nil)
		assert.Equal(t, fiber.StatusOK, code)
		assert.Contains(t, string(body), `"_id":"m1"`)

		uc.On("Search", "m1", "bo").Return([]domain.MemberProfile{{ID: "m2", Name: "Bob"}}, nil).Once()
		code, body = doJSON(t, a, "GET", "/search?q=bo", "m1", nil)
		assert.Equal(t, fiber.StatusOK, code)
		var res []domain.MemberProfile
		require.NoError(t, json.Unmarshal(body, &res))
		require.Len(t, res, 1)
		assert.Equal(t, "Bob", res[0].Name)
	})

	uc.AssertExpectations(t)
}

func TestMemberHandler_UploadAvatar(t *testing.T) {
	uc := new(MockMemberUseCase)
	h := NewMemberHandler(uc)
	a := newTestApp(func(a *fiber.App) { a.Post("/avatar", h.UploadAvatar) })

	upload := func(field string) int {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile(field, "me.png")
		require.NoError(t, err)
		_, _ = part.Write([]byte("png-bytes"))
		require.NoError(t, w.Close())

		req := httptest.NewRequest("POST", "/avatar", &buf)
		req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
		req.Header.Set("X-Member", "m1")
		resp, err := a.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	uc.On("UploadAvatar", "m1", "me.png", int64(9), mock.Anything).Return(&domain.MemberProfile{ID: "m1", Avatar: "http://x"}, nil).Once()
	assert.Equal(t, fiber.StatusOK, upload("avatar"))

	assert.Equal(t, fiber.StatusBadRequest, upload("file"))

	uc.On("UploadAvatar", "m1", "me.png", int64(9), mock.Anything).Return(nil, domain.ErrAvatarDisabled).Once()
	assert.Equal(t, fiber.StatusServiceUnavailable, upload("avatar"))
}

func TestConversationHandler(t *testing.T) {
	uc := new(MockConversationUseCase)
	h := NewConversationHandler(uc)
	a := newTestApp(func(a *fiber.App) {
		a.Get("/conversations", h.List)
		a.Post("/conversations", h.Open)
	})

	uc.On("List", "alice").Return([]domain.Conversation{{ID: "c1", Participants: []string{"alice", "bob"}, UnreadCount: 2}}, nil).Once()
	code, body := doJSON(t, a, "GET", "/conversations", "alice", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, string(body), `"unreadCount":2`)
	assert.Contains(t, string(body), `"lastMessage":null`)

	uc.On("Open", "alice", "bob").Return(&domain.Conversation{ID: "c1"}, nil).Once()
	code, _ = doJSON(t, a, "POST", "/conversations", "alice", OpenConversationRequest{Recipient: "bob"})
	assert.Equal(t, fiber.StatusOK, code)

	uc.On("Open", "alice", "alice").Return(nil, domain.ErrInvalidRecipient).Once()
	code, _ = doJSON(t, a, "POST", "/conversations", "alice", OpenConversationRequest{Recipient: "alice"})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestMessageHandler(t *testing.T) {
	uc := new(MockMessageUseCase)
	h := NewMessageHandler(uc)
	a := newTestApp(func(a *fiber.App) {
		a.Get("/messages/:conversationId", h.History)
		a.Post("/messages", h.Create)
	})

	t.Run("非參與者 403", func(t *testing.T) {
		uc.On("History", "carol", "c1").Return(nil, domain.ErrNotParticipant).Once()
		code, _ := doJSON(t, a, "GET", "/messages/c1", "carol", nil)
		assert.Equal(t, fiber.StatusForbidden, code)
	})

	t.Run("歷史訊息", func(t *testing.T) {
		uc.On("History", "bob", "c1").Return([]domain.Message{{ID: "m1", Status: domain.StatusDelivered}}, nil).Once()
		code, body := doJSON(t, a, "GET", "/messages/c1", "bob", nil)
		assert.Equal(t, fiber.StatusOK, code)
		assert.Contains(t, string(body), `"status":"delivered"`)
	})

	t.Run("建立訊息 201", func(t *testing.T) {
		uc.On("Create", "alice", "c1", "hi").Return(&domain.Message{ID: "m2", Status: domain.StatusSent}, nil).Once()
		code, body := doJSON(t, a, "POST", "/messages", "alice", CreateMessageRequest{ConversationID: "c1", Content: "hi"})
		assert.Equal(t, fiber.StatusCreated, code)
		assert.Contains(t, string(body), `"status":"sent"`)
	})

	t.Run("空白內容 400", func(t *testing.T) {
		uc.On("Create", "alice", "c1", " ").Return(nil, domain.ErrEmptyContent).Once()
		code, _ := doJSON(t, a, "POST", "/messages", "alice", CreateMessageRequest{ConversationID: "c1", Content: " "})
		assert.Equal(t, fiber.StatusBadRequest, code)
	})

	uc.AssertExpectations(t)
}

func TestDebugLogFlag(t *testing.T) {
	a := fiber.New()
	a.Post("/debug", DebugLogFlag)

	resp, err := a.Test(httptest.NewRequest("POST", "/debug?service=chat_service&status=true", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, logger.Log.IsDebugMode())

	resp, err = a.Test(httptest.NewRequest("POST", "/debug?status=maybe", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	logger.Log.SetDebugMode(false)
}
