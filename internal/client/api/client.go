package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"direct_chat_service/internal/chat/domain"
)

// DefaultTimeout per request
const DefaultTimeout = 15 * time.Second

// Error non 2xx reply, Message is the server's {"error": ...}
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat api: status %d: %s", e.StatusCode, e.Message)
}

// AuthResult token plus our own profile
type AuthResult struct {
	Token string               `json:"token"`
	User  domain.MemberProfile `json:"user"`
}

// Client CRUD side of the chat service
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configure a Client
type Option func(*Client)

// WithHTTPClient use c for every request
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken start with an existing token
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// New create a Client for baseURL, e.g. http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL server address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken replace the bearer token, e.g. after login
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token current bearer token
func (c *Client) Token() string {
	return c.token
}

// Register create an account, the returned token is also kept on the client
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	var res AuthResult
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, body, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// Login exchange credentials for a token, the token is also kept on the client
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// Logout drop the server session
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

// Me our own profile
func (c *Client) Me(ctx context.Context) (*domain.MemberProfile, error) {
	var p domain.MemberProfile
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SearchUsers members whose name or email contains keyword
func (c *Client) SearchUsers(ctx context.Context, keyword string) ([]domain.MemberProfile, error) {
	var out []domain.MemberProfile
	q := url.Values{"q": {keyword}}
	if err := c.do(ctx, http.MethodGet, "/api/users/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Conversations our conversations, newest first
func (c *Client) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	var out []domain.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OpenConversation existing conversation with recipient, created when missing
func (c *Client) OpenConversation(ctx context.Context, recipient string) (*domain.Conversation, error) {
	var conv domain.Conversation
	body := map[string]string{"recipient": recipient}
	if err := c.do(ctx, http.MethodPost, "/api/conversations", nil, body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// History messages of conversationID, oldest first. Implements store.HistoryFetcher.
func (c *Client) History(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var out []domain.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(conversationID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMessage store a message, realtime relay is up to the caller
func (c *Client) CreateMessage(ctx context.Context, conversationID, content string) (*domain.Message, error) {
	var msg domain.Message
	body := map[string]string{"conversationId": conversationID, "content": content}
	if err := c.do(ctx, http.MethodPost, "/api/messages", nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
