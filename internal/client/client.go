// Package client は認証ゲートウェイの HTTP クライアントと、
// トークン/アカウント情報を保持するセッションを提供します。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/signin-gateway/internal/accounts"
	"github.com/yourusername/signin-gateway/internal/auth"
)

// ErrUnauthenticated はトークンを保持していない、またはサーバーが解決できなかった場合のエラーです。
var ErrUnauthenticated = errors.New("no authentication token found")

// Error はユーザーに表示できるメッセージを持つエラーです。
// Status が 0 の場合はサーバーに到達できなかったことを表します。
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client は認証ゲートウェイの HTTP API を呼び出します。
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
	logger  logrus.FieldLogger
}

// Option は Client の設定を変更します。
type Option func(*Client)

// WithHTTPClient は利用する http.Client を指定します。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger はロガーを指定します。
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New は Client を作成します。baseURL は "http://host/api/auth" のような API のベースです。
func New(baseURL string, session *Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		session: session,
		logger:  logrus.StandardLogger(),
	}
	if c.session == nil {
		c.session = NewSession(nil)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session はクライアントが使うセッションを返します。
func (c *Client) Session() *Session {
	return c.session
}

// GetConfig はリダイレクト設定を取得します。失敗した場合は既定値を返します。
func (c *Client) GetConfig(ctx context.Context) auth.RedirectConfig {
	var cfg auth.RedirectConfig
	if err := c.do(ctx, http.MethodGet, "/config", nil, "", &cfg); err != nil {
		c.logger.WithError(err).Warn("get config failed, using defaults")
		return auth.DefaultRedirectConfig()
	}
	return cfg
}

// CheckEmail はメールアドレスが登録済みかを問い合わせます。
// 失敗した場合は未登録（exists=false）として扱います。
func (c *Client) CheckEmail(ctx context.Context, email string) auth.CheckEmailResult {
	var result auth.CheckEmailResult
	if err := c.do(ctx, http.MethodPost, "/check-email", map[string]string{"email": email}, "", &result); err != nil {
		c.logger.WithError(err).Warn("check email failed")
		return auth.CheckEmailResult{Exists: false, Email: email}
	}
	return result
}

// Login は認証し、成功したらセッションに保存します。
func (c *Client) Login(ctx context.Context, email, password string) (*auth.AuthResult, error) {
	var result auth.AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", body, "", &result); err != nil {
		return nil, userFacing(err, "Login failed. Please try again.")
	}
	if err := c.session.Store(result.Token, result.User); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &result, nil
}

// Register はアカウントを作成し、成功したらセッションに保存します。
func (c *Client) Register(ctx context.Context, email, password, name string) (*auth.AuthResult, error) {
	var result auth.AuthResult
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/register", body, "", &result); err != nil {
		return nil, userFacing(err, "Registration failed. Please try again.")
	}
	if err := c.session.Store(result.Token, result.User); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &result, nil
}

// ResetPassword はパスワードリセットを要求します。
func (c *Client) ResetPassword(ctx context.Context, email string) (*auth.ResetResult, error) {
	var result auth.ResetResult
	if err := c.do(ctx, http.MethodPost, "/forgot-password", map[string]string{"email": email}, "", &result); err != nil {
		return nil, userFacing(err, "Password reset failed. Please try again.")
	}
	return &result, nil
}

// CurrentUser は保持しているトークンでアカウントを取得します。
// 失敗した場合はセッションを消去します。
func (c *Client) CurrentUser(ctx context.Context) (*accounts.PublicAccount, error) {
	token, ok := c.session.Token()
	if !ok {
		_ = c.session.Clear()
		return nil, ErrUnauthenticated
	}

	var user accounts.PublicAccount
	if err := c.do(ctx, http.MethodGet, "/me", nil, token, &user); err != nil {
		if clearErr := c.session.Clear(); clearErr != nil {
			c.logger.WithError(clearErr).Warn("failed to clear session")
		}
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", ErrUnauthenticated, apiErr.Message)
		}
		return nil, err
	}
	return &user, nil
}

// Logout はローカルのセッションを破棄します。サーバー呼び出しは行いません。
func (c *Client) Logout() error {
	return c.session.Clear()
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Code: "TRANSPORT_ERROR", Message: "The server could not be reached.", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Status: resp.StatusCode, Code: "TRANSPORT_ERROR", Message: "The server response could not be read.", Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &payload)
		return &Error{Status: resp.StatusCode, Code: payload.Code, Message: payload.Message}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Status: resp.StatusCode, Code: "DECODE_ERROR", Message: "The server response was malformed.", Err: err}
	}
	return nil
}

// userFacing はサーバーのメッセージがあればそれを、無ければ fallback を表示用メッセージにします。
func userFacing(err error, fallback string) error {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return &Error{Message: fallback, Err: err}
	}
	out := *apiErr
	if out.Status == 0 || out.Message == "" {
		out.Message = fallback
	}
	if out.Err == nil {
		out.Err = err
	}
	return &out
}
