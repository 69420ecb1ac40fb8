// Package auth はサインイン/サインアップ用の認証ゲートウェイを提供します。
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/signin-gateway/internal/accounts"
)

const minPasswordLength = 8

// RedirectConfig はログイン後の遷移ポリシーです。RedirectDelay はミリ秒です。
type RedirectConfig struct {
	AutoRedirect  bool   `json:"autoRedirect"`
	RedirectURL   string `json:"redirectUrl"`
	RedirectDelay int    `json:"redirectDelay"`
}

// DefaultRedirectConfig は設定が取得できない場合に使う既定値です。
func DefaultRedirectConfig() RedirectConfig {
	return RedirectConfig{
		AutoRedirect:  true,
		RedirectURL:   "https://example.com/",
		RedirectDelay: 500,
	}
}

// CheckEmailResult は CheckEmail の結果です。
type CheckEmailResult struct {
	Exists bool   `json:"exists"`
	Email  string `json:"email"`
}

// AuthResult はログイン/登録成功時の結果です。
type AuthResult struct {
	Success bool                    `json:"success"`
	Token   string                  `json:"token"`
	User    *accounts.PublicAccount `json:"user"`
}

// ResetResult はパスワードリセット要求の結果です。
type ResetResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ResetRequest はリセットメール送信のために通知される内容です。
type ResetRequest struct {
	RequestID   string    `json:"requestId"`
	AccountID   string    `json:"accountId"`
	Email       string    `json:"email"`
	RequestedAt time.Time `json:"requestedAt"`
}

// ResetNotifier はリセット要求を配送経路（キュー等）へ渡します。
type ResetNotifier interface {
	NotifyReset(ctx context.Context, req ResetRequest) error
}

// Options は Service の依存関係です。
type Options struct {
	Accounts  accounts.Repository
	Tokens    TokenIssuer
	Passwords PasswordHasher
	Notifier  ResetNotifier
	// Redirect が nil の場合は DefaultRedirectConfig を使います。
	Redirect  *RedirectConfig
	Logger    logrus.FieldLogger
	Metrics   *Metrics
	Now       func() time.Time
	NewID     func() string
}

// Service は認証ゲートウェイの各操作を実装します。
type Service struct {
	accounts  accounts.Repository
	tokens    TokenIssuer
	passwords PasswordHasher
	notifier  ResetNotifier
	redirect  RedirectConfig
	logger    logrus.FieldLogger
	metrics   *Metrics
	now       func() time.Time
	newID     func() string
}

// NewService は Service を作成します。
func NewService(opts Options) (*Service, error) {
	if opts.Accounts == nil {
		return nil, errors.New("accounts repository is nil")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token issuer is nil")
	}
	s := &Service{
		accounts:  opts.Accounts,
		tokens:    opts.Tokens,
		passwords: opts.Passwords,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if s.passwords == nil {
		s.passwords = BcryptHasher{}
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if opts.Redirect == nil {
		s.redirect = DefaultRedirectConfig()
	} else {
		s.redirect = *opts.Redirect
	}
	return s, nil
}

// GetConfig はリダイレクト設定を返します。失敗しません。
func (s *Service) GetConfig(ctx context.Context) RedirectConfig {
	s.metrics.observe("config", time.Now(), nil)
	return s.redirect
}

// CheckEmail はメールアドレスが登録済みかを返します。
func (s *Service) CheckEmail(ctx context.Context, email string) (result CheckEmailResult, err error) {
	defer s.track("check_email", time.Now(), &err)

	normalized := accounts.NormalizeEmail(email)
	if normalized == "" {
		return CheckEmailResult{}, errInvalidInput(MsgEmailRequired)
	}
	_, err = s.accounts.FindByEmail(ctx, normalized)
	switch {
	case err == nil:
		return CheckEmailResult{Exists: true, Email: normalized}, nil
	case errors.Is(err, accounts.ErrNotFound):
		return CheckEmailResult{Exists: false, Email: normalized}, nil
	default:
		return CheckEmailResult{}, fmt.Errorf("check email: %w", err)
	}
}

// Login はメールアドレス（大文字小文字を区別しない）とパスワード（区別する）で認証します。
func (s *Service) Login(ctx context.Context, email, password string) (result *AuthResult, err error) {
	defer s.track("login", time.Now(), &err)

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if !s.passwords.Compare(account.PasswordHash, password) {
		return nil, errInvalidCredentials()
	}

	result, err = s.issue(account)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("account_id", account.ID).Info("login succeeded")
	return result, nil
}

// Register は新しいアカウントを作成し、トークンを発行します。
func (s *Service) Register(ctx context.Context, email, password, name string) (result *AuthResult, err error) {
	defer s.track("register", time.Now(), &err)

	normalized := accounts.NormalizeEmail(email)
	if normalized == "" {
		return nil, errInvalidInput(MsgEmailRequired)
	}

	// 登録済みかどうかを入力チェックより先に判定する
	_, err = s.accounts.FindByEmail(ctx, normalized)
	switch {
	case err == nil:
		return nil, errEmailTaken()
	case !errors.Is(err, accounts.ErrNotFound):
		return nil, fmt.Errorf("register lookup: %w", err)
	}

	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, errInvalidInput(MsgNameRequired)
	case len(password) < minPasswordLength:
		return nil, errInvalidInput(MsgPasswordTooShort)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &accounts.Account{
		ID:           s.newID(),
		Email:        normalized,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.Insert(ctx, account); err != nil {
		if errors.Is(err, accounts.ErrEmailTaken) {
			return nil, errEmailTaken()
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	result, err = s.issue(account)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("account_id", account.ID).Info("account registered")
	return result, nil
}

// ResetPassword はリセット要求を受け付けます。
// アカウントの有無に関係なく同じ成功結果を返し、登録状況を漏らしません。
func (s *Service) ResetPassword(ctx context.Context, email string) ResetResult {
	start := time.Now()
	result := ResetResult{Success: true, Message: MsgResetRequested}

	account, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		req := ResetRequest{
			RequestID:   s.newID(),
			AccountID:   account.ID,
			Email:       account.Email,
			RequestedAt: s.now().UTC(),
		}
		if s.notifier == nil {
			s.logger.WithField("request_id", req.RequestID).Warn("password reset requested but no notifier is configured")
		} else if notifyErr := s.notifier.NotifyReset(ctx, req); notifyErr != nil {
			s.logger.WithError(notifyErr).WithField("request_id", req.RequestID).Error("failed to dispatch password reset")
		} else {
			s.logger.WithField("request_id", req.RequestID).Info("password reset dispatched")
		}
	case errors.Is(err, accounts.ErrNotFound):
	default:
		s.logger.WithError(err).Error("password reset lookup failed")
	}

	s.metrics.observe("forgot_password", start, nil)
	return result
}

// CurrentUser はトークンからアカウントを解決します。
func (s *Service) CurrentUser(ctx context.Context, token string) (user *accounts.PublicAccount, err error) {
	defer s.track("me", time.Now(), &err)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errUnauthenticated(MsgUnauthorized)
	}
	accountID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, errUnauthenticated(MsgInvalidToken)
	}
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, errUnauthenticated(MsgUserNotFound)
		}
		return nil, fmt.Errorf("resolve account: %w", err)
	}
	return account.Public(), nil
}

func (s *Service) issue(account *accounts.Account) (*AuthResult, error) {
	token, err := s.tokens.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Success: true, Token: token, User: account.Public()}, nil
}

func (s *Service) track(op string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	s.metrics.observe(op, start, err)
}
