package client

import (
	"context"
	"time"

	"github.com/yourusername/signin-gateway/internal/auth"
)

// DashboardPath はアプリ内のログイン後画面です。
const DashboardPath = "/dashboard"

// StepKind はログイン後の遷移の種類です。
type StepKind string

const (
	StepRedirect  StepKind = "redirect"
	StepDashboard StepKind = "dashboard"
)

// Step はログイン後にクライアントが取るべき遷移です。
type Step struct {
	Kind  StepKind
	URL   string
	Delay time.Duration
}

// NextStep はリダイレクト設定からログイン後の遷移を決めます。
// autoRedirect が有効で URL がある場合のみ外部へ遷移し、それ以外はダッシュボードへ進みます。
func NextStep(cfg auth.RedirectConfig) Step {
	if cfg.AutoRedirect && cfg.RedirectURL != "" {
		delay := time.Duration(cfg.RedirectDelay) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		return Step{Kind: StepRedirect, URL: cfg.RedirectURL, Delay: delay}
	}
	return Step{Kind: StepDashboard, URL: DashboardPath}
}

// SignIn はログインし、成功したら設定を取得して次の遷移を返します。
func (c *Client) SignIn(ctx context.Context, email, password string) (*auth.AuthResult, Step, error) {
	result, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, Step{}, err
	}
	return result, NextStep(c.GetConfig(ctx)), nil
}
