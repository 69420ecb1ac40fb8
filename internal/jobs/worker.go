// Package jobs はパスワードリセット要求の非同期配送を提供します。
package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/signin-gateway/internal/auth"
)

// ResetMessage はリセットメールとして送る内容です。
type ResetMessage struct {
	RequestID string
	Email     string
	ExpiresAt time.Time
}

// Mailer はリセットメールを配送します。
type Mailer interface {
	SendReset(ctx context.Context, msg ResetMessage) error
}

// LogMailer は実際の送信は行わず、送信したことをログに残すだけの Mailer です。
type LogMailer struct {
	Logger logrus.FieldLogger
}

// SendReset はリセットメール送信をログに記録します。
func (m LogMailer) SendReset(ctx context.Context, msg ResetMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := m.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"request_id": msg.RequestID,
		"email":      msg.Email,
		"expires_at": msg.ExpiresAt.Format(time.RFC3339),
	}).Info("password reset email queued for delivery")
	return nil
}

// InlineNotifier はキューを使わず、その場で Mailer に渡す ResetNotifier です。
// QUEUE_REDIS_URL が未設定のローカル環境で使います。
type InlineNotifier struct {
	Mailer Mailer
	TTL    time.Duration
}

// NotifyReset は Mailer を同期的に呼び出します。
func (n InlineNotifier) NotifyReset(ctx context.Context, req auth.ResetRequest) error {
	return n.Mailer.SendReset(ctx, ResetMessage{
		RequestID: req.RequestID,
		Email:     req.Email,
		ExpiresAt: req.RequestedAt.Add(n.TTL),
	})
}
