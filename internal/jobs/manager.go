package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/signin-gateway/internal/auth"
)

const (
	taskTypePasswordReset = "auth:password_reset"
	queueMail             = "mail"
	maxDeliveryRetries    = 3
)

// Manager はリセット要求のキュー投入と配送ワーカーを管理します。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  *Store
	mailer Mailer
	logger logrus.FieldLogger
}

// TaskPayload はリセット配送タスクのペイロードです。
type TaskPayload struct {
	RequestID string `json:"requestId"`
}

// NewManager は Manager を初期化します。
func NewManager(redisURL string, store *Store, mailer Mailer, logger logrus.FieldLogger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if mailer == nil {
		return nil, errors.New("mailer is nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueMail: 1,
			},
			Logger: logger.WithField("component", "asynq"),
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client: client,
		server: server,
		mux:    mux,
		store:  store,
		mailer: mailer,
		logger: logger,
	}
	mux.HandleFunc(taskTypePasswordReset, manager.handleResetTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.WithError(err).Error("asynq server stopped with error")
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	return m.client.Close()
}

// NotifyReset はリセット要求を記録してキューに投入します（auth.ResetNotifier の実装）。
func (m *Manager) NotifyReset(ctx context.Context, req auth.ResetRequest) error {
	if req.RequestID == "" {
		return fmt.Errorf("request id is required")
	}

	record := &Record{
		RequestID: req.RequestID,
		AccountID: req.AccountID,
		Email:     req.Email,
		Status:    StatusQueued,
		CreatedAt: req.RequestedAt,
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return err
	}

	body, err := json.Marshal(TaskPayload{RequestID: req.RequestID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskTypePasswordReset, body, asynq.Queue(queueMail))
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(maxDeliveryRetries))
	if err != nil {
		if markErr := m.store.MarkFailed(ctx, req.RequestID, &ErrorInfo{
			Code:    "ENQUEUE_FAILED",
			Message: err.Error(),
		}); markErr != nil {
			m.logger.WithError(markErr).WithField("request_id", req.RequestID).Warn("failed to record enqueue failure")
		}
		return fmt.Errorf("enqueue reset task: %w", err)
	}
	m.logger.WithFields(logrus.Fields{
		"request_id": req.RequestID,
		"task_id":    info.ID,
	}).Debug("password reset enqueued")
	return nil
}

func (m *Manager) handleResetTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RequestID == "" {
		return fmt.Errorf("missing requestId in payload: %w", asynq.SkipRetry)
	}

	record, err := m.store.Get(ctx, payload.RequestID)
	if err != nil {
		return err
	}
	if record == nil {
		// 期限切れの要求は配送しない
		m.logger.WithField("request_id", payload.RequestID).Warn("reset request expired before delivery")
		return nil
	}
	if record.Status == StatusSent {
		return nil
	}

	err = m.mailer.SendReset(ctx, ResetMessage{
		RequestID: record.RequestID,
		Email:     record.Email,
		ExpiresAt: record.ExpiresAt,
	})
	if err != nil {
		if markErr := m.store.MarkFailed(ctx, record.RequestID, &ErrorInfo{
			Code:    "DELIVERY_FAILED",
			Message: err.Error(),
		}); markErr != nil {
			m.logger.WithError(markErr).Error("failed to record delivery failure")
		}
		return err
	}
	return m.store.MarkSent(ctx, record.RequestID)
}
