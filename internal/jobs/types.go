package jobs

import "time"

// Status はリセット要求の配送状態を表します。
type Status string

const (
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusFailed Status = "error"
)

// ErrorInfo は配送失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record はパスワードリセット要求の現在状態を表します。
type Record struct {
	RequestID string     `json:"requestId"`
	AccountID string     `json:"accountId"`
	Email     string     `json:"email"`
	Status    Status     `json:"status"`
	Attempts  int        `json:"attempts"`
	Error     *ErrorInfo `json:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}
