package auth

import "errors"

var (
	// ErrAuthentication はメールアドレスとパスワードの組が一致しない場合のエラーです。
	ErrAuthentication = errors.New("authentication failed")
	// ErrConflict はメールアドレスが登録済みの場合のエラーです。
	ErrConflict = errors.New("email already registered")
	// ErrUnauthenticated はトークンが無い、または解決できない場合のエラーです。
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidInput は入力値が要件を満たさない場合のエラーです。
	ErrInvalidInput = errors.New("invalid input")
)

// ユーザー向けメッセージ。
const (
	MsgInvalidCredentials = "Your account or password is incorrect. If you don't remember your password, reset it now."
	MsgEmailTaken         = "That email address is already taken."
	MsgResetRequested     = "If that email address is in our database, we will send you an email to reset your password."
	MsgUnauthorized       = "Unauthorized"
	MsgInvalidToken       = "Invalid or expired token"
	MsgUserNotFound       = "User not found"
	MsgPasswordTooShort   = "Password must be at least 8 characters long."
	MsgNameRequired       = "Please enter your name."
	MsgEmailRequired      = "Enter a valid email address, phone number, or Skype name."
)

// Error はAPIレスポンスに載せるコードとメッセージを持つエラーです。
// errors.Is で分類用の番兵エラー（ErrAuthentication 等）と比較できます。
type Error struct {
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

func newError(kind error, code, message string) *Error {
	return &Error{Code: code, Message: message, Err: kind}
}

func errInvalidCredentials() error {
	return newError(ErrAuthentication, "INVALID_CREDENTIALS", MsgInvalidCredentials)
}

func errEmailTaken() error {
	return newError(ErrConflict, "EMAIL_TAKEN", MsgEmailTaken)
}

func errUnauthenticated(message string) error {
	return newError(ErrUnauthenticated, "UNAUTHORIZED", message)
}

func errInvalidInput(message string) error {
	return newError(ErrInvalidInput, "INVALID_INPUT", message)
}
