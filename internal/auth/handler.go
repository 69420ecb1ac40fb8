package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/signin-gateway/internal/accounts"
)

const (
	// SessionCookieName はトークンを保持する署名付きクッキーの名前です。
	SessionCookieName = "sg_session"
	sessionKeyToken   = "auth_token"

	// ContextUserKey は RequireUser が解決したアカウントを格納するキーです。
	ContextUserKey = "auth.user"
)

// Gateway は HTTP ハンドラーが利用する認証操作です。
type Gateway interface {
	GetConfig(ctx context.Context) RedirectConfig
	CheckEmail(ctx context.Context, email string) (CheckEmailResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Register(ctx context.Context, email, password, name string) (*AuthResult, error)
	ResetPassword(ctx context.Context, email string) ResetResult
	CurrentUser(ctx context.Context, token string) (*accounts.PublicAccount, error)
}

// Handler は /auth/* の gin ハンドラー群です。
type Handler struct {
	gw     Gateway
	logger logrus.FieldLogger
}

// NewHandler は Handler を作成します。
func NewHandler(gw Gateway, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{gw: gw, logger: logger}
}

// Mount はルートグループにエンドポイントを登録します。
func (h *Handler) Mount(rg *gin.RouterGroup) {
	rg.GET("/config", h.GetConfig)
	rg.POST("/check-email", h.CheckEmail)
	rg.POST("/login", h.Login)
	rg.POST("/register", h.Register)
	rg.POST("/forgot-password", h.ForgotPassword)
	rg.GET("/me", h.RequireUser(), h.Me)
	rg.POST("/logout", h.Logout)
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// GetConfig は GET /config のハンドラーです。
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.gw.GetConfig(c.Request.Context()))
}

// CheckEmail は POST /check-email のハンドラーです。
func (h *Handler) CheckEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, MsgEmailRequired)
		return
	}
	result, err := h.gw.CheckEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.respondWithError(c, err, "Email check failed.")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Login は POST /login のハンドラーです。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, "Please enter your email and password.")
		return
	}
	result, err := h.gw.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondWithError(c, err, "Login failed. Please try again.")
		return
	}
	h.saveSessionToken(c, result.Token)
	c.JSON(http.StatusOK, result)
}

// Register は POST /register のハンドラーです。
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, "Please enter a valid email, password and name.")
		return
	}
	result, err := h.gw.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.respondWithError(c, err, "Registration failed. Please try again.")
		return
	}
	h.saveSessionToken(c, result.Token)
	c.JSON(http.StatusCreated, result)
}

// ForgotPassword は POST /forgot-password のハンドラーです。
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, MsgEmailRequired)
		return
	}
	c.JSON(http.StatusOK, h.gw.ResetPassword(c.Request.Context(), req.Email))
}

// Me は GET /me のハンドラーです。RequireUser の後段で使います。
func (h *Handler) Me(c *gin.Context) {
	user, ok := c.Get(ContextUserKey)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": MsgUnauthorized,
		})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Logout は POST /logout のハンドラーです。サーバー側のクッキーセッションを破棄します。
func (h *Handler) Logout(c *gin.Context) {
	if session := defaultSession(c); session != nil {
		session.Clear()
		if err := session.Save(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "SESSION_SAVE_FAILED",
				"message": "Logout failed. Please try again.",
			})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// RequireUser は Bearer トークン（無ければセッションクッキー）からアカウントを解決するミドルウェアです。
func (h *Handler) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": MsgUnauthorized,
			})
			return
		}
		if token == "" {
			token = h.sessionToken(c)
		}

		user, err := h.gw.CurrentUser(c.Request.Context(), token)
		if err != nil {
			// 解決できない場合は原因に関わらず 401 を返し、セッションも破棄する
			if session := defaultSession(c); session != nil {
				session.Clear()
				_ = session.Save()
			}
			if !errors.Is(err, ErrUnauthenticated) {
				h.logger.WithError(err).Error("failed to resolve current user")
				err = errUnauthenticated(MsgUnauthorized)
			}
			h.respondWithError(c, err, MsgUnauthorized)
			c.Abort()
			return
		}
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// bearerToken はヘッダー値からトークンを取り出します。
// ヘッダーが無い場合は ("", true)、Bearer 以外の形式は ("", false) を返します。
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", true
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

func (h *Handler) saveSessionToken(c *gin.Context, token string) {
	session := defaultSession(c)
	if session == nil {
		return
	}
	session.Set(sessionKeyToken, token)
	if err := session.Save(); err != nil {
		h.logger.WithError(err).Warn("failed to save session cookie")
	}
}

func (h *Handler) sessionToken(c *gin.Context) string {
	session := defaultSession(c)
	if session == nil {
		return ""
	}
	token, _ := session.Get(sessionKeyToken).(string)
	return token
}

// defaultSession は sessions ミドルウェアが無い場合に nil を返します。
func defaultSession(c *gin.Context) sessions.Session {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil
	}
	return sessions.Default(c)
}

func respondInvalidInput(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "INVALID_INPUT",
		"message": message,
	})
}

func (h *Handler) respondWithError(c *gin.Context, err error, fallback string) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		c.JSON(statusFor(err), gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "The request was canceled.",
		})
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": fallback,
		})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "INTERNAL_ERROR"
}
