package users

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/auth"
	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/shared/server/respond"
)

// RefreshCookieName is the httpOnly cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	IssueAccess(id auth.Identity) (string, time.Time, error)
	IssueRefresh(id auth.Identity) (string, time.Time, error)
	VerifyRefresh(token string) (auth.Claims, error)
	RefreshTTL() time.Duration
}

type Handler struct {
	Svc           *Service
	Tokens        TokenIssuer
	SecureCookies bool
}

func NewHandler(svc *Service, tokens TokenIssuer, secureCookies bool) *Handler {
	return &Handler{Svc: svc, Tokens: tokens, SecureCookies: secureCookies}
}

// RegisterPublicRoutes attaches the credential endpoints.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/refresh", h.refresh)
	rg.POST("/auth/logout", h.logout)
}

// RegisterRoutes attaches endpoints that require an access token.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/me", h.me)
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	user, err := h.Svc.Register(c.Request.Context(), RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", validationMessage(err), nil)
		case errors.Is(err, ErrEmailTaken):
			respond.Error(c, http.StatusConflict, "email_taken", "Email already registered", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Registration failed", nil)
		}
		return
	}
	h.issueSession(c, http.StatusCreated, "User registered successfully", user)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	user, err := h.Svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", validationMessage(err), nil)
		case errors.Is(err, ErrInvalidCredentials):
			respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Login failed", nil)
		}
		return
	}
	h.issueSession(c, http.StatusOK, "Login successful", user)
}

func (h *Handler) refresh(c *gin.Context) {
	token, _ := c.Cookie(RefreshCookieName)
	if strings.TrimSpace(token) == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}
	if strings.TrimSpace(token) == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Refresh token not found", nil)
		return
	}
	claims, err := h.Tokens.VerifyRefresh(token)
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Token refresh failed", nil)
		return
	}
	user, err := h.Svc.GetByID(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Token refresh failed", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Token refresh failed", nil)
		return
	}
	access, expiresAt, err := h.Tokens.IssueAccess(identityOf(user))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Token refresh failed", nil)
		return
	}
	respond.OK(c, gin.H{"accessToken": access, "expiresAt": expiresAt})
}

func (h *Handler) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, "", -1, "/", "", h.SecureCookies, true)
	respond.OK(c, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	}
	entitlement, err := h.Svc.Entitlement(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load entitlement", nil)
		return
	}
	respond.OK(c, gin.H{
		"user":         user,
		"subscription": entitlement,
	})
}

func (h *Handler) issueSession(c *gin.Context, status int, message string, user User) {
	id := identityOf(user)
	access, _, err := h.Tokens.IssueAccess(id)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}
	refresh, _, err := h.Tokens.IssueRefresh(id)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, refresh, int(h.Tokens.RefreshTTL().Seconds()), "/", "", h.SecureCookies, true)
	respond.JSON(c, status, gin.H{
		"message":      message,
		"user":         user,
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func identityOf(user User) auth.Identity {
	return auth.Identity{UserID: user.ID, Email: user.Email, Name: user.FullName()}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
	if msg == "" {
		return "invalid request"
	}
	return msg
}
