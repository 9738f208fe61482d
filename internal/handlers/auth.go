package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
	"github.com/obsplane/observability/internal/auth"
	"github.com/obsplane/observability/internal/db"
	"github.com/obsplane/observability/internal/models"
)

// AuthHandler serves login/refresh/logout/me over the users Gateway, the JWT
// manager, and the refresh-token store.
type AuthHandler struct {
	users    *db.Gateway
	jwt      *auth.JWTManager
	refresh  *auth.RefreshTokens
}

// NewAuthHandler binds the collaborators AuthHandler needs.
func NewAuthHandler(users *db.Gateway, jwt *auth.JWTManager, refresh *auth.RefreshTokens) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt, refresh: refresh}
}

// RegisterRoutes mounts the pre-authentication auth routes under router.
// Me is registered separately by the caller on a bearer-protected group,
// since it needs RequireAuth to have already run.
func (h *AuthHandler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/auth/login", h.Login)
	router.POST("/auth/refresh", h.Refresh)
	router.POST("/auth/logout", h.Logout)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"expiresAt"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.Validation(bindIssues(err)))
		return
	}

	page, err := h.users.List(c.Request.Context(), db.ListParams{
		Limit: 1, Filters: map[string]any{"email__eq": req.Email},
	})
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to look up user", err))
		return
	}
	if len(page.Rows) == 0 {
		apperr.Abort(c, apperr.Unauthorized("invalid email or password"))
		return
	}
	row := page.Rows[0]

	hash, _ := row["password_hash"].(string)
	if !auth.CheckPassword(hash, req.Password) {
		apperr.Abort(c, apperr.Unauthorized("invalid email or password"))
		return
	}

	user := rowToUser(row)
	accessToken, _, err := h.jwt.GenerateAccessToken(user)
	if err != nil {
		apperr.Handle(c, apperr.Fatal(err))
		return
	}
	refreshToken, expiresAt, err := h.refresh.Issue(c.Request.Context(), user.ID, c.GetHeader("X-Device-Fingerprint"), c.ClientIP())
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to issue refresh token", err))
		return
	}

	respondData(c, http.StatusOK, tokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.Format(http.TimeFormat),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.Validation(bindIssues(err)))
		return
	}

	row, err := h.refresh.Validate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to validate refresh token", err))
		return
	}
	if row == nil {
		apperr.Abort(c, apperr.Unauthorized("Invalid or expired refresh token"))
		return
	}

	userRow, err := h.users.Get(c.Request.Context(), asInt(row["user_id"]))
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to look up user", err))
		return
	}
	if userRow == nil {
		apperr.Abort(c, apperr.Unauthorized("Invalid refresh token"))
		return
	}

	user := rowToUser(userRow)
	accessToken, expiresAt, err := h.jwt.GenerateAccessToken(user)
	if err != nil {
		apperr.Handle(c, apperr.Fatal(err))
		return
	}
	respondData(c, http.StatusOK, gin.H{
		"accessToken": accessToken,
		"expiresAt":   expiresAt.Format(http.TimeFormat),
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.Validation(bindIssues(err)))
		return
	}

	row, err := h.refresh.Validate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to validate refresh token", err))
		return
	}
	if row == nil {
		respondData(c, http.StatusOK, gin.H{"loggedOut": true})
		return
	}
	if err := h.refresh.Revoke(c.Request.Context(), db.RowID(row)); err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to revoke refresh token", err))
		return
	}
	respondData(c, http.StatusOK, gin.H{"loggedOut": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		apperr.Abort(c, apperr.Unauthorized("missing bearer token"))
		return
	}
	row, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to fetch user", err))
		return
	}
	if row == nil {
		apperr.Abort(c, apperr.NotFound("user"))
		return
	}
	respondData(c, http.StatusOK, sanitizeUserRow(row))
}

func rowToUser(row map[string]any) models.User {
	u := models.User{}
	u.ID = db.RowID(row)
	u.Email, _ = row["email"].(string)
	if role, ok := row["role"].(string); ok {
		u.Role = models.Role(role)
	}
	return u
}
