package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
	"github.com/obsplane/observability/internal/db"
)

// UserHandler serves the public (unauthenticated) §6 user CRUD routes.
type UserHandler struct {
	users *db.Gateway
}

// NewUserHandler binds the users Gateway.
func NewUserHandler(users *db.Gateway) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes mounts the user CRUD routes under router.
func (h *UserHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/users", h.List)
	router.POST("/users", h.Create)
	router.GET("/users/:id", h.Get)
	router.PUT("/users/:id", h.Update)
	router.PATCH("/users/:id", h.Update)
	router.DELETE("/users/:id", h.Delete)
}

var userShortcuts = shortcutFilters{
	"email": "email__eq",
	"role":  "role__eq",
}

func (h *UserHandler) List(c *gin.Context) {
	params := parseListParams(c, userShortcuts)
	page, err := h.users.List(c.Request.Context(), params)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to list users", err))
		return
	}
	respondList(c, sanitizeUserRows(page.Rows), params.Limit, params.Offset, page.Total)
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.Validation(bindIssues(err)))
		return
	}
	if req.Role == "" {
		req.Role = "user"
	}

	row, err := h.users.Create(c.Request.Context(), map[string]any{
		"email":    req.Email,
		"password": req.Password,
		"role":     req.Role,
	})
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to create user", err))
		return
	}
	respondData(c, http.StatusCreated, sanitizeUserRow(row))
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	row, err := h.users.Get(c.Request.Context(), id)
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

type updateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	Role     *string `json:"role"`
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.Validation(bindIssues(err)))
		return
	}

	values := map[string]any{}
	if req.Email != nil {
		values["email"] = *req.Email
	}
	if req.Password != nil {
		values["password"] = *req.Password
	}
	if req.Role != nil {
		values["role"] = *req.Role
	}

	row, err := h.users.Update(c.Request.Context(), id, values)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to update user", err))
		return
	}
	if row == nil {
		apperr.Abort(c, apperr.NotFound("user"))
		return
	}
	respondData(c, http.StatusOK, sanitizeUserRow(row))
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	row, err := h.users.Delete(c.Request.Context(), id, true)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to delete user", err))
		return
	}
	if row == nil {
		apperr.Abort(c, apperr.NotFound("user"))
		return
	}
	respondData(c, http.StatusOK, sanitizeUserRow(row))
}

// sanitizeUserRow strips the password hash from a user row before it is
// serialized into a response. The Gateway's generic row map includes every
// schema column, password_hash among them, since it has no notion of which
// columns are response-safe.
func sanitizeUserRow(row map[string]any) map[string]any {
	if row == nil {
		return nil
	}
	delete(row, "password_hash")
	return row
}

func sanitizeUserRows(rows []map[string]any) []map[string]any {
	for _, row := range rows {
		sanitizeUserRow(row)
	}
	return rows
}

// bindIssues adapts a Gin binding error into the §7 {code, path, message}
// issue shape. Gin's validator does not expose per-field structure beyond its
// error string for binding (vs. validation) failures, so a single
// "body"-scoped issue is the best available granularity.
func bindIssues(err error) []apperr.Issue {
	return []apperr.Issue{{Code: "invalid_body", Path: "body", Message: err.Error()}}
}
