package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsplane/observability/internal/apperr"
	"github.com/obsplane/observability/internal/db"
)

func usersSchema() db.Schema {
	return db.Schema{
		Table: "users",
		Columns: []db.Column{
			{Name: "email", Kind: db.KindString},
			{Name: "password_hash", Kind: db.KindString, PasswordShadow: true},
			{Name: "role", Kind: db.KindString},
		},
		TextSearchColumns: []string{"email"},
	}
}

func TestUserHandler_Get_StripsPasswordHash(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gateway := db.NewGateway(sqlDB, usersSchema())
	handler := NewUserHandler(gateway)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT .* FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "deleted_at", "email", "password_hash", "role"}).
			AddRow(1, nil, nil, nil, "a@example.com", "$2a$10$supersecrethash", "user"))

	engine := newTestEngine()
	handler.RegisterRoutes(engine)

	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var env apperr.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	row, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", row["email"])
	_, hasPasswordHash := row["password_hash"]
	assert.False(t, hasPasswordHash, "password_hash must never reach the response body")
}

func TestUserHandler_Get_NotFound(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gateway := db.NewGateway(sqlDB, usersSchema())
	handler := NewUserHandler(gateway)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT .* FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "deleted_at", "email", "password_hash", "role"}))

	engine := newTestEngine()
	handler.RegisterRoutes(engine)

	req := httptest.NewRequest(http.MethodGet, "/users/404", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserHandler_Get_InvalidID(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gateway := db.NewGateway(sqlDB, usersSchema())
	handler := NewUserHandler(gateway)

	engine := newTestEngine()
	handler.RegisterRoutes(engine)

	req := httptest.NewRequest(http.MethodGet, "/users/not-a-number", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
