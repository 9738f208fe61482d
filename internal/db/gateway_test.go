package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUsersSchema() Schema {
	return Schema{
		Table: "users",
		Columns: []Column{
			{Name: "email", Kind: KindString},
			{Name: "password_hash", Kind: KindString, PasswordShadow: true},
			{Name: "role", Kind: KindString},
		},
		TextSearchColumns: []string{"email"},
	}
}

func TestGateway_List_AppliesFilterAndPagination(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gw := NewGateway(sqlDB, testUsersSchema())

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE deleted_at IS NULL AND email = \\$1").
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery("SELECT .* FROM users WHERE deleted_at IS NULL AND email = \\$1 ORDER BY id ASC, id ASC LIMIT \\$2 OFFSET \\$3").
		WithArgs("a@example.com", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "deleted_at", "email", "password_hash", "role"}).
			AddRow(1, nil, nil, nil, "a@example.com", "hash", "user"))

	page, err := gw.List(context.Background(), ListParams{Filters: map[string]any{"email__eq": "a@example.com"}})

	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Len(t, page.Rows, 1)
	assert.Equal(t, "a@example.com", page.Rows[0]["email"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_List_RejectsLimitOver1000(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gw := NewGateway(sqlDB, testUsersSchema())
	_, err = gw.List(context.Background(), ListParams{Limit: 5000})
	assert.Error(t, err)
}

func TestGateway_Get_ReturnsNilWhenMissing(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gw := NewGateway(sqlDB, testUsersSchema())

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT .* FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "deleted_at", "email", "password_hash", "role"}))

	row, err := gw.Get(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestGateway_Create_HashesPasswordShadowAndRecomputesEmbedding(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gw := NewGateway(sqlDB, testUsersSchema())

	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "deleted_at", "email", "password_hash", "role"}).
			AddRow(1, nil, nil, nil, "a@example.com", "$2a$...", "user"))

	row, err := gw.Create(context.Background(), map[string]any{
		"email":    "a@example.com",
		"password": "super-secret",
		"role":     "user",
		"id":       999, // caller-supplied id must be dropped
	})

	require.NoError(t, err)
	assert.Equal(t, "a@example.com", row["email"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_Delete_Soft_UpdatesDeletedAt(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gw := NewGateway(sqlDB, testUsersSchema())

	mock.ExpectQuery("UPDATE users SET deleted_at = now\\(\\) WHERE id = \\$1 AND deleted_at IS NULL RETURNING").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "deleted_at", "email", "password_hash", "role"}).
			AddRow(1, nil, nil, nil, "a@example.com", "hash", "user"))

	row, err := gw.Delete(context.Background(), 1, true)
	require.NoError(t, err)
	assert.NotNil(t, row)
	require.NoError(t, mock.ExpectationsWereMet())
}
