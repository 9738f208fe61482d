// Package db implements the Persistence Gateway (§4.B): a single
// query-builder abstraction that every entity shares, built over
// database/sql and lib/pq the way the reference platform hand-writes SQL per
// entity, generalized so handlers compose filter maps instead of
// string-concatenating predicates.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/obsplane/observability/internal/logger"
)

// ColumnKind declares how a column's filter/create/update values coerce.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindJSON
)

// Column is one declared column of an entity's Schema.
type Column struct {
	Name string
	Kind ColumnKind
	// PasswordShadow marks this column as the hashed destination for a
	// caller-supplied "password" value (§4.B: update's password shadow rule).
	PasswordShadow bool
}

// Schema describes one entity's table to the generic gateway.
type Schema struct {
	Table             string
	Columns           []Column
	TextSearchColumns []string
}

func (s Schema) column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ListParams are the §4.B / §6 list query parameters.
type ListParams struct {
	Limit     int
	Offset    int
	OrderBy   string
	Order     string // "asc" | "desc"
	Search    string
	Filters   map[string]any // raw "field__op" -> value
	IncludeSoftDeleted bool
}

// Page is the result of a list call: the slice plus the un-paginated total.
type Page struct {
	Rows  []map[string]any
	Total int
}

// Gateway is the generic CRUD implementation shared by every entity.
type Gateway struct {
	db     *sql.DB
	schema Schema
}

// NewGateway binds a Schema to a live connection pool.
func NewGateway(db *sql.DB, schema Schema) *Gateway {
	return &Gateway{db: db, schema: schema}
}

func (g *Gateway) normalizeListParams(p ListParams) (ListParams, error) {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 1000 {
		return p, fmt.Errorf("limit must be <= 1000")
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.OrderBy == "" {
		p.OrderBy = "id"
	}
	if _, ok := g.schema.column(p.OrderBy); !ok && p.OrderBy != "id" {
		return p, fmt.Errorf("unknown order_by column %q", p.OrderBy)
	}
	if p.Order == "" {
		p.Order = "asc"
	}
	if p.Order != "asc" && p.Order != "desc" {
		return p, fmt.Errorf("order must be asc or desc")
	}
	return p, nil
}

// buildWhere renders the soft-delete predicate, filter map, and search term
// into one WHERE clause plus its bind arguments.
func (g *Gateway) buildWhere(p ListParams) (string, []any, error) {
	var clauses []string
	var args []any

	if !p.IncludeSoftDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}

	// Deterministic order so generated SQL (and therefore tests) is stable.
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	for _, key := range keys {
		field, op, err := ParseFilterKey(key)
		if err != nil {
			return "", nil, err
		}
		col, ok := g.schema.column(field)
		if !ok {
			switch field {
			case "id":
				col, ok = Column{Name: field, Kind: KindInt}, true
			case "created_at", "updated_at", "deleted_at":
				col, ok = Column{Name: field, Kind: KindTime}, true
			}
		}
		if !ok {
			return "", nil, fmt.Errorf("unknown filter field %q", field)
		}
		clause, newArgs, err := buildPredicate(Filter{Field: field, Op: op, Value: p.Filters[key]}, col, args)
		if err != nil {
			return "", nil, err
		}
		args = newArgs
		clauses = append(clauses, clause)
	}

	if p.Search != "" && len(g.schema.TextSearchColumns) > 0 {
		var ors []string
		for _, col := range g.schema.TextSearchColumns {
			args = append(args, "%"+p.Search+"%")
			ors = append(ors, fmt.Sprintf("%s ILIKE $%d", col, len(args)))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}

	if len(clauses) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// List implements §4.B's list({...}) -> {data, total}.
func (g *Gateway) List(ctx context.Context, p ListParams) (Page, error) {
	p, err := g.normalizeListParams(p)
	if err != nil {
		return Page{}, err
	}
	where, args, err := g.buildWhere(p)
	if err != nil {
		return Page{}, err
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", g.schema.Table, where)
	var total int
	if err := g.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count: %w", err)
	}

	columns := g.selectColumns()
	// A stable tie-break on id is always appended (§4.B).
	orderClause := fmt.Sprintf(" ORDER BY %s %s, id ASC", p.OrderBy, strings.ToUpper(p.Order))
	limitArgs := append(append([]any{}, args...), p.Limit, p.Offset)
	query := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT $%d OFFSET $%d",
		strings.Join(columns, ", "), g.schema.Table, where, orderClause, len(args)+1, len(args)+2)

	rows, err := g.db.QueryContext(ctx, query, limitArgs...)
	if err != nil {
		return Page{}, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	data, err := scanRows(rows, columns)
	if err != nil {
		return Page{}, err
	}
	return Page{Rows: data, Total: total}, nil
}

func (g *Gateway) selectColumns() []string {
	out := []string{"id", "created_at", "updated_at", "deleted_at"}
	for _, c := range g.schema.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Get implements §4.B's get(id) -> row | null.
func (g *Gateway) Get(ctx context.Context, id int) (map[string]any, error) {
	page, err := g.List(ctx, ListParams{Limit: 1, Filters: map[string]any{"id__eq": id}})
	if err != nil {
		return nil, err
	}
	if len(page.Rows) == 0 {
		return nil, nil
	}
	return page.Rows[0], nil
}

// GetFirst implements §4.B's getFirst({order_by, order, filters}) -> row | null.
func (g *Gateway) GetFirst(ctx context.Context, p ListParams) (map[string]any, error) {
	p.Limit = 1
	p.Offset = 0
	page, err := g.List(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(page.Rows) == 0 {
		return nil, nil
	}
	return page.Rows[0], nil
}

// Create implements §4.B's create(values) -> row. It drops any
// caller-supplied id/created_at/updated_at/deleted_at/embedding, hashes a
// "password" shadow field if present, and recomputes embedding.
func (g *Gateway) Create(ctx context.Context, values map[string]any) (map[string]any, error) {
	clean := map[string]any{}
	for k, v := range values {
		if k == "id" || k == "created_at" || k == "updated_at" || k == "deleted_at" || k == "embedding" {
			continue
		}
		clean[k] = v
	}
	if err := g.applyPasswordShadow(clean); err != nil {
		return nil, err
	}

	cols := []string{}
	placeholders := []string{}
	args := []any{}
	for _, c := range g.schema.Columns {
		v, ok := clean[c.Name]
		if !ok {
			continue
		}
		cols = append(cols, c.Name)
		args = append(args, v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	cols = append(cols, "embedding")
	args = append(args, embeddingLiteral(computeEmbedding(clean)))
	placeholders = append(placeholders, fmt.Sprintf("$%d::vector(%d)", len(args), EmbeddingDimensions))

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		g.schema.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
		strings.Join(g.selectColumns(), ", "))

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	defer rows.Close()
	result, err := scanRows(rows, g.selectColumns())
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("create: no row returned")
	}
	return result[0], nil
}

// Update implements §4.B's update(id, values) -> row | null.
func (g *Gateway) Update(ctx context.Context, id int, values map[string]any) (map[string]any, error) {
	clean := map[string]any{}
	for k, v := range values {
		if k == "id" || k == "created_at" || k == "updated_at" || k == "deleted_at" || k == "embedding" {
			continue
		}
		clean[k] = v
	}
	if err := g.applyPasswordShadow(clean); err != nil {
		return nil, err
	}
	if len(clean) == 0 {
		return g.Get(ctx, id)
	}

	sets := []string{"updated_at = now()"}
	args := []any{}
	for _, c := range g.schema.Columns {
		v, ok := clean[c.Name]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Name, len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d AND deleted_at IS NULL RETURNING %s",
		g.schema.Table, strings.Join(sets, ", "), len(args), strings.Join(g.selectColumns(), ", "))

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	defer rows.Close()
	result, err := scanRows(rows, g.selectColumns())
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result[0], nil
}

// Delete implements §4.B's delete(id, soft) -> row | null.
func (g *Gateway) Delete(ctx context.Context, id int, soft bool) (map[string]any, error) {
	if soft {
		query := fmt.Sprintf("UPDATE %s SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL RETURNING %s",
			g.schema.Table, strings.Join(g.selectColumns(), ", "))
		rows, err := g.db.QueryContext(ctx, query, id)
		if err != nil {
			return nil, fmt.Errorf("soft delete: %w", err)
		}
		defer rows.Close()
		result, err := scanRows(rows, g.selectColumns())
		if err != nil {
			return nil, err
		}
		if len(result) == 0 {
			return nil, nil
		}
		return result[0], nil
	}

	prior, err := g.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}
	if _, err := g.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", g.schema.Table), id); err != nil {
		return nil, fmt.Errorf("hard delete: %w", err)
	}
	return prior, nil
}

// applyPasswordShadow hashes a caller-supplied "password" field into the
// schema's designated PasswordShadow column (§4.B).
func (g *Gateway) applyPasswordShadow(values map[string]any) error {
	raw, ok := values["password"]
	if !ok {
		return nil
	}
	delete(values, "password")
	plain, ok := raw.(string)
	if !ok {
		return fmt.Errorf("password must be a string")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	for _, c := range g.schema.Columns {
		if c.PasswordShadow {
			values[c.Name] = string(hash)
		}
	}
	return nil
}

func scanRows(rows *sql.Rows, columns []string) ([]map[string]any, error) {
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := map[string]any{}
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// HealthPing executes a bare SELECT 1, used by the Health aggregation
// handler (§4.E) and the HEALTH_CHECK job (§4.C default rule).
func HealthPing(ctx context.Context, sqlDB *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var one int
	if err := sqlDB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		logger.Gateway().Warn().Err(err).Msg("database health ping failed")
		return err
	}
	return nil
}
