package patient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	db querier
}

// NewRepo returns a PostgreSQL repository. db is usually a *pgxpool.Pool.
func NewRepo(db querier) Repository {
	return &repoPG{db: db}
}

// columnExpr maps a selectable column to its SELECT expression. Values come
// back as JSON-ready Go types: ids as text, born_date as YYYY-MM-DD.
var columnExpr = map[string]string{
	"id":        "id::text",
	"owner_id":  "owner_id::text",
	"born_date": "to_char(born_date, 'YYYY-MM-DD')",
}

func selectList(cols []string) string {
	exprs := make([]string, len(cols))
	for i, c := range cols {
		if e, ok := columnExpr[c]; ok {
			exprs[i] = e + " AS " + c
		} else {
			exprs[i] = c
		}
	}
	return strings.Join(exprs, ", ")
}

// patientCols is scanned by scanPatient; order matters.
var patientCols = "id, owner_id, " + selectList(WritableFields) + ", created_at, updated_at"

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	dest := []interface{}{&p.ID, &p.OwnerID}
	for _, f := range p.Input.fields() {
		dest = append(dest, f)
	}
	dest = append(dest, &p.CreatedAt, &p.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// insertSQL binds $1 id, $2 owner_id, then the writable fields.
var insertSQL = func() string {
	ph := make([]string, len(WritableFields))
	for i, f := range WritableFields {
		ph[i] = placeholder(f, i+3)
	}
	return "INSERT INTO patients (id, owner_id, " + strings.Join(WritableFields, ", ") + ")\n" +
		"VALUES ($1, $2, " + strings.Join(ph, ", ") + ")\n" +
		"RETURNING " + patientCols
}()

// updateSQL binds $1 owner_id, $2 id, then the writable fields.
var updateSQL = func() string {
	sets := make([]string, len(WritableFields))
	for i, f := range WritableFields {
		sets[i] = f + " = " + placeholder(f, i+3)
	}
	return "UPDATE patients SET " + strings.Join(sets, ", ") + ", updated_at = NOW()\n" +
		"WHERE owner_id = $1 AND id = $2\n" +
		"RETURNING " + patientCols
}()

func placeholder(field string, n int) string {
	p := "$" + strconv.Itoa(n)
	if field == "born_date" {
		return p + "::text::date"
	}
	return p
}

func (r *repoPG) Create(ctx context.Context, ownerID uuid.UUID, in Input) (*Patient, error) {
	args := append([]interface{}{uuid.New(), ownerID}, in.values()...)
	p, err := scanPatient(r.db.QueryRow(ctx, insertSQL, args...))
	if err != nil {
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return p, nil
}

func (r *repoPG) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.db.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE owner_id = $1 AND id = $2`, ownerID, id))
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, ownerID, id uuid.UUID, in Input) (*Patient, error) {
	args := append([]interface{}{ownerID, id}, in.values()...)
	p, err := scanPatient(r.db.QueryRow(ctx, updateSQL, args...))
	if err != nil {
		return nil, fmt.Errorf("update patient %s: %w", id, err)
	}
	return p, nil
}

func (r *repoPG) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete patient %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete patient %s: %w", id, ErrNotFound)
	}
	return nil
}

// listWhere builds the owner scope and the optional name filter. The search
// term is always a bound parameter.
func listWhere(ownerID uuid.UUID, search string) (string, []interface{}) {
	where := "owner_id = $1"
	args := []interface{}{ownerID}
	if search != "" {
		args = append(args, search)
		where += " AND strpos(first_name || ' ' || last_name, $" + strconv.Itoa(len(args)) + ") > 0"
	}
	return where, args
}

// buildListSQL returns the row query and, when paging, the count query.
// Columns must already be allow-listed.
func buildListSQL(ownerID uuid.UUID, q ListQuery) (rowsSQL, countSQL string, args []interface{}, cols []string) {
	cols = q.Columns
	if len(cols) == 0 {
		cols = Columns
	}

	where, args := listWhere(ownerID, q.Search)
	rowsSQL = "SELECT " + selectList(cols) + " FROM patients WHERE " + where +
		" ORDER BY last_name, first_name, id"
	if q.Limit > 0 {
		rowsSQL += fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset)
		countSQL = "SELECT COUNT(*) FROM patients WHERE " + where
	}
	return rowsSQL, countSQL, args, cols
}

func (r *repoPG) List(ctx context.Context, ownerID uuid.UUID, q ListQuery) ([]Row, int, error) {
	for _, c := range q.Columns {
		if !IsColumn(c) {
			return nil, 0, fmt.Errorf("list patients: column %q is not selectable", c)
		}
	}

	rowsSQL, countSQL, args, cols := buildListSQL(ownerID, q)

	rows, err := r.db.Query(ctx, rowsSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Row, error) {
		vals, err := row.Values()
		if err != nil {
			return Row{}, err
		}
		return NewRow(cols, vals), nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan patients: %w", err)
	}

	total := len(out)
	if countSQL != "" {
		if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count patients: %w", err)
		}
	}
	return out, total, nil
}
