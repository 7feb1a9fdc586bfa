package database

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/bistro-pos/api/internal/enum"
)

const employeeColumns = `id, username, full_name, pin_hash, role, is_active, created_at, updated_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Username, &e.FullName, &e.PinHash, &e.Role,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// ListEmployees returns all active staff accounts.
func (q *Queries) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+employeeColumns+`
		FROM employees WHERE is_active ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEmployeeByUsername fetches an active account for login.
func (q *Queries) GetEmployeeByUsername(ctx context.Context, username string) (Employee, error) {
	return scanEmployee(q.db.QueryRow(ctx, `
		SELECT `+employeeColumns+`
		FROM employees WHERE username = $1 AND is_active`, username))
}

// CreateEmployeeParams are the fields for a new staff account.
type CreateEmployeeParams struct {
	Username string
	FullName string
	PinHash  string
	Role     enum.Role
}

// CreateEmployee inserts a new active staff account.
func (q *Queries) CreateEmployee(ctx context.Context, arg CreateEmployeeParams) (Employee, error) {
	return scanEmployee(q.db.QueryRow(ctx, `
		INSERT INTO employees (username, full_name, pin_hash, role, is_active)
		VALUES ($1, $2, $3, $4, true)
		RETURNING `+employeeColumns,
		arg.Username, arg.FullName, arg.PinHash, arg.Role))
}

// UpdateEmployeeParams rewrite an account; PinHash empty means keep
// the current one.
type UpdateEmployeeParams struct {
	ID       int64
	Username string
	FullName string
	PinHash  string
	Role     enum.Role
}

// UpdateEmployee updates account fields, keeping the stored PIN hash
// when none is supplied.
func (q *Queries) UpdateEmployee(ctx context.Context, arg UpdateEmployeeParams) (Employee, error) {
	return scanEmployee(q.db.QueryRow(ctx, `
		UPDATE employees
		SET username = $2, full_name = $3,
		    pin_hash = CASE WHEN $4 = '' THEN pin_hash ELSE $4 END,
		    role = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+employeeColumns,
		arg.ID, arg.Username, arg.FullName, arg.PinHash, arg.Role))
}

// DeactivateEmployee soft-deletes an account so past shifts stay
// attributable.
func (q *Queries) DeactivateEmployee(ctx context.Context, id int64) (int64, error) {
	var out int64
	err := q.db.QueryRow(ctx, `
		UPDATE employees SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active
		RETURNING id`, id).Scan(&out)
	return out, err
}
