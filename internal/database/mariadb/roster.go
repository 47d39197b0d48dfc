package mariadb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Tenant retrieves a tenant by id, returns nil if not found.
func (p *Pool) Tenant(ctx context.Context, tenantID int64) (*database.Tenant, error) {
	var t database.Tenant
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM tenants WHERE id = ?
	`, tenantID).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query tenant %d: %w", tenantID, err)
	}
	return &t, nil
}

// Tenants lists all tenants.
func (p *Pool) Tenants(ctx context.Context) ([]database.Tenant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM tenants ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []database.Tenant
	for rows.Next() {
		var t database.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return tenants, nil
}

// CreateTenant records a new tenant, returns its id.
func (p *Pool) CreateTenant(ctx context.Context, name string) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO tenants (name) VALUES (?)
	`, name)
	if err != nil {
		return 0, fmt.Errorf("insert tenant %q: %w", name, err)
	}
	return res.LastInsertId()
}

// CreateStudent records a new active student, returns its id.
func (p *Pool) CreateStudent(ctx context.Context, s database.Student) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO students (tenant_id, name, roll_number, email)
		VALUES (?, ?, ?, ?)
	`, s.TenantID, s.Name, s.RollNumber, s.Email)
	if err != nil {
		return 0, fmt.Errorf("insert student %q for tenant %d: %w", s.Name, s.TenantID, err)
	}
	return res.LastInsertId()
}

// SetStudentActive flips the soft-delete flag, returns false when the
// student does not exist. The driver reports changed rows, not matched
// rows, so a no-op update needs the existence re-check.
func (p *Pool) SetStudentActive(ctx context.Context, studentID int64, active bool) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE students SET is_active = ? WHERE id = ?
	`, active, studentID)
	if err != nil {
		return false, fmt.Errorf("update student %d active flag: %w", studentID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update student %d active flag: %w", studentID, err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	err = p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM students WHERE id = ?)
	`, studentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check student %d exists: %w", studentID, err)
	}
	return exists, nil
}

// CreateClass records a new class for a tenant, returns its id.
func (p *Pool) CreateClass(ctx context.Context, tenantID int64, name string) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO classes (tenant_id, name) VALUES (?, ?)
	`, tenantID, name)
	if err != nil {
		return 0, fmt.Errorf("insert class %q for tenant %d: %w", name, tenantID, err)
	}
	return res.LastInsertId()
}

// ActiveStudents returns the current active roster for a tenant, ordered
// by id. Soft-deleted students are excluded.
func (p *Pool) ActiveStudents(ctx context.Context, tenantID int64) ([]database.Student, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, roll_number, email, is_active, created_at
		FROM students
		WHERE tenant_id = ? AND is_active
		ORDER BY id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query active students for tenant %d: %w", tenantID, err)
	}
	defer rows.Close()

	var students []database.Student
	for rows.Next() {
		var s database.Student
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.RollNumber, &s.Email, &s.Active, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// Student retrieves a student by id regardless of active flag, returns nil
// if not found.
func (p *Pool) Student(ctx context.Context, studentID int64) (*database.Student, error) {
	var s database.Student
	err := p.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, roll_number, email, is_active, created_at
		FROM students
		WHERE id = ?
	`, studentID).Scan(&s.ID, &s.TenantID, &s.Name, &s.RollNumber, &s.Email, &s.Active, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query student %d: %w", studentID, err)
	}
	return &s, nil
}

// StudentTenant resolves the owning tenant of a student, 0 if unknown.
func (p *Pool) StudentTenant(ctx context.Context, studentID int64) (int64, error) {
	var tenantID int64
	err := p.db.QueryRowContext(ctx, `
		SELECT tenant_id FROM students WHERE id = ?
	`, studentID).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query student %d tenant: %w", studentID, err)
	}
	return tenantID, nil
}

// Classes lists a tenant's classes ordered by name.
func (p *Pool) Classes(ctx context.Context, tenantID int64) ([]database.Class, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, created_at
		FROM classes
		WHERE tenant_id = ?
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query classes for tenant %d: %w", tenantID, err)
	}
	defer rows.Close()

	var classes []database.Class
	for rows.Next() {
		var c database.Class
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return classes, nil
}

// ClassTenant resolves the owning tenant of a class, 0 if unknown.
func (p *Pool) ClassTenant(ctx context.Context, classID int64) (int64, error) {
	var tenantID int64
	err := p.db.QueryRowContext(ctx, `
		SELECT tenant_id FROM classes WHERE id = ?
	`, classID).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query class %d tenant: %w", classID, err)
	}
	return tenantID, nil
}
