package mariadb

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// RecordsByDate lists a tenant's attendance records for one date, joined
// with student names, ordered by time in.
func (p *Pool) RecordsByDate(ctx context.Context, tenantID int64, date string) ([]database.AttendanceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, s.name, a.class_id,
		       DATE_FORMAT(a.date, '%Y-%m-%d'), a.time_in, a.time_out, a.created_at
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		WHERE s.tenant_id = ? AND a.date = ?
		ORDER BY a.time_in
	`, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("query attendance for tenant %d on %s: %w", tenantID, date, err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var r database.AttendanceRecord
		if err := rows.Scan(&r.ID, &r.StudentID, &r.StudentName, &r.ClassID,
			&r.Date, &r.TimeIn, &r.TimeOut, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// HasRecord checks whether an event exists for (student, class, date).
func (p *Pool) HasRecord(ctx context.Context, studentID, classID int64, date string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance
			WHERE student_id = ? AND class_id = ? AND date = ?
		)
	`, studentID, classID, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance record: %w", err)
	}
	return exists, nil
}

// InsertIfAbsent atomically records attendance for (student, class, date)
// unless a record already exists. INSERT IGNORE plays the role the
// Postgres conflict clause plays: the unique key on (student_id,
// class_id, date) lets exactly one of two racing inserts win.
func (p *Pool) InsertIfAbsent(ctx context.Context, studentID, classID int64, date string, timeIn time.Time) (bool, error) {
	result, err := p.db.ExecContext(ctx, `
		INSERT IGNORE INTO attendance (student_id, class_id, date, time_in)
		VALUES (?, ?, ?, ?)
	`, studentID, classID, date, timeIn)
	if err != nil {
		return false, fmt.Errorf("insert attendance record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read affected rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteAll removes every attendance record. Returns the number of deleted
// records.
func (p *Pool) DeleteAll(ctx context.Context) (int64, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM attendance`)
	if err != nil {
		return 0, fmt.Errorf("delete attendance records: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read deleted rows: %w", err)
	}
	return deleted, nil
}
