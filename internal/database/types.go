// Package database defines the relational store types and repository
// interfaces consumed by the enrollment, matching, and attendance layers.
package database

import "time"

// Tenant is an isolation scope (one faculty account). Identities, classes,
// and attendance records never cross tenants.
type Tenant struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Student is an enrollable identity owned by exactly one tenant.
// Soft-deleted students stay in the table with Active=false; gallery builds
// only ever see the active roster.
type Student struct {
	ID         int64
	TenantID   int64
	Name       string
	RollNumber string
	Email      string
	Active     bool
	CreatedAt  time.Time
}

// Class is the attendance-grouping scope, owned by exactly one tenant.
type Class struct {
	ID        int64
	TenantID  int64
	Name      string
	CreatedAt time.Time
}

// AttendanceRecord is one marked attendance event. At most one record
// exists per (student, class, date); the unique index is the invariant's
// enforcement point.
type AttendanceRecord struct {
	ID          int64
	StudentID   int64
	StudentName string // joined for listings, empty on write paths
	ClassID     int64
	Date        string // YYYY-MM-DD
	TimeIn      time.Time
	TimeOut     *time.Time
	CreatedAt   time.Time
}

// EnrollmentImage is a stored sample reference for one student. Identity to
// sample association lives here, not in filesystem path conventions.
type EnrollmentImage struct {
	ID        int64
	StudentID int64
	Path      string
	CreatedAt time.Time
}

// EnrollmentFace is the face extracted from one enrollment image during
// training, kept for observability and retraining without re-extraction.
type EnrollmentFace struct {
	ID        int64
	StudentID int64
	ImageID   int64
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore  float64
	Dim       int
	CreatedAt time.Time
}

// DateOf formats a timestamp as the attendance date key.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
