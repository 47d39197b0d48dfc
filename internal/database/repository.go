package database

import (
	"context"
	"time"
)

// TenantReader resolves tenants.
type TenantReader interface {
	// Tenant retrieves a tenant by id, returns nil if not found
	Tenant(ctx context.Context, tenantID int64) (*Tenant, error)
	// Tenants lists all tenants
	Tenants(ctx context.Context) ([]Tenant, error)
}

// TenantWriter provides write access to tenants.
type TenantWriter interface {
	TenantReader

	// CreateTenant records a new tenant, returns its id
	CreateTenant(ctx context.Context, name string) (int64, error)
}

// StudentReader provides read access to the enrollment roster.
type StudentReader interface {
	// ActiveStudents returns the current active roster for a tenant,
	// ordered by id. Soft-deleted students are excluded.
	ActiveStudents(ctx context.Context, tenantID int64) ([]Student, error)
	// Student retrieves a student by id regardless of active flag,
	// returns nil if not found
	Student(ctx context.Context, studentID int64) (*Student, error)
	// StudentTenant resolves the owning tenant of a student, 0 if unknown
	StudentTenant(ctx context.Context, studentID int64) (int64, error)
}

// StudentWriter provides write access to the enrollment roster.
type StudentWriter interface {
	StudentReader

	// CreateStudent records a new active student, returns its id
	CreateStudent(ctx context.Context, s Student) (int64, error)
	// SetStudentActive flips the soft-delete flag. Deactivated students
	// keep their attendance history but leave the gallery on the next
	// training run. Returns false when the student does not exist.
	SetStudentActive(ctx context.Context, studentID int64, active bool) (bool, error)
}

// ClassReader provides read access to attendance scopes.
type ClassReader interface {
	// Classes lists a tenant's classes ordered by name
	Classes(ctx context.Context, tenantID int64) ([]Class, error)
	// ClassTenant resolves the owning tenant of a class, 0 if unknown
	ClassTenant(ctx context.Context, classID int64) (int64, error)
}

// ClassWriter provides write access to attendance scopes.
type ClassWriter interface {
	ClassReader

	// CreateClass records a new class for a tenant, returns its id
	CreateClass(ctx context.Context, tenantID int64, name string) (int64, error)
}

// EnrollmentReader provides read access to enrollment samples.
type EnrollmentReader interface {
	// ImagesForStudent returns the stored sample references for a student,
	// ordered by id
	ImagesForStudent(ctx context.Context, studentID int64) ([]EnrollmentImage, error)
	// FacesForStudent returns the extracted enrollment faces for a student
	FacesForStudent(ctx context.Context, studentID int64) ([]EnrollmentFace, error)
}

// EnrollmentWriter provides write access to enrollment samples.
type EnrollmentWriter interface {
	EnrollmentReader

	// AddImage records a stored sample reference for a student
	AddImage(ctx context.Context, studentID int64, path string) (int64, error)
	// ReplaceFaces replaces all extracted faces for a student with the
	// given set (called once per student per training run)
	ReplaceFaces(ctx context.Context, studentID int64, faces []EnrollmentFace) error
}

// AttendanceReader provides read access to attendance records.
type AttendanceReader interface {
	// RecordsByDate lists a tenant's attendance records for one date,
	// joined with student names, ordered by time in
	RecordsByDate(ctx context.Context, tenantID int64, date string) ([]AttendanceRecord, error)
	// HasRecord checks whether an event exists for (student, class, date)
	HasRecord(ctx context.Context, studentID, classID int64, date string) (bool, error)
}

// AttendanceWriter provides write access to attendance records.
type AttendanceWriter interface {
	AttendanceReader

	// InsertIfAbsent atomically records attendance for (student, class,
	// date) unless a record already exists. Returns true when a new record
	// was inserted, false when one was already present. The check and
	// insert happen inside a single statement or transaction so two
	// near-simultaneous callers can never both insert.
	InsertIfAbsent(ctx context.Context, studentID, classID int64, date string, timeIn time.Time) (bool, error)

	// DeleteAll removes every attendance record (administrative bulk
	// reset). Returns the number of deleted records.
	DeleteAll(ctx context.Context) (int64, error)
}
