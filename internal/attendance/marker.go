// Package attendance records recognition hits as attendance events with
// cross-tenant authorization and once-per-day idempotence.
package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MarkStatus is the outcome of a mark attempt.
type MarkStatus int

const (
	// Recorded means a new attendance event was inserted.
	Recorded MarkStatus = iota
	// AlreadyRecorded means an event for (student, class, date) already existed.
	AlreadyRecorded
	// Unauthorized means the student and class belong to different tenants;
	// nothing was written.
	Unauthorized
)

// String returns the status name for logs and API responses.
func (s MarkStatus) String() string {
	switch s {
	case Recorded:
		return "recorded"
	case AlreadyRecorded:
		return "already_recorded"
	case Unauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// rosterReader is the subset of the repository the marker needs for
// ownership checks.
type rosterReader interface {
	StudentTenant(ctx context.Context, studentID int64) (int64, error)
	ClassTenant(ctx context.Context, classID int64) (int64, error)
}

// Marker records attendance events. The database's unique index on
// (student_id, class_id, date) is the hard idempotence guarantee; the
// in-process keyed mutex on top keeps racing frames from even issuing
// duplicate inserts.
type Marker struct {
	roster  rosterReader
	records database.AttendanceWriter

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMarker creates an attendance marker.
func NewMarker(roster rosterReader, records database.AttendanceWriter) *Marker {
	return &Marker{
		roster:  roster,
		records: records,
		locks:   make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing one (student, class, date) key.
func (m *Marker) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Mark records attendance for a student in a class at the given time.
// The student's owning tenant must match the class's owning tenant,
// otherwise Unauthorized is returned and nothing is written. A repeat
// mark for the same (student, class, date) returns AlreadyRecorded.
func (m *Marker) Mark(ctx context.Context, studentID, classID int64, when time.Time) (MarkStatus, error) {
	studentTenant, err := m.roster.StudentTenant(ctx, studentID)
	if err != nil {
		return Unauthorized, fmt.Errorf("resolve student %d tenant: %w", studentID, err)
	}
	classTenant, err := m.roster.ClassTenant(ctx, classID)
	if err != nil {
		return Unauthorized, fmt.Errorf("resolve class %d tenant: %w", classID, err)
	}
	if studentTenant == 0 || classTenant == 0 || studentTenant != classTenant {
		return Unauthorized, nil
	}

	date := database.DateOf(when)
	key := fmt.Sprintf("%d:%d:%s", studentID, classID, date)
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Read-first keeps repeat frames from issuing write statements all
	// session long; the unique index stays the real guarantee.
	recorded, err := m.records.HasRecord(ctx, studentID, classID, date)
	if err != nil {
		return Unauthorized, fmt.Errorf("check attendance event: %w", err)
	}
	if recorded {
		return AlreadyRecorded, nil
	}

	inserted, err := m.records.InsertIfAbsent(ctx, studentID, classID, date, when)
	if err != nil {
		return Unauthorized, fmt.Errorf("insert attendance event: %w", err)
	}
	if !inserted {
		return AlreadyRecorded, nil
	}
	return Recorded, nil
}

// ResetAll removes every attendance record. Returns the number of deleted
// records.
func (m *Marker) ResetAll(ctx context.Context) (int64, error) {
	deleted, err := m.records.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset attendance: %w", err)
	}
	return deleted, nil
}
