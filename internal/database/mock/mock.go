// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockRoster is a mock implementation of database.TenantWriter,
// database.StudentWriter, and database.ClassWriter.
type MockRoster struct {
	mu       sync.RWMutex
	nextID   int64
	tenants  map[int64]database.Tenant
	students map[int64]database.Student
	classes  map[int64]database.Class

	// Error injection
	TenantError    error
	StudentsError  error
	StudentError   error
	ClassesError   error
	CreateError    error
	SetActiveError error
}

// NewMockRoster creates a new mock roster.
func NewMockRoster() *MockRoster {
	return &MockRoster{
		tenants:  make(map[int64]database.Tenant),
		students: make(map[int64]database.Student),
		classes:  make(map[int64]database.Class),
	}
}

// AddTenant adds a tenant to the mock store.
func (m *MockRoster) AddTenant(t database.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
}

// AddStudent adds a student to the mock store.
func (m *MockRoster) AddStudent(s database.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
}

// AddClass adds a class to the mock store.
func (m *MockRoster) AddClass(c database.Class) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[c.ID] = c
}

// allocID hands out ids that never collide with entries seeded through the
// Add helpers. Callers must hold the write lock.
func (m *MockRoster) allocID() int64 {
	for {
		m.nextID++
		id := m.nextID
		_, t := m.tenants[id]
		_, s := m.students[id]
		_, c := m.classes[id]
		if !t && !s && !c {
			return id
		}
	}
}

// CreateTenant records a new tenant, returns its id.
func (m *MockRoster) CreateTenant(ctx context.Context, name string) (int64, error) {
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.allocID()
	m.tenants[id] = database.Tenant{ID: id, Name: name, CreatedAt: time.Now()}
	return id, nil
}

// CreateStudent records a new active student, returns its id.
func (m *MockRoster) CreateStudent(ctx context.Context, s database.Student) (int64, error) {
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.allocID()
	s.ID = id
	s.Active = true
	s.CreatedAt = time.Now()
	m.students[id] = s
	return id, nil
}

// SetStudentActive flips the soft-delete flag, returns false when the
// student does not exist.
func (m *MockRoster) SetStudentActive(ctx context.Context, studentID int64, active bool) (bool, error) {
	if m.SetActiveError != nil {
		return false, m.SetActiveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return false, nil
	}
	s.Active = active
	m.students[studentID] = s
	return true, nil
}

// CreateClass records a new class for a tenant, returns its id.
func (m *MockRoster) CreateClass(ctx context.Context, tenantID int64, name string) (int64, error) {
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.allocID()
	m.classes[id] = database.Class{ID: id, TenantID: tenantID, Name: name, CreatedAt: time.Now()}
	return id, nil
}

// Tenant retrieves a tenant by id.
func (m *MockRoster) Tenant(ctx context.Context, tenantID int64) (*database.Tenant, error) {
	if m.TenantError != nil {
		return nil, m.TenantError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Tenants lists all tenants.
func (m *MockRoster) Tenants(ctx context.Context) ([]database.Tenant, error) {
	if m.TenantError != nil {
		return nil, m.TenantError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tenants := make([]database.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		tenants = append(tenants, t)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants, nil
}

// ActiveStudents returns the active roster for a tenant ordered by id.
func (m *MockRoster) ActiveStudents(ctx context.Context, tenantID int64) ([]database.Student, error) {
	if m.StudentsError != nil {
		return nil, m.StudentsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var students []database.Student
	for _, s := range m.students {
		if s.TenantID == tenantID && s.Active {
			students = append(students, s)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

// Student retrieves a student by id regardless of active flag.
func (m *MockRoster) Student(ctx context.Context, studentID int64) (*database.Student, error) {
	if m.StudentError != nil {
		return nil, m.StudentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[studentID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// StudentTenant resolves the owning tenant of a student.
func (m *MockRoster) StudentTenant(ctx context.Context, studentID int64) (int64, error) {
	if m.StudentError != nil {
		return 0, m.StudentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[studentID]
	if !ok {
		return 0, nil
	}
	return s.TenantID, nil
}

// Classes lists a tenant's classes ordered by name.
func (m *MockRoster) Classes(ctx context.Context, tenantID int64) ([]database.Class, error) {
	if m.ClassesError != nil {
		return nil, m.ClassesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var classes []database.Class
	for _, c := range m.classes {
		if c.TenantID == tenantID {
			classes = append(classes, c)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

// ClassTenant resolves the owning tenant of a class.
func (m *MockRoster) ClassTenant(ctx context.Context, classID int64) (int64, error) {
	if m.ClassesError != nil {
		return 0, m.ClassesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[classID]
	if !ok {
		return 0, nil
	}
	return c.TenantID, nil
}

// MockEnrollment is a mock implementation of database.EnrollmentWriter.
type MockEnrollment struct {
	mu     sync.RWMutex
	nextID int64
	images map[int64][]database.EnrollmentImage
	faces  map[int64][]database.EnrollmentFace

	// Error injection
	ImagesError  error
	FacesError   error
	AddError     error
	ReplaceError error
}

// NewMockEnrollment creates a new mock enrollment store.
func NewMockEnrollment() *MockEnrollment {
	return &MockEnrollment{
		nextID: 1,
		images: make(map[int64][]database.EnrollmentImage),
		faces:  make(map[int64][]database.EnrollmentFace),
	}
}

// ImagesForStudent returns the stored sample references for a student.
func (m *MockEnrollment) ImagesForStudent(ctx context.Context, studentID int64) ([]database.EnrollmentImage, error) {
	if m.ImagesError != nil {
		return nil, m.ImagesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.EnrollmentImage(nil), m.images[studentID]...), nil
}

// FacesForStudent returns the extracted enrollment faces for a student.
func (m *MockEnrollment) FacesForStudent(ctx context.Context, studentID int64) ([]database.EnrollmentFace, error) {
	if m.FacesError != nil {
		return nil, m.FacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.EnrollmentFace(nil), m.faces[studentID]...), nil
}

// AddImage records a stored sample reference for a student.
func (m *MockEnrollment) AddImage(ctx context.Context, studentID int64, path string) (int64, error) {
	if m.AddError != nil {
		return 0, m.AddError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.images[studentID] = append(m.images[studentID], database.EnrollmentImage{
		ID:        id,
		StudentID: studentID,
		Path:      path,
		CreatedAt: time.Now(),
	})
	return id, nil
}

// ReplaceFaces replaces all extracted faces for a student.
func (m *MockEnrollment) ReplaceFaces(ctx context.Context, studentID int64, faces []database.EnrollmentFace) error {
	if m.ReplaceError != nil {
		return m.ReplaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces[studentID] = append([]database.EnrollmentFace(nil), faces...)
	return nil
}

// attendanceKey identifies one attendance event.
type attendanceKey struct {
	studentID int64
	classID   int64
	date      string
}

// MockAttendance is a mock implementation of database.AttendanceWriter.
type MockAttendance struct {
	mu      sync.Mutex
	nextID  int64
	records map[attendanceKey]database.AttendanceRecord
	roster  *MockRoster // for tenant-scoped listings, may be nil

	// Error injection
	ListError   error
	HasError    error
	InsertError error
	DeleteError error
}

// NewMockAttendance creates a new mock attendance store. The roster is
// used to resolve tenant scoping and student names in listings.
func NewMockAttendance(roster *MockRoster) *MockAttendance {
	return &MockAttendance{
		nextID:  1,
		records: make(map[attendanceKey]database.AttendanceRecord),
		roster:  roster,
	}
}

// RecordsByDate lists a tenant's attendance records for one date.
func (m *MockAttendance) RecordsByDate(ctx context.Context, tenantID int64, date string) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []database.AttendanceRecord
	for _, r := range m.records {
		if r.Date != date {
			continue
		}
		if m.roster != nil {
			s, _ := m.roster.Student(ctx, r.StudentID)
			if s == nil || s.TenantID != tenantID {
				continue
			}
			r.StudentName = s.Name
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].TimeIn.Before(records[j].TimeIn) })
	return records, nil
}

// HasRecord checks whether an event exists for (student, class, date).
func (m *MockAttendance) HasRecord(ctx context.Context, studentID, classID int64, date string) (bool, error) {
	if m.HasError != nil {
		return false, m.HasError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[attendanceKey{studentID, classID, date}]
	return ok, nil
}

// InsertIfAbsent records attendance unless a record already exists.
func (m *MockAttendance) InsertIfAbsent(ctx context.Context, studentID, classID int64, date string, timeIn time.Time) (bool, error) {
	if m.InsertError != nil {
		return false, m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attendanceKey{studentID, classID, date}
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	id := m.nextID
	m.nextID++
	m.records[key] = database.AttendanceRecord{
		ID:        id,
		StudentID: studentID,
		ClassID:   classID,
		Date:      date,
		TimeIn:    timeIn,
		CreatedAt: time.Now(),
	}
	return true, nil
}

// DeleteAll removes every attendance record.
func (m *MockAttendance) DeleteAll(ctx context.Context) (int64, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := int64(len(m.records))
	m.records = make(map[attendanceKey]database.AttendanceRecord)
	return deleted, nil
}

// Count returns the number of stored attendance records.
func (m *MockAttendance) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
