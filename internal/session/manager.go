package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/matching"
)

// ErrSessionNotFound is returned for operations on unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// FrameSource yields raw frames for a live session. Next blocks until a
// frame is available and returns io.EOF when the stream ends.
type FrameSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// SessionStatus is the lifecycle state of a live session.
type SessionStatus string

const (
	SessionRunning  SessionStatus = "running"
	SessionStopped  SessionStatus = "stopped"
	SessionFinished SessionStatus = "finished"
)

// Session is one live recognition run bound to a tenant and class.
type Session struct {
	EventBroadcaster

	ID        string        `json:"id"`
	TenantID  int64         `json:"tenant_id"`
	ClassID   int64         `json:"class_id"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	StoppedAt *time.Time    `json:"stopped_at,omitempty"`

	FramesSeen      int `json:"frames_seen"`
	FramesEvaluated int `json:"frames_evaluated"`
	Marked          int `json:"marked"`

	mu         sync.Mutex
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
	suppressor *attendance.Suppressor
}

// markEvent is the payload of a "mark" session event.
type markEvent struct {
	StudentID int64   `json:"student_id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Status    string  `json:"status"`
}

// Wait blocks until the session loop has exited, either from a stop
// signal or from the frame source ending.
func (s *Session) Wait() {
	<-s.done
}

// Snapshot returns a copy of the session counters and status, safe to
// serialize while the loop is running.
func (s *Session) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Session{
		ID:              s.ID,
		TenantID:        s.TenantID,
		ClassID:         s.ClassID,
		Status:          s.Status,
		StartedAt:       s.StartedAt,
		StoppedAt:       s.StoppedAt,
		FramesSeen:      s.FramesSeen,
		FramesEvaluated: s.FramesEvaluated,
		Marked:          s.Marked,
	}
}

// Manager runs live recognition sessions: frames in, recognition events
// and attendance marks out.
type Manager struct {
	engine     *matching.Engine
	marker     *attendance.Marker
	threshold  float64
	decimation int
	suppress   time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Decimation evaluates every Nth
// frame (1 evaluates all); suppress is the re-trigger window for repeat
// marks of the same student.
func NewManager(engine *matching.Engine, marker *attendance.Marker, threshold float64, decimation int, suppress time.Duration) *Manager {
	if decimation < 1 {
		decimation = 1
	}
	return &Manager{
		engine:     engine,
		marker:     marker,
		threshold:  threshold,
		decimation: decimation,
		suppress:   suppress,
		sessions:   make(map[string]*Session),
	}
}

// Start begins a live session consuming frames from the source until the
// source ends or Stop is called. The loop never aborts on a bad frame:
// extraction failures count as empty frames.
func (m *Manager) Start(tenantID, classID int64, source FrameSource) *Session {
	s := &Session{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		ClassID:    classID,
		Status:     SessionRunning,
		StartedAt:  time.Now(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		suppressor: attendance.NewSuppressor(m.suppress),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	go m.run(s, source)
	return s
}

// run is the session loop. The stop signal cancels the frame read, never
// the frame being evaluated: in-flight attendance marks always drain.
func (m *Manager) run(s *Session, source FrameSource) {
	defer close(s.done)
	defer s.CloseListeners()

	readCtx, cancelRead := context.WithCancel(context.Background())
	defer cancelRead()
	go func() {
		select {
		case <-s.stop:
			cancelRead()
		case <-s.done:
		}
	}()

	// Marks and matching outlive the stop signal for the current frame.
	evalCtx := context.Background()

	for {
		select {
		case <-s.stop:
			m.finish(s, SessionStopped)
			return
		default:
		}

		frame, err := source.Next(readCtx)
		if err == io.EOF {
			m.finish(s, SessionFinished)
			return
		}
		if errors.Is(err, context.Canceled) {
			m.finish(s, SessionStopped)
			return
		}
		if err != nil {
			log.Printf("session %s: frame source failed: %v", s.ID, err)
			s.SendEvent(Event{Type: "error", Message: fmt.Sprintf("frame source failed: %v", err)})
			m.finish(s, SessionFinished)
			return
		}

		s.mu.Lock()
		s.FramesSeen++
		evaluate := (s.FramesSeen-1)%m.decimation == 0
		if evaluate {
			s.FramesEvaluated++
		}
		s.mu.Unlock()

		if !evaluate {
			continue
		}

		m.evaluateFrame(evalCtx, s, frame)
	}
}

// evaluateFrame matches one frame and records attendance for every
// accepted identity not currently suppressed.
func (m *Manager) evaluateFrame(ctx context.Context, s *Session, frame []byte) {
	results, err := m.engine.MatchFrame(ctx, s.TenantID, frame, m.threshold)
	if err != nil {
		// Gallery unreadable; surfaced, the session keeps running.
		log.Printf("session %s: match failed: %v", s.ID, err)
		s.SendEvent(Event{Type: "error", Message: fmt.Sprintf("match failed: %v", err)})
		return
	}
	if len(results) > 0 {
		s.SendEvent(Event{Type: "recognition", Data: results})
	}

	for _, r := range results {
		if !r.Accepted {
			continue
		}
		if !s.suppressor.ShouldAttempt(r.IdentityID, s.ClassID) {
			continue
		}

		status, err := m.marker.Mark(ctx, r.IdentityID, s.ClassID, time.Now())
		if err != nil {
			log.Printf("session %s: marking student %d failed: %v", s.ID, r.IdentityID, err)
			s.SendEvent(Event{Type: "error", Message: fmt.Sprintf("marking student %d failed: %v", r.IdentityID, err)})
			continue
		}
		if status == attendance.Recorded {
			s.mu.Lock()
			s.Marked++
			s.mu.Unlock()
		}
		s.SendEvent(Event{Type: "mark", Data: markEvent{
			StudentID: r.IdentityID,
			Name:      r.DisplayName,
			Score:     r.Score,
			Status:    status.String(),
		}})
	}
}

func (m *Manager) finish(s *Session, status SessionStatus) {
	now := time.Now()
	s.mu.Lock()
	s.Status = status
	s.StoppedAt = &now
	s.mu.Unlock()
	s.suppressor.Reset()
	s.SendEvent(Event{Type: "finished", Message: string(status)})
}

// Get retrieves a session by id, nil when unknown.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// List returns snapshots of all sessions.
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s.Snapshot())
	}
	return sessions
}

// Stop signals a session to end and waits for its loop to drain. Stopping
// a finished session is a no-op.
func (m *Manager) Stop(id string) error {
	s := m.Get(id)
	if s == nil {
		return ErrSessionNotFound
	}

	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}
