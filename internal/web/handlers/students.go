package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// StudentsHandler exposes the enrollment roster and sample uploads.
type StudentsHandler struct {
	roster     database.StudentWriter
	enrollment database.EnrollmentWriter
	samplesDir string
}

// NewStudentsHandler creates a students handler. Sample uploads land
// under samplesDir; stored paths are relative to it.
func NewStudentsHandler(roster database.StudentWriter, enrollment database.EnrollmentWriter, samplesDir string) *StudentsHandler {
	return &StudentsHandler{
		roster:     roster,
		enrollment: enrollment,
		samplesDir: samplesDir,
	}
}

// studentInfo is a roster entry with its enrollment sample count.
type studentInfo struct {
	database.Student
	SampleCount int `json:"sample_count"`
}

// List returns a tenant's active roster with per-student sample counts.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := queryInt64(r, "tenant_id")
	if tenantID <= 0 {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	students, err := h.roster.ActiveStudents(r.Context(), tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	infos := make([]studentInfo, 0, len(students))
	for _, s := range students {
		images, err := h.enrollment.ImagesForStudent(r.Context(), s.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		infos = append(infos, studentInfo{Student: s, SampleCount: len(images)})
	}

	respondJSON(w, http.StatusOK, map[string]any{"students": infos})
}

// Create enrolls a new student on a tenant's roster. Samples are uploaded
// separately; the student joins the gallery on the tenant's next training
// run.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID   int64  `json:"tenant_id"`
		Name       string `json:"name"`
		RollNumber string `json:"roll_number"`
		Email      string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.TenantID <= 0 {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	studentID, err := h.roster.CreateStudent(r.Context(), database.Student{
		TenantID:   req.TenantID,
		Name:       strings.TrimSpace(req.Name),
		RollNumber: req.RollNumber,
		Email:      req.Email,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	student, err := h.roster.Student(r.Context(), studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"student": student})
}

// Deactivate soft-deletes a student. Attendance history stays; the student
// leaves the gallery on the tenant's next training run.
func (h *StudentsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	studentID := paramInt64(r, "studentId")
	if studentID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	found, err := h.roster.SetStudentActive(r.Context(), studentID, false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"student_id": studentID, "active": false})
}

// Get returns one student with their enrollment sample references.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	studentID := paramInt64(r, "studentId")
	if studentID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	student, err := h.roster.Student(r.Context(), studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	images, err := h.enrollment.ImagesForStudent(r.Context(), studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	faces, err := h.enrollment.FacesForStudent(r.Context(), studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	faceInfos := make([]extractedFace, 0, len(faces))
	for _, f := range faces {
		faceInfos = append(faceInfos, extractedFace{
			ImageID:  f.ImageID,
			BBox:     f.BBox,
			DetScore: f.DetScore,
			Dim:      f.Dim,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"student": student,
		"samples": images,
		"faces":   faceInfos,
	})
}

// extractedFace is the embedding-free view of a stored enrollment face.
// Raw vectors stay out of API responses.
type extractedFace struct {
	ImageID  int64     `json:"image_id"`
	BBox     []float64 `json:"bbox"`
	DetScore float64   `json:"det_score"`
	Dim      int       `json:"dim"`
}

// AddSample stores one uploaded enrollment sample for a student. The new
// sample takes effect on the tenant's next training run.
func (h *StudentsHandler) AddSample(w http.ResponseWriter, r *http.Request) {
	studentID := paramInt64(r, "studentId")
	if studentID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	student, err := h.roster.Student(r.Context(), studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	data, ok := readImageUpload(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "image upload is required")
		return
	}

	relPath := filepath.Join(fmt.Sprintf("%d", studentID), uuid.New().String()+".jpg")
	fullPath := filepath.Join(h.samplesDir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store sample")
		return
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store sample")
		return
	}

	imageID, err := h.enrollment.AddImage(r.Context(), studentID, relPath)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"image_id": imageID,
		"path":     relPath,
	})
}

// paramInt64 parses an int64 chi URL parameter, 0 when invalid.
func paramInt64(r *http.Request, key string) int64 {
	v, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
