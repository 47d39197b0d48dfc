package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// ImagesForStudent returns the stored sample references for a student,
// ordered by id.
func (p *Pool) ImagesForStudent(ctx context.Context, studentID int64) ([]database.EnrollmentImage, error) {
	rows, err := p.Query(ctx, `
		SELECT id, student_id, path, created_at
		FROM enrollment_images
		WHERE student_id = $1
		ORDER BY id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query enrollment images for student %d: %w", studentID, err)
	}
	defer rows.Close()

	var images []database.EnrollmentImage
	for rows.Next() {
		var img database.EnrollmentImage
		if err := rows.Scan(&img.ID, &img.StudentID, &img.Path, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollment images: %w", err)
	}
	return images, nil
}

// FacesForStudent returns the extracted enrollment faces for a student.
func (p *Pool) FacesForStudent(ctx context.Context, studentID int64) ([]database.EnrollmentFace, error) {
	rows, err := p.Query(ctx, `
		SELECT id, student_id, image_id, embedding, bbox, det_score, dim, created_at
		FROM enrollment_faces
		WHERE student_id = $1
		ORDER BY id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query enrollment faces for student %d: %w", studentID, err)
	}
	defer rows.Close()

	var faces []database.EnrollmentFace
	for rows.Next() {
		var f database.EnrollmentFace
		var embedding pgvector.Vector
		if err := rows.Scan(&f.ID, &f.StudentID, &f.ImageID, &embedding,
			pq.Array(&f.BBox), &f.DetScore, &f.Dim, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment face: %w", err)
		}
		f.Embedding = embedding.Slice()
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollment faces: %w", err)
	}
	return faces, nil
}

// AddImage records a stored sample reference for a student.
func (p *Pool) AddImage(ctx context.Context, studentID int64, path string) (int64, error) {
	var id int64
	err := p.QueryRow(ctx, `
		INSERT INTO enrollment_images (student_id, path)
		VALUES ($1, $2)
		RETURNING id
	`, studentID, path).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert enrollment image for student %d: %w", studentID, err)
	}
	return id, nil
}

// ReplaceFaces replaces all extracted faces for a student with the given
// set. Runs in a single transaction so a failed extraction run never leaves
// a half-replaced set behind.
func (p *Pool) ReplaceFaces(ctx context.Context, studentID int64, faces []database.EnrollmentFace) error {
	tx, err := p.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM enrollment_faces WHERE student_id = $1
	`, studentID); err != nil {
		return fmt.Errorf("delete enrollment faces for student %d: %w", studentID, err)
	}

	for _, f := range faces {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO enrollment_faces (student_id, image_id, embedding, bbox, det_score, dim)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, studentID, f.ImageID, pgvector.NewVector(f.Embedding),
			pq.Array(f.BBox), f.DetScore, f.Dim); err != nil {
			return fmt.Errorf("insert enrollment face for student %d: %w", studentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit face replacement for student %d: %w", studentID, err)
	}
	return nil
}
