package mariadb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// ImagesForStudent returns the stored sample references for a student,
// ordered by id.
func (p *Pool) ImagesForStudent(ctx context.Context, studentID int64) ([]database.EnrollmentImage, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, student_id, path, created_at
		FROM enrollment_images
		WHERE student_id = ?
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
// Embeddings and boxes are decoded from their JSON blob columns.
func (p *Pool) FacesForStudent(ctx context.Context, studentID int64) ([]database.EnrollmentFace, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, student_id, image_id, embedding_json, bbox_json, det_score, dim, created_at
		FROM enrollment_faces
		WHERE student_id = ?
		ORDER BY id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query enrollment faces for student %d: %w", studentID, err)
	}
	defer rows.Close()

	var faces []database.EnrollmentFace
	for rows.Next() {
		var f database.EnrollmentFace
		var embeddingJSON, bboxJSON []byte
		if err := rows.Scan(&f.ID, &f.StudentID, &f.ImageID, &embeddingJSON,
			&bboxJSON, &f.DetScore, &f.Dim, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment face: %w", err)
		}
		if err := json.Unmarshal(embeddingJSON, &f.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for face %d: %w", f.ID, err)
		}
		if err := json.Unmarshal(bboxJSON, &f.BBox); err != nil {
			return nil, fmt.Errorf("decode bbox for face %d: %w", f.ID, err)
		}
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollment faces: %w", err)
	}
	return faces, nil
}

// AddImage records a stored sample reference for a student.
func (p *Pool) AddImage(ctx context.Context, studentID int64, path string) (int64, error) {
	result, err := p.db.ExecContext(ctx, `
		INSERT INTO enrollment_images (student_id, path) VALUES (?, ?)
	`, studentID, path)
	if err != nil {
		return 0, fmt.Errorf("insert enrollment image for student %d: %w", studentID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted image id: %w", err)
	}
	return id, nil
}

// ReplaceFaces replaces all extracted faces for a student with the given
// set inside a single transaction.
func (p *Pool) ReplaceFaces(ctx context.Context, studentID int64, faces []database.EnrollmentFace) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM enrollment_faces WHERE student_id = ?
	`, studentID); err != nil {
		return fmt.Errorf("delete enrollment faces for student %d: %w", studentID, err)
	}

	for _, f := range faces {
		embeddingJSON, err := json.Marshal(f.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		bboxJSON, err := json.Marshal(f.BBox)
		if err != nil {
			return fmt.Errorf("marshal bbox: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO enrollment_faces (student_id, image_id, embedding_json, bbox_json, det_score, dim)
			VALUES (?, ?, ?, ?, ?, ?)
		`, studentID, f.ImageID, embeddingJSON, bboxJSON, f.DetScore, f.Dim); err != nil {
			return fmt.Errorf("insert enrollment face for student %d: %w", studentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit face replacement for student %d: %w", studentID, err)
	}
	return nil
}
