package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pavelanni/examhall/internal/model"
)

// CreateCourse inserts a course owned by a teacher.
func (s *Store) CreateCourse(ctx context.Context, c model.Course) (int64, error) {
	status := c.Status
	if status == "" {
		status = model.CourseActive
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (code, name, teacher_id, status) VALUES (?, ?, ?, ?)`,
		c.Code, c.Name, c.TeacherID, status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("course %q: %w", c.Code, ErrDuplicate)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetCourse returns a course by ID, or nil.
func (s *Store) GetCourse(ctx context.Context, id int64) (*model.Course, error) {
	var c model.Course
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, teacher_id, status FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Code, &c.Name, &c.TeacherID, &c.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCourses returns all courses.
func (s *Store) ListCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name, teacher_id, status FROM courses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.TeacherID, &c.Status); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// Enroll registers a student in a course.
func (s *Store) Enroll(ctx context.Context, studentID, courseID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (student_id, course_id) VALUES (?, ?)`, studentID, courseID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("enrollment of student %d in course %d: %w", studentID, courseID, ErrDuplicate)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// EnrolledCourseIDs returns the ids of courses a student is enrolled in.
func (s *Store) EnrolledCourseIDs(ctx context.Context, studentID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id FROM enrollments WHERE student_id = ? ORDER BY course_id`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsEnrolled reports whether a student is enrolled in a course.
func (s *Store) IsEnrolled(ctx context.Context, studentID, courseID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE student_id = ? AND course_id = ?`, studentID, courseID,
	).Scan(&count)
	return count > 0, err
}
