package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/examhall/internal/model"
)

// CreateResult stores a result with its answers in one transaction.
// A second result for the same exam and student yields ErrDuplicate.
func (s *Store) CreateResult(ctx context.Context, r *model.ExamResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var submittedAt any
	if r.SubmittedAt != nil {
		submittedAt = r.SubmittedAt.UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO exam_results (exam_id, student_id, score, started_at, submitted_at) VALUES (?, ?, ?, ?, ?)`,
		r.ExamID, r.StudentID, r.Score, r.StartedAt.UTC(), submittedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("result for exam %d and student %d: %w", r.ExamID, r.StudentID, ErrDuplicate)
		}
		return 0, err
	}
	resultID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i := range r.Answers {
		a := &r.Answers[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO student_answers (result_id, question_id, selected_option_id, text_answer, auto_points, correct)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			resultID, a.QuestionID, a.SelectedOptionID, a.TextAnswer, a.AutoPoints, a.Correct,
		)
		if err != nil {
			return 0, err
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return 0, err
		}
		a.ResultID = resultID
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	r.ID = resultID
	slog.Info("stored exam result", "id", resultID, "exam_id", r.ExamID, "student_id", r.StudentID, "score", r.Score)
	return resultID, nil
}

// GetResultForStudent returns the student's result for an exam without answers, or nil.
func (s *Store) GetResultForStudent(ctx context.Context, examID, studentID int64) (*model.ExamResult, error) {
	var r model.ExamResult
	err := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, student_id, score, started_at, submitted_at
		 FROM exam_results WHERE exam_id = ? AND student_id = ?`, examID, studentID,
	).Scan(&r.ID, &r.ExamID, &r.StudentID, &r.Score, &r.StartedAt, &r.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.StartedAt, r.SubmittedAt = r.StartedAt.UTC(), utcPtr(r.SubmittedAt)
	return &r, nil
}

// ResultsForStudent returns all of a student's results keyed by exam id.
func (s *Store) ResultsForStudent(ctx context.Context, studentID int64) (map[int64]model.ExamResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, student_id, score, started_at, submitted_at
		 FROM exam_results WHERE student_id = ?`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make(map[int64]model.ExamResult)
	for rows.Next() {
		var r model.ExamResult
		if err := rows.Scan(&r.ID, &r.ExamID, &r.StudentID, &r.Score, &r.StartedAt, &r.SubmittedAt); err != nil {
			return nil, err
		}
		r.StartedAt, r.SubmittedAt = r.StartedAt.UTC(), utcPtr(r.SubmittedAt)
		results[r.ExamID] = r
	}
	return results, rows.Err()
}

// ListResultRows returns the results of an exam with student names, highest score first.
func (s *Store) ListResultRows(ctx context.Context, examID int64) ([]model.ResultRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.student_id, u.full_name, u.username, r.score, r.started_at, r.submitted_at
		 FROM exam_results r
		 LEFT JOIN students st ON st.id = r.student_id
		 LEFT JOIN users u ON u.id = st.user_id
		 WHERE r.exam_id = ? ORDER BY r.score DESC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ResultRow
	for rows.Next() {
		var row model.ResultRow
		var fullName, username sql.NullString
		if err := rows.Scan(&row.ID, &row.StudentID, &fullName, &username, &row.Score, &row.StartedAt, &row.SubmittedAt); err != nil {
			return nil, err
		}
		row.FullName, row.Username = fullName.String, username.String
		row.StartedAt, row.SubmittedAt = row.StartedAt.UTC(), utcPtr(row.SubmittedAt)
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountResults returns how many results an exam has.
func (s *Store) CountResults(ctx context.Context, examID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exam_results WHERE exam_id = ?`, examID).Scan(&count)
	return count, err
}

// GetResult returns a result with its answers, or nil.
func (s *Store) GetResult(ctx context.Context, id int64) (*model.ExamResult, error) {
	var r model.ExamResult
	err := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, student_id, score, started_at, submitted_at FROM exam_results WHERE id = ?`, id,
	).Scan(&r.ID, &r.ExamID, &r.StudentID, &r.Score, &r.StartedAt, &r.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.StartedAt, r.SubmittedAt = r.StartedAt.UTC(), utcPtr(r.SubmittedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, result_id, question_id, selected_option_id, text_answer, auto_points, correct,
		        review_points, review_comment, reviewed_by, reviewed_at
		 FROM student_answers WHERE result_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a model.StudentAnswer
		if err := rows.Scan(&a.ID, &a.ResultID, &a.QuestionID, &a.SelectedOptionID, &a.TextAnswer, &a.AutoPoints,
			&a.Correct, &a.ReviewPoints, &a.ReviewComment, &a.ReviewedBy, &a.ReviewedAt); err != nil {
			return nil, err
		}
		a.ReviewedAt = utcPtr(a.ReviewedAt)
		r.Answers = append(r.Answers, a)
	}
	return &r, rows.Err()
}

// ReviewAnswer stores a reviewer's points and comment on an answer.
func (s *Store) ReviewAnswer(ctx context.Context, answerID int64, points int, comment string, reviewerID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE student_answers SET review_points = ?, review_comment = ?, reviewed_by = ?, reviewed_at = ?
		 WHERE id = ?`,
		points, comment, reviewerID, at.UTC(), answerID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BeginAttempt records the start of a student's attempt. If an attempt already
// exists, the original one is returned unchanged.
func (s *Store) BeginAttempt(ctx context.Context, examID, studentID int64, at time.Time) (*model.ExamAttempt, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO exam_attempts (exam_id, student_id, started_at) VALUES (?, ?, ?)`,
		examID, studentID, at.UTC(),
	)
	if err != nil {
		return nil, err
	}
	return s.GetAttempt(ctx, examID, studentID)
}

// GetAttempt returns the recorded attempt of a student, or nil.
func (s *Store) GetAttempt(ctx context.Context, examID, studentID int64) (*model.ExamAttempt, error) {
	var a model.ExamAttempt
	err := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, student_id, started_at FROM exam_attempts WHERE exam_id = ? AND student_id = ?`,
		examID, studentID,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.StartedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.StartedAt = a.StartedAt.UTC()
	return &a, nil
}
