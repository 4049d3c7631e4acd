package store

import (
	"context"
	"database/sql"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pavelanni/examhall/internal/model"
)

// ExamFilter narrows ListExams. Zero values mean no filtering on that field.
type ExamFilter struct {
	TeacherID int64   // exams of courses owned by this teacher
	CourseIDs []int64 // exams of these courses; nil means any, empty means none
	Newest    bool    // order by start time descending instead of ascending
}

// CreateExam stores an exam with its questions and options in one transaction.
func (s *Store) CreateExam(ctx context.Context, e *model.Exam) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO exams (title, description, course_id, duration_minutes, start_time, end_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.CourseID, e.DurationMinutes, e.StartTime.UTC(), e.EndTime.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	examID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for qi := range e.Questions {
		q := &e.Questions[qi]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO questions (exam_id, position, text, points, type, model_answer) VALUES (?, ?, ?, ?, ?, ?)`,
			examID, qi, q.Text, q.Points, q.Type, q.ModelAnswer,
		)
		if err != nil {
			return 0, err
		}
		if q.ID, err = res.LastInsertId(); err != nil {
			return 0, err
		}
		q.ExamID = examID
		for oi := range q.Options {
			o := &q.Options[oi]
			res, err := tx.ExecContext(ctx,
				`INSERT INTO question_options (question_id, position, text, is_correct) VALUES (?, ?, ?, ?)`,
				q.ID, oi, o.Text, o.IsCorrect,
			)
			if err != nil {
				return 0, err
			}
			if o.ID, err = res.LastInsertId(); err != nil {
				return 0, err
			}
			o.QuestionID = q.ID
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	e.ID = examID
	slog.Info("created exam", "id", examID, "course_id", e.CourseID, "questions", len(e.Questions))
	return examID, nil
}

// GetExam returns an exam with its questions and options, or nil.
func (s *Store) GetExam(ctx context.Context, id int64) (*model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, course_id, duration_minutes, start_time, end_time, created_at
		 FROM exams WHERE id = ?`, id,
	).Scan(&e.ID, &e.Title, &e.Description, &e.CourseID, &e.DurationMinutes, &e.StartTime, &e.EndTime, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.StartTime, e.EndTime = e.StartTime.UTC(), e.EndTime.UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, text, points, type, model_answer FROM questions
		 WHERE exam_id = ? ORDER BY position, id`, id,
	)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]int)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.Points, &q.Type, &q.ModelAnswer); err != nil {
			rows.Close()
			return nil, err
		}
		index[q.ID] = len(e.Questions)
		e.Questions = append(e.Questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT o.id, o.question_id, o.text, o.is_correct FROM question_options o
		 JOIN questions q ON q.id = o.question_id
		 WHERE q.exam_id = ? ORDER BY o.position, o.id`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o model.QuestionOption
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect); err != nil {
			return nil, err
		}
		if i, ok := index[o.QuestionID]; ok {
			e.Questions[i].Options = append(e.Questions[i].Options, o)
		}
	}
	return &e, rows.Err()
}

// ListExams returns exam summaries with their course names.
// Timestamps are stored as text, so ordering is applied after scanning.
func (s *Store) ListExams(ctx context.Context, f ExamFilter) ([]model.ExamSummary, error) {
	if f.CourseIDs != nil && len(f.CourseIDs) == 0 {
		return nil, nil
	}
	query := `SELECT e.id, e.title, e.course_id, c.name, e.duration_minutes, e.start_time, e.end_time
		FROM exams e JOIN courses c ON c.id = e.course_id WHERE 1=1`
	var args []any
	if f.TeacherID != 0 {
		query += ` AND c.teacher_id = ?`
		args = append(args, f.TeacherID)
	}
	if len(f.CourseIDs) > 0 {
		query += ` AND e.course_id IN (?` + strings.Repeat(`, ?`, len(f.CourseIDs)-1) + `)`
		for _, id := range f.CourseIDs {
			args = append(args, id)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.ExamSummary
	for rows.Next() {
		var e model.ExamSummary
		if err := rows.Scan(&e.ID, &e.Title, &e.CourseID, &e.CourseName, &e.DurationMinutes, &e.StartTime, &e.EndTime); err != nil {
			return nil, err
		}
		e.StartTime, e.EndTime = e.StartTime.UTC(), e.EndTime.UTC()
		exams = append(exams, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.SortStableFunc(exams, func(a, b model.ExamSummary) int {
		if f.Newest {
			return b.StartTime.Compare(a.StartTime)
		}
		return a.StartTime.Compare(b.StartTime)
	})
	return exams, nil
}

// ListUnannouncedClosedExams returns exams whose window ended before now and
// whose closing has not been announced yet.
func (s *Store) ListUnannouncedClosedExams(ctx context.Context, now time.Time) ([]model.ExamSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.title, e.course_id, c.name, e.duration_minutes, e.start_time, e.end_time
		 FROM exams e JOIN courses c ON c.id = e.course_id WHERE e.closed_notified = 0`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.ExamSummary
	for rows.Next() {
		var e model.ExamSummary
		if err := rows.Scan(&e.ID, &e.Title, &e.CourseID, &e.CourseName, &e.DurationMinutes, &e.StartTime, &e.EndTime); err != nil {
			return nil, err
		}
		if e.EndTime.Before(now) {
			e.StartTime, e.EndTime = e.StartTime.UTC(), e.EndTime.UTC()
			exams = append(exams, e)
		}
	}
	return exams, rows.Err()
}

// MarkExamAnnounced records that the closing of an exam was announced.
func (s *Store) MarkExamAnnounced(ctx context.Context, examID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE exams SET closed_notified = 1 WHERE id = ?`, examID)
	return err
}

// ExamCount returns the number of exams in the database.
func (s *Store) ExamCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams`).Scan(&count)
	return count, err
}
