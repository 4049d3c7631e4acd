package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/examhall/internal/model"
)

// ResultRowView is one line of an exam's results.
type ResultRowView struct {
	ID          int64     `json:"id"`
	StudentName string    `json:"studentName"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ResultDetail is a single result with its answers, for reviewers.
type ResultDetail struct {
	ID           int64          `json:"id"`
	ExamID       int64          `json:"examId"`
	ExamTitle    string         `json:"examTitle"`
	StudentID    int64          `json:"studentId"`
	Score        int            `json:"score"`
	ReviewPoints int            `json:"reviewPoints"`
	Total        int            `json:"total"`
	MaxScore     int            `json:"maxScore"`
	StartedAt    time.Time      `json:"startedAt"`
	SubmittedAt  *time.Time     `json:"submittedAt"`
	Answers      []AnswerDetail `json:"answers"`
}

// AnswerDetail is one recorded answer with its question and grading.
type AnswerDetail struct {
	ID               int64              `json:"id"`
	QuestionID       int64              `json:"questionId"`
	QuestionText     string             `json:"questionText"`
	QuestionType     model.QuestionType `json:"questionType"`
	MaxPoints        int                `json:"maxPoints"`
	SelectedOptionID *int64             `json:"selectedOptionId"`
	TextAnswer       *string            `json:"textAnswer"`
	AutoPoints       int                `json:"autoPoints"`
	Correct          *bool              `json:"correct"`
	ReviewPoints     *int               `json:"reviewPoints"`
	ReviewComment    string             `json:"reviewComment,omitempty"`
	ReviewedAt       *time.Time         `json:"reviewedAt,omitempty"`
}

func answerDetail(e *model.Exam, a model.StudentAnswer) AnswerDetail {
	d := AnswerDetail{
		ID:               a.ID,
		QuestionID:       a.QuestionID,
		SelectedOptionID: a.SelectedOptionID,
		TextAnswer:       a.TextAnswer,
		AutoPoints:       a.AutoPoints,
		Correct:          a.Correct,
		ReviewPoints:     a.ReviewPoints,
		ReviewComment:    a.ReviewComment,
		ReviewedAt:       a.ReviewedAt,
	}
	if q, ok := e.Question(a.QuestionID); ok {
		d.QuestionText, d.QuestionType, d.MaxPoints = q.Text, q.Type, q.Points
	}
	return d
}

// GetResults lists the results of an exam, highest score first. The order of
// equal scores is unspecified.
func (s *Service) GetResults(ctx context.Context, p model.Principal, examID int64) ([]ResultRowView, error) {
	if err := authorize(p, ActionViewResults); err != nil {
		return nil, err
	}
	e, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if _, err := s.manageCourse(ctx, p, e.CourseID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListResultRows(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	out := make([]ResultRowView, 0, len(rows))
	for _, r := range rows {
		out = append(out, ResultRowView{
			ID:          r.ID,
			StudentName: r.StudentName(),
			Score:       r.Score,
			SubmittedAt: r.SubmissionTime(),
		})
	}
	return out, nil
}

// loadManagedResult resolves a result together with its exam and checks that
// the principal manages the exam's course.
func (s *Service) loadManagedResult(ctx context.Context, p model.Principal, resultID int64, a Action) (*model.ExamResult, *model.Exam, error) {
	if err := authorize(p, a); err != nil {
		return nil, nil, err
	}
	r, err := s.repo.GetResult(ctx, resultID)
	if err != nil {
		return nil, nil, fmt.Errorf("load result %d: %w", resultID, err)
	}
	if r == nil {
		return nil, nil, fmt.Errorf("result %d: %w", resultID, ErrNotFound)
	}
	e, err := s.loadExam(ctx, r.ExamID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.manageCourse(ctx, p, e.CourseID); err != nil {
		return nil, nil, err
	}
	return r, e, nil
}

// GetResult returns one result with its answers and the total including
// reviewer points.
func (s *Service) GetResult(ctx context.Context, p model.Principal, resultID int64) (*ResultDetail, error) {
	r, e, err := s.loadManagedResult(ctx, p, resultID, ActionViewResults)
	if err != nil {
		return nil, err
	}
	d := &ResultDetail{
		ID:          r.ID,
		ExamID:      e.ID,
		ExamTitle:   e.Title,
		StudentID:   r.StudentID,
		Score:       r.Score,
		MaxScore:    e.MaxScore(),
		StartedAt:   r.StartedAt,
		SubmittedAt: r.SubmittedAt,
		Answers:     make([]AnswerDetail, 0, len(r.Answers)),
	}
	for _, a := range r.Answers {
		if a.ReviewPoints != nil {
			d.ReviewPoints += *a.ReviewPoints
		}
		d.Answers = append(d.Answers, answerDetail(e, a))
	}
	d.Total = d.Score + d.ReviewPoints
	return d, nil
}
