package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/notify"
	"github.com/pavelanni/examhall/internal/store"
)

// TakeView is the student's view of an exam. It never carries correct
// options or model answers.
type TakeView struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	DurationMinutes int            `json:"durationMinutes"`
	Questions       []TakeQuestion `json:"questions"`
}

type TakeQuestion struct {
	ID      int64              `json:"id"`
	Text    string             `json:"text"`
	Points  int                `json:"points"`
	Type    model.QuestionType `json:"type"`
	Options []TakeOption       `json:"options"`
}

type TakeOption struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// AttemptView reports when a student began an exam and when time runs out.
type AttemptView struct {
	ExamID    int64      `json:"examId"`
	StartedAt time.Time  `json:"startedAt"`
	Deadline  *time.Time `json:"deadline"`
}

func takeView(e *model.Exam) *TakeView {
	v := &TakeView{
		ID:              e.ID,
		Title:           e.Title,
		DurationMinutes: e.DurationMinutes,
		Questions:       make([]TakeQuestion, 0, len(e.Questions)),
	}
	for _, q := range e.Questions {
		tq := TakeQuestion{
			ID:      q.ID,
			Text:    q.Text,
			Points:  q.Points,
			Type:    q.Type,
			Options: make([]TakeOption, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			tq.Options = append(tq.Options, TakeOption{ID: o.ID, Text: o.Text})
		}
		v.Questions = append(v.Questions, tq)
	}
	return v
}

// takeable resolves the student and exam and checks that the student may
// start the exam now: enrolled, window open, nothing submitted yet.
func (s *Service) takeable(ctx context.Context, p model.Principal, examID int64) (*model.Student, *model.Exam, error) {
	if err := authorize(p, ActionTakeExam); err != nil {
		return nil, nil, err
	}
	st, err := s.studentFor(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	e, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkEnrolled(ctx, st, e); err != nil {
		return nil, nil, err
	}
	if !e.IsOpen(s.clock()) {
		return nil, nil, fmt.Errorf("exam %d: %w", e.ID, ErrExamNotOpen)
	}
	prior, err := s.repo.GetResultForStudent(ctx, e.ID, st.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load result: %w", err)
	}
	if prior != nil {
		return nil, nil, fmt.Errorf("exam %d: %w", e.ID, ErrAlreadySubmitted)
	}
	return st, e, nil
}

func (s *Service) checkEnrolled(ctx context.Context, st *model.Student, e *model.Exam) error {
	ok, err := s.repo.IsEnrolled(ctx, st.ID, e.CourseID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !ok {
		return fmt.Errorf("student %d not enrolled in course %d: %w", st.ID, e.CourseID, ErrForbidden)
	}
	return nil
}

// GetForTaking returns the exam as the student sees it while taking it.
func (s *Service) GetForTaking(ctx context.Context, p model.Principal, examID int64) (*TakeView, error) {
	_, e, err := s.takeable(ctx, p, examID)
	if err != nil {
		return nil, err
	}
	return takeView(e), nil
}

// Begin records when the student started the exam. Calling it again returns
// the original start.
func (s *Service) Begin(ctx context.Context, p model.Principal, examID int64) (*AttemptView, error) {
	st, e, err := s.takeable(ctx, p, examID)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.BeginAttempt(ctx, e.ID, st.ID, s.clock())
	if err != nil {
		return nil, fmt.Errorf("begin attempt: %w", err)
	}
	v := &AttemptView{ExamID: e.ID, StartedAt: a.StartedAt}
	if e.DurationMinutes > 0 {
		deadline := a.StartedAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
		if deadline.After(e.EndTime) {
			deadline = e.EndTime
		}
		v.Deadline = &deadline
	}
	slog.Info("exam attempt started", "exam_id", e.ID, "student_id", st.ID, "started_at", a.StartedAt)
	return v, nil
}

// Submit grades the answers, stores the result and returns the score.
// A student can submit an exam once.
func (s *Service) Submit(ctx context.Context, p model.Principal, examID int64, answers []AnswerInput) (int, error) {
	if err := authorize(p, ActionSubmitExam); err != nil {
		return 0, err
	}
	st, err := s.studentFor(ctx, p)
	if err != nil {
		return 0, err
	}
	e, err := s.loadExam(ctx, examID)
	if err != nil {
		return 0, err
	}
	if err := s.checkEnrolled(ctx, st, e); err != nil {
		return 0, err
	}

	now := s.clock()
	if now.Before(e.StartTime) || now.After(e.EndTime.Add(s.grace)) {
		return 0, fmt.Errorf("exam %d: %w", e.ID, ErrExamNotOpen)
	}

	duration := time.Duration(e.DurationMinutes) * time.Minute
	startedAt := now.Add(-duration)
	attempt, err := s.repo.GetAttempt(ctx, e.ID, st.ID)
	if err != nil {
		return 0, fmt.Errorf("load attempt: %w", err)
	}
	if attempt != nil {
		startedAt = attempt.StartedAt
		if duration > 0 && now.After(startedAt.Add(duration+s.grace)) {
			return 0, fmt.Errorf("exam %d started %s: %w", e.ID, startedAt.Format(time.RFC3339), ErrTimeLimitExceeded)
		}
	}

	score, recorded := Grade(e, answers)
	result := &model.ExamResult{
		ExamID:      e.ID,
		StudentID:   st.ID,
		Score:       score,
		StartedAt:   startedAt,
		SubmittedAt: &now,
		Answers:     recorded,
	}
	if _, err := s.repo.CreateResult(ctx, result); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, fmt.Errorf("exam %d: %w", e.ID, ErrAlreadySubmitted)
		}
		return 0, fmt.Errorf("store result: %w", err)
	}

	s.publish(ctx, notify.NewEvent(notify.ExamSubmitted, notify.UserAudience(p.UserID),
		"Exam submitted: "+e.Title,
		fmt.Sprintf("Your automatic score is %d of %d", score, e.MaxScore()),
		map[string]any{"exam_id": e.ID, "result_id": result.ID, "score": score, "max_score": e.MaxScore()},
	))
	return score, nil
}
