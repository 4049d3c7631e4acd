// Package exam implements the exam lifecycle: creation, availability,
// taking, auto-grading on submission and results reporting.
package exam

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/examhall/internal/llm"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/notify"
	"github.com/pavelanni/examhall/internal/store"
)

// DefaultSubmitGrace is how long after the window closes a submission is accepted.
const DefaultSubmitGrace = time.Minute

// Repository is the persistence the engine needs. *store.Store implements it.
type Repository interface {
	GetTeacherByUserID(ctx context.Context, userID int64) (*model.Teacher, error)
	GetStudentByUserID(ctx context.Context, userID int64) (*model.Student, error)
	GetStudent(ctx context.Context, id int64) (*model.Student, error)
	GetCourse(ctx context.Context, id int64) (*model.Course, error)
	EnrolledCourseIDs(ctx context.Context, studentID int64) ([]int64, error)
	IsEnrolled(ctx context.Context, studentID, courseID int64) (bool, error)

	CreateExam(ctx context.Context, e *model.Exam) (int64, error)
	GetExam(ctx context.Context, id int64) (*model.Exam, error)
	ListExams(ctx context.Context, f store.ExamFilter) ([]model.ExamSummary, error)
	ListUnannouncedClosedExams(ctx context.Context, now time.Time) ([]model.ExamSummary, error)
	MarkExamAnnounced(ctx context.Context, examID int64) error

	BeginAttempt(ctx context.Context, examID, studentID int64, at time.Time) (*model.ExamAttempt, error)
	GetAttempt(ctx context.Context, examID, studentID int64) (*model.ExamAttempt, error)
	CreateResult(ctx context.Context, r *model.ExamResult) (int64, error)
	GetResult(ctx context.Context, id int64) (*model.ExamResult, error)
	GetResultForStudent(ctx context.Context, examID, studentID int64) (*model.ExamResult, error)
	ResultsForStudent(ctx context.Context, studentID int64) (map[int64]model.ExamResult, error)
	ListResultRows(ctx context.Context, examID int64) ([]model.ResultRow, error)
	CountResults(ctx context.Context, examID int64) (int, error)
	ReviewAnswer(ctx context.Context, answerID int64, points int, comment string, reviewerID int64, at time.Time) error
}

// Reviewer suggests a grade for an open-ended answer. *llm.Client implements it.
type Reviewer interface {
	SuggestReview(ctx context.Context, question model.Question, answer string) (*llm.Suggestion, error)
}

// Service is the exam engine.
type Service struct {
	repo     Repository
	notify   notify.Publisher
	reviewer Reviewer
	now      func() time.Time
	grace    time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSubmitGrace sets how long after the window closes a submission is still accepted.
func WithSubmitGrace(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

// WithReviewer enables review suggestions for open-ended answers.
func WithReviewer(r Reviewer) Option {
	return func(s *Service) { s.reviewer = r }
}

// New creates an engine over repo. A nil publisher discards notifications.
func New(repo Repository, pub notify.Publisher, opts ...Option) *Service {
	if pub == nil {
		pub = notify.Nop{}
	}
	s := &Service{
		repo:   repo,
		notify: pub,
		now:    time.Now,
		grace:  DefaultSubmitGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	if err := s.notify.Publish(ctx, ev); err != nil {
		slog.Warn("notification failed", "type", ev.Type, "audience", ev.Audience, "error", err)
	}
}

func (s *Service) studentFor(ctx context.Context, p model.Principal) (*model.Student, error) {
	st, err := s.repo.GetStudentByUserID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("load student profile: %w", err)
	}
	if st == nil {
		return nil, fmt.Errorf("student profile for user %d: %w", p.UserID, ErrNotFound)
	}
	return st, nil
}

func (s *Service) loadExam(ctx context.Context, id int64) (*model.Exam, error) {
	e, err := s.repo.GetExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load exam %d: %w", id, err)
	}
	if e == nil {
		return nil, fmt.Errorf("exam %d: %w", id, ErrNotFound)
	}
	return e, nil
}

// manageCourse loads a course and checks that the principal may manage it.
// A teacher without a teacher profile owns nothing.
func (s *Service) manageCourse(ctx context.Context, p model.Principal, courseID int64) (*model.Course, error) {
	course, err := s.repo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course %d: %w", courseID, err)
	}
	if course == nil {
		return nil, fmt.Errorf("course %d: %w", courseID, ErrNotFound)
	}
	var teacher *model.Teacher
	if !p.IsAdmin() {
		if teacher, err = s.repo.GetTeacherByUserID(ctx, p.UserID); err != nil {
			return nil, fmt.Errorf("load teacher profile: %w", err)
		}
	}
	if !CanManageCourse(p, teacher, *course) {
		return nil, fmt.Errorf("course %d: %w", courseID, ErrForbidden)
	}
	return course, nil
}
