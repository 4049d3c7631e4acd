package exam

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/notify"
	"github.com/pavelanni/examhall/internal/store"
)

// ListItem is one exam in a listing.
type ListItem struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	CourseName      string    `json:"courseName"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes int       `json:"durationMinutes"`
	CanTake         bool      `json:"canTake"`
	Score           *int      `json:"score"`
}

func listItem(e model.ExamSummary) ListItem {
	return ListItem{
		ID:              e.ID,
		Title:           e.Title,
		CourseName:      e.CourseName,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		DurationMinutes: e.DurationMinutes,
	}
}

// Create validates a draft and stores the exam. Teachers may only create
// exams for courses they own.
func (s *Service) Create(ctx context.Context, p model.Principal, d ExamDraft) (int64, error) {
	if err := authorize(p, ActionCreateExam); err != nil {
		return 0, err
	}
	e, err := BuildExam(d)
	if err != nil {
		return 0, err
	}
	course, err := s.manageCourse(ctx, p, e.CourseID)
	if err != nil {
		return 0, err
	}
	id, err := s.repo.CreateExam(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("create exam: %w", err)
	}
	slog.Info("exam created", "id", id, "course", course.Code, "by", p.Username)

	s.publish(ctx, notify.NewEvent(notify.ExamCreated, notify.CourseAudience(course.ID),
		"New exam: "+e.Title,
		fmt.Sprintf("%s opens %s", e.Title, e.StartTime.Format(time.RFC3339)),
		map[string]any{"exam_id": id, "course_id": course.ID, "start_time": e.StartTime, "end_time": e.EndTime},
	))
	return id, nil
}

// ListCreated lists the exams a teacher manages, newest first. Admins see all exams.
func (s *Service) ListCreated(ctx context.Context, p model.Principal) ([]ListItem, error) {
	if err := authorize(p, ActionListCreated); err != nil {
		return nil, err
	}
	filter := store.ExamFilter{Newest: true}
	if !p.IsAdmin() {
		teacher, err := s.repo.GetTeacherByUserID(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("load teacher profile: %w", err)
		}
		if teacher == nil {
			return nil, fmt.Errorf("teacher profile for user %d: %w", p.UserID, ErrNotFound)
		}
		filter.TeacherID = teacher.ID
	}
	exams, err := s.repo.ListExams(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	items := make([]ListItem, 0, len(exams))
	for _, e := range exams {
		items = append(items, listItem(e))
	}
	return items, nil
}

// ListAvailable lists the exams of the student's courses, soonest first,
// with the student's prior score and whether the exam can be taken now.
func (s *Service) ListAvailable(ctx context.Context, p model.Principal) ([]ListItem, error) {
	if err := authorize(p, ActionListAvailable); err != nil {
		return nil, err
	}
	st, err := s.studentFor(ctx, p)
	if err != nil {
		return nil, err
	}
	courseIDs, err := s.repo.EnrolledCourseIDs(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	if len(courseIDs) == 0 {
		return []ListItem{}, nil
	}
	exams, err := s.repo.ListExams(ctx, store.ExamFilter{CourseIDs: courseIDs})
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	results, err := s.repo.ResultsForStudent(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	now := s.clock()
	items := make([]ListItem, 0, len(exams))
	for _, e := range exams {
		item := listItem(e)
		r, taken := results[e.ID]
		if taken {
			score := r.Score
			item.Score = &score
		}
		item.CanTake = !taken && e.IsOpen(now)
		items = append(items, item)
	}
	return items, nil
}
