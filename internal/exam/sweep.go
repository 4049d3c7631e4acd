package exam

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/examhall/internal/notify"
)

// CloseExpired announces every exam whose window has ended and that was not
// announced yet. It returns the number of exams announced.
func (s *Service) CloseExpired(ctx context.Context) (int, error) {
	exams, err := s.repo.ListUnannouncedClosedExams(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("list closed exams: %w", err)
	}
	announced := 0
	for _, e := range exams {
		count, err := s.repo.CountResults(ctx, e.ID)
		if err != nil {
			return announced, fmt.Errorf("count results of exam %d: %w", e.ID, err)
		}
		s.publish(ctx, notify.NewEvent(notify.ExamClosed, notify.CourseAudience(e.CourseID),
			"Exam closed: "+e.Title,
			fmt.Sprintf("%s (%s) closed with %d submission(s)", e.Title, e.CourseName, count),
			map[string]any{"exam_id": e.ID, "course_id": e.CourseID, "submissions": count},
		))
		if err := s.repo.MarkExamAnnounced(ctx, e.ID); err != nil {
			return announced, fmt.Errorf("mark exam %d announced: %w", e.ID, err)
		}
		announced++
	}
	if announced > 0 {
		slog.Info("announced closed exams", "count", announced)
	}
	return announced, nil
}
