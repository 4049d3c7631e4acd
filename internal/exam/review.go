package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/examhall/internal/llm"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/notify"
)

// ReviewInput is a reviewer's grade for an open-ended answer.
type ReviewInput struct {
	Points  int    `json:"points" validate:"gte=0"`
	Comment string `json:"comment" validate:"max=2000"`
}

// openEndedAnswer finds an answer of the result and its question, and
// requires the question to be open-ended.
func openEndedAnswer(r *model.ExamResult, e *model.Exam, answerID int64) (*model.StudentAnswer, model.Question, error) {
	for i := range r.Answers {
		a := &r.Answers[i]
		if a.ID != answerID {
			continue
		}
		q, ok := e.Question(a.QuestionID)
		if !ok {
			return nil, model.Question{}, fmt.Errorf("question %d: %w", a.QuestionID, ErrNotFound)
		}
		if q.Type != model.QuestionOpenEnded {
			return nil, model.Question{}, invalid("answer", "only open-ended answers can be reviewed")
		}
		return a, q, nil
	}
	return nil, model.Question{}, fmt.Errorf("answer %d of result %d: %w", answerID, r.ID, ErrNotFound)
}

// ReviewAnswer stores a reviewer's points and comment on an open-ended answer.
// The automatic score of the result is left unchanged.
func (s *Service) ReviewAnswer(ctx context.Context, p model.Principal, resultID, answerID int64, in ReviewInput) (*AnswerDetail, error) {
	r, e, err := s.loadManagedResult(ctx, p, resultID, ActionReviewAnswer)
	if err != nil {
		return nil, err
	}
	a, q, err := openEndedAnswer(r, e, answerID)
	if err != nil {
		return nil, err
	}
	if err := Validate(in); err != nil {
		return nil, err
	}
	if in.Points > q.Points {
		return nil, invalid("points", fmt.Sprintf("must be at most %d", q.Points))
	}

	now := s.clock()
	if err := s.repo.ReviewAnswer(ctx, a.ID, in.Points, in.Comment, p.UserID, now); err != nil {
		return nil, fmt.Errorf("store review: %w", err)
	}
	points, reviewer := in.Points, p.UserID
	a.ReviewPoints, a.ReviewComment, a.ReviewedBy, a.ReviewedAt = &points, in.Comment, &reviewer, &now
	slog.Info("answer reviewed", "result_id", r.ID, "answer_id", a.ID, "points", in.Points, "by", p.Username)

	st, err := s.repo.GetStudent(ctx, r.StudentID)
	if err != nil {
		slog.Warn("load student for review notification", "student_id", r.StudentID, "error", err)
	} else if st != nil {
		s.publish(ctx, notify.NewEvent(notify.AnswerReviewed, notify.UserAudience(st.UserID),
			"Answer reviewed: "+e.Title,
			fmt.Sprintf("You received %d of %d points", in.Points, q.Points),
			map[string]any{"exam_id": e.ID, "result_id": r.ID, "answer_id": a.ID, "points": in.Points},
		))
	}

	d := answerDetail(e, *a)
	return &d, nil
}

// SuggestReview asks the review assistant for a grade of an open-ended
// answer. The suggestion is not stored.
func (s *Service) SuggestReview(ctx context.Context, p model.Principal, resultID, answerID int64) (*llm.Suggestion, error) {
	r, e, err := s.loadManagedResult(ctx, p, resultID, ActionReviewAnswer)
	if err != nil {
		return nil, err
	}
	if s.reviewer == nil {
		return nil, ErrReviewUnavailable
	}
	a, q, err := openEndedAnswer(r, e, answerID)
	if err != nil {
		return nil, err
	}
	var text string
	if a.TextAnswer != nil {
		text = *a.TextAnswer
	}
	sug, err := s.reviewer.SuggestReview(ctx, q, text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		slog.Error("review suggestion failed", "result_id", r.ID, "answer_id", a.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}
	return sug, nil
}
