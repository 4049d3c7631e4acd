package exam

import (
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/examhall/internal/model"
)

// ExamDraft is the input for creating an exam, as posted by a teacher or read
// from an exam definition file.
type ExamDraft struct {
	Title           string          `json:"title" yaml:"title" validate:"required,max=200"`
	Description     string          `json:"description" yaml:"description" validate:"max=4000"`
	CourseID        int64           `json:"courseId" yaml:"courseId" validate:"required,gt=0"`
	DurationMinutes int             `json:"durationMinutes" yaml:"durationMinutes" validate:"gte=0"`
	StartTime       time.Time       `json:"startTime" yaml:"startTime" validate:"required"`
	EndTime         time.Time       `json:"endTime" yaml:"endTime" validate:"required,gtfield=StartTime"`
	Questions       []QuestionDraft `json:"questions" yaml:"questions" validate:"required,min=1,dive"`
}

// QuestionDraft is one question of an ExamDraft.
type QuestionDraft struct {
	Text        string             `json:"text" yaml:"text" validate:"required"`
	Points      int                `json:"points" yaml:"points" validate:"gte=0"`
	Type        model.QuestionType `json:"type" yaml:"type" validate:"required,oneof=MultipleChoice TrueFalse OpenEnded"`
	ModelAnswer string             `json:"modelAnswer,omitempty" yaml:"modelAnswer,omitempty"`
	Options     []OptionDraft      `json:"options" yaml:"options" validate:"dive"`
}

// OptionDraft is one selectable option of a choice question.
type OptionDraft struct {
	Text      string `json:"text" yaml:"text" validate:"required"`
	IsCorrect bool   `json:"isCorrect" yaml:"isCorrect"`
}

// BuildExam validates a draft and assembles the exam aggregate.
// Timestamps are normalized to UTC. Ids are assigned on persistence.
func BuildExam(d ExamDraft) (*model.Exam, error) {
	d.Title = strings.TrimSpace(d.Title)
	verr := &ValidationError{}
	if err := Validate(d); err != nil {
		fe, ok := err.(*ValidationError)
		if !ok {
			return nil, fmt.Errorf("validate exam: %w", err)
		}
		verr = fe
	}
	for i, q := range d.Questions {
		checkQuestion(verr, fmt.Sprintf("questions[%d]", i), q)
	}
	if !verr.empty() {
		return nil, verr
	}

	e := &model.Exam{
		Title:           d.Title,
		Description:     d.Description,
		CourseID:        d.CourseID,
		DurationMinutes: d.DurationMinutes,
		StartTime:       d.StartTime.UTC(),
		EndTime:         d.EndTime.UTC(),
		Questions:       make([]model.Question, 0, len(d.Questions)),
	}
	for _, qd := range d.Questions {
		q := model.Question{
			Text:        qd.Text,
			Points:      qd.Points,
			Type:        qd.Type,
			ModelAnswer: qd.ModelAnswer,
		}
		for _, od := range qd.Options {
			q.Options = append(q.Options, model.QuestionOption{Text: od.Text, IsCorrect: od.IsCorrect})
		}
		e.Questions = append(e.Questions, q)
	}
	return e, nil
}

// checkQuestion enforces the option structure implied by the question type.
func checkQuestion(verr *ValidationError, path string, q QuestionDraft) {
	correct := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			correct++
		}
	}
	switch q.Type {
	case model.QuestionMultipleChoice:
		if len(q.Options) < 2 {
			verr.Add(path+".options", "must have at least 2 item(s)")
		}
	case model.QuestionTrueFalse:
		if len(q.Options) != 2 {
			verr.Add(path+".options", "must have exactly 2 items")
		}
	case model.QuestionOpenEnded:
		if len(q.Options) > 0 {
			verr.Add(path+".options", "must be empty for open-ended questions")
		}
		return
	default:
		return
	}
	if correct != 1 {
		verr.Add(path+".options", fmt.Sprintf("must have exactly one correct option, got %d", correct))
	}
	if q.ModelAnswer != "" {
		verr.Add(path+".modelAnswer", "is only allowed for open-ended questions")
	}
}
