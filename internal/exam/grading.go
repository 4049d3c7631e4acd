package exam

import "github.com/pavelanni/examhall/internal/model"

// AnswerInput is one answer of a submission.
type AnswerInput struct {
	QuestionID       int64   `json:"questionId"`
	SelectedOptionID *int64  `json:"selectedOptionId,omitempty"`
	TextAnswer       *string `json:"textAnswer,omitempty"`
}

// Grade scores a submission against the exam and returns the total score and
// the answers to record.
//
// Answers to questions outside the exam are skipped, as are repeated answers
// to a question already answered in the same submission. A choice question
// earns its full points only when the selected option is its correct option.
// Open-ended answers earn nothing here and keep their text for review. A
// selected option of another question of the exam is recorded as submitted
// and earns nothing; an option unknown to the exam is recorded as none.
func Grade(e *model.Exam, answers []AnswerInput) (int, []model.StudentAnswer) {
	score := 0
	seen := make(map[int64]bool, len(answers))
	recorded := make([]model.StudentAnswer, 0, len(answers))
	for _, in := range answers {
		q, ok := e.Question(in.QuestionID)
		if !ok || seen[q.ID] {
			continue
		}
		seen[q.ID] = true

		a := model.StudentAnswer{
			QuestionID: q.ID,
			TextAnswer: in.TextAnswer,
		}
		if in.SelectedOptionID != nil && e.HasOption(*in.SelectedOptionID) {
			id := *in.SelectedOptionID
			a.SelectedOptionID = &id
		}
		if q.Type.IsChoice() {
			correct := false
			if opt, ok := q.CorrectOption(); ok && a.SelectedOptionID != nil {
				correct = opt.ID == *a.SelectedOptionID
			}
			if correct {
				a.AutoPoints = q.Points
			}
			a.Correct = &correct
		}
		score += a.AutoPoints
		recorded = append(recorded, a)
	}
	return score, recorded
}
