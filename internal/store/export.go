package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/examhall/internal/model"
)

// ExportExamResults builds an export-ready view of every result of an exam.
func (s *Store) ExportExamResults(ctx context.Context, examID int64) (*model.ResultsExport, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam %d: %w", examID, err)
	}
	if exam == nil {
		return nil, fmt.Errorf("exam %d not found", examID)
	}
	course, err := s.GetCourse(ctx, exam.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get course %d: %w", exam.CourseID, err)
	}
	rows, err := s.ListResultRows(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	options := make(map[int64]string)
	for _, q := range exam.Questions {
		for _, o := range q.Options {
			options[o.ID] = o.Text
		}
	}

	export := &model.ResultsExport{
		ExamID:     exam.ID,
		Title:      exam.Title,
		StartTime:  exam.StartTime,
		EndTime:    exam.EndTime,
		MaxScore:   exam.MaxScore(),
		ExportedAt: time.Now().UTC(),
		Results:    []model.StudentExport{},
	}
	if course != nil {
		export.CourseName = course.Name
	}

	for _, row := range rows {
		result, err := s.GetResult(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("get result %d: %w", row.ID, err)
		}
		se := model.StudentExport{
			ResultID:    row.ID,
			StudentName: row.StudentName(),
			Score:       row.Score,
			StartedAt:   row.StartedAt,
			SubmittedAt: row.SubmittedAt,
		}
		for _, a := range result.Answers {
			q, _ := exam.Question(a.QuestionID)
			ae := model.AnswerExport{
				Question:      q.Text,
				Type:          q.Type,
				Points:        q.Points,
				AutoPoints:    a.AutoPoints,
				Correct:       a.Correct,
				ReviewPoints:  a.ReviewPoints,
				ReviewComment: a.ReviewComment,
			}
			if a.SelectedOptionID != nil {
				ae.SelectedOption = options[*a.SelectedOptionID]
			}
			if a.TextAnswer != nil {
				ae.TextAnswer = *a.TextAnswer
			}
			if a.ReviewPoints != nil {
				se.ReviewPoints += *a.ReviewPoints
			}
			se.Answers = append(se.Answers, ae)
		}
		export.Results = append(export.Results, se)
	}
	return export, nil
}
