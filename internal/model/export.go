package model

import "time"

// ResultsExport is the top-level JSON structure for exam result export.
type ResultsExport struct {
	ExamID     int64           `json:"exam_id"`
	Title      string          `json:"title"`
	CourseName string          `json:"course_name"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
	MaxScore   int             `json:"max_score"`
	ExportedAt time.Time       `json:"exported_at"`
	Results    []StudentExport `json:"results"`
}

// StudentExport holds one student's result for export.
type StudentExport struct {
	ResultID     int64          `json:"result_id"`
	StudentName  string         `json:"student_name"`
	Score        int            `json:"score"`
	ReviewPoints int            `json:"review_points"`
	StartedAt    time.Time      `json:"started_at"`
	SubmittedAt  *time.Time     `json:"submitted_at,omitempty"`
	Answers      []AnswerExport `json:"answers"`
}

// AnswerExport holds per-question answer data for export.
type AnswerExport struct {
	Question       string       `json:"question"`
	Type           QuestionType `json:"type"`
	Points         int          `json:"points"`
	SelectedOption string       `json:"selected_option,omitempty"`
	TextAnswer     string       `json:"text_answer,omitempty"`
	AutoPoints     int          `json:"auto_points"`
	Correct        *bool        `json:"correct,omitempty"`
	ReviewPoints   *int         `json:"review_points,omitempty"`
	ReviewComment  string       `json:"review_comment,omitempty"`
}
