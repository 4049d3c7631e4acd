package model

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// RoleStudent is a student user role.
	RoleStudent UserRole = "Student"
	// RoleTeacher is a teacher user role.
	RoleTeacher UserRole = "Teacher"
	// RoleAdmin is an admin user role.
	RoleAdmin UserRole = "Admin"
	// RoleParent is a parent user role. Parents have no exam capabilities.
	RoleParent UserRole = "Parent"
)

// IsValid reports whether r is one of the known roles.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin, RoleParent:
		return true
	}
	return false
}

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Roles        []UserRole
	Active       bool
	CreatedAt    time.Time
}

// Principal is the authenticated caller of a request, as asserted by a bearer token.
type Principal struct {
	UserID   int64
	Username string
	Roles    []UserRole
}

// HasRole reports whether the principal holds role r.
func (p Principal) HasRole(r UserRole) bool {
	return slices.Contains(p.Roles, r)
}

// IsAdmin reports whether the principal holds the Admin role.
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

type principalCtxKey struct{}

// ContextWithPrincipal stores the authenticated principal in the request context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext retrieves the authenticated principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}

// Teacher is the teaching profile attached to a user.
type Teacher struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"userId"`
	Department string `json:"department,omitempty"`
}

// Student is the student profile attached to a user.
type Student struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// CourseStatus represents the lifecycle state of a course.
type CourseStatus string

const (
	CourseActive    CourseStatus = "active"
	CourseCompleted CourseStatus = "completed"
	CourseArchived  CourseStatus = "archived"
)

// Course is a taught course owned by one teacher.
type Course struct {
	ID        int64        `json:"id"`
	Code      string       `json:"code"`
	Name      string       `json:"name"`
	TeacherID int64        `json:"teacherId"`
	Status    CourseStatus `json:"status"`
}

// Enrollment links a student to a course.
type Enrollment struct {
	ID        int64 `json:"id"`
	StudentID int64 `json:"studentId"`
	CourseID  int64 `json:"courseId"`
}

// QuestionType determines how a question is answered and graded.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MultipleChoice"
	QuestionTrueFalse      QuestionType = "TrueFalse"
	QuestionOpenEnded      QuestionType = "OpenEnded"
)

var questionTypeOrdinals = []QuestionType{QuestionMultipleChoice, QuestionTrueFalse, QuestionOpenEnded}

// IsChoice reports whether answers to the question select an option.
func (t QuestionType) IsChoice() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// UnmarshalJSON accepts both the type name and its ordinal (0, 1, 2).
func (t *QuestionType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*t = QuestionType(name)
		return nil
	}
	var ordinal int
	if err := json.Unmarshal(data, &ordinal); err != nil {
		return fmt.Errorf("question type: %w", err)
	}
	if ordinal < 0 || ordinal >= len(questionTypeOrdinals) {
		return fmt.Errorf("question type: unknown ordinal %d", ordinal)
	}
	*t = questionTypeOrdinals[ordinal]
	return nil
}

// Exam is a gradable assessment tied to one course with a fixed availability window.
type Exam struct {
	ID              int64
	Title           string
	Description     string
	CourseID        int64
	DurationMinutes int // 0 means unlimited
	StartTime       time.Time
	EndTime         time.Time
	CreatedAt       time.Time
	Questions       []Question
}

// InWindow reports whether now falls within [start, end], both bounds inclusive.
func InWindow(now, start, end time.Time) bool {
	return !now.Before(start) && !now.After(end)
}

// IsOpen reports whether now falls within the availability window.
func (e Exam) IsOpen(now time.Time) bool {
	return InWindow(now, e.StartTime, e.EndTime)
}

// HasOption reports whether id is an option of any question of the exam.
func (e Exam) HasOption(id int64) bool {
	for _, q := range e.Questions {
		if q.HasOption(id) {
			return true
		}
	}
	return false
}

// Question finds a question of the exam by id.
func (e Exam) Question(id int64) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// MaxScore is the sum of all question points.
func (e Exam) MaxScore() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Points
	}
	return total
}

// Question represents an exam question.
type Question struct {
	ID          int64
	ExamID      int64
	Text        string
	Points      int
	Type        QuestionType
	ModelAnswer string // open-ended reference answer, never shown to students
	Options     []QuestionOption
}

// CorrectOption returns the first option flagged correct.
func (q Question) CorrectOption() (QuestionOption, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o, true
		}
	}
	return QuestionOption{}, false
}

// HasOption reports whether id is one of the question's options.
func (q Question) HasOption(id int64) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// QuestionOption is one selectable answer of a choice question.
type QuestionOption struct {
	ID         int64
	QuestionID int64
	Text       string
	IsCorrect  bool
}

// ExamAttempt records when a student explicitly began an exam.
type ExamAttempt struct {
	ID        int64
	ExamID    int64
	StudentID int64
	StartedAt time.Time
}

// ExamResult is one student's single attempt at one exam.
type ExamResult struct {
	ID          int64
	ExamID      int64
	StudentID   int64
	Score       int
	StartedAt   time.Time
	SubmittedAt *time.Time
	Answers     []StudentAnswer
}

// StudentAnswer is the answer given to one question in a result.
type StudentAnswer struct {
	ID               int64
	ResultID         int64
	QuestionID       int64
	SelectedOptionID *int64
	TextAnswer       *string
	AutoPoints       int
	Correct          *bool // nil for open-ended questions
	ReviewPoints     *int
	ReviewComment    string
	ReviewedBy       *int64
	ReviewedAt       *time.Time
}

// ExamSummary is an exam joined with its course name for listings.
type ExamSummary struct {
	ID              int64
	Title           string
	CourseID        int64
	CourseName      string
	DurationMinutes int
	StartTime       time.Time
	EndTime         time.Time
}

// IsOpen reports whether now falls within the availability window.
func (e ExamSummary) IsOpen(now time.Time) bool {
	return InWindow(now, e.StartTime, e.EndTime)
}

// ResultRow is a result joined with the student's names for reporting.
type ResultRow struct {
	ID          int64
	StudentID   int64
	FullName    string
	Username    string
	Score       int
	StartedAt   time.Time
	SubmittedAt *time.Time
}

// StudentName returns the display name: full name, then username, then a placeholder.
func (r ResultRow) StudentName() string {
	switch {
	case r.FullName != "":
		return r.FullName
	case r.Username != "":
		return r.Username
	default:
		return "Student"
	}
}

// SubmissionTime returns the submission time, falling back to the start time.
func (r ResultRow) SubmissionTime() time.Time {
	if r.SubmittedAt != nil {
		return *r.SubmittedAt
	}
	return r.StartedAt
}
