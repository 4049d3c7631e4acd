package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/examhall/internal/exam"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/store"
)

func TestParseExamFile(t *testing.T) {
	yamlDoc := `
exams:
  - title: Algebra quiz
    courseId: 1
    durationMinutes: 30
    startTime: 2026-03-10T09:00:00Z
    endTime: 2026-03-10T11:00:00Z
    questions:
      - text: "2+2?"
        points: 10
        type: MultipleChoice
        options:
          - text: "4"
            isCorrect: true
          - text: "5"
      - text: Explain zero
        points: 5
        type: OpenEnded
        modelAnswer: Additive identity
`
	jsonDoc := `{"exams": [{"title": "History", "courseId": 2, "startTime": "2026-03-10T09:00:00Z",
		"endTime": "2026-03-10T10:00:00Z", "questions": [{"text": "Year?", "points": 1, "type": 2}]}]}`

	tests := []struct {
		name      string
		path      string
		data      string
		wantTitle string
		wantType  model.QuestionType
		wantErr   bool
	}{
		{"yaml", "exams/algebra.yaml", yamlDoc, "Algebra quiz", model.QuestionMultipleChoice, false},
		{"json", "exams/history.json", jsonDoc, "History", model.QuestionOpenEnded, false},
		{"empty", "exams/empty.yml", "exams: []", "", "", true},
		{"broken json", "exams/broken.json", "{", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := parseExamFile(tt.path, []byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseExamFile: %v", err)
			}
			if drafts[0].Title != tt.wantTitle {
				t.Errorf("expected title %q, got %q", tt.wantTitle, drafts[0].Title)
			}
			if drafts[0].Questions[0].Type != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, drafts[0].Questions[0].Type)
			}
			if drafts[0].StartTime.IsZero() {
				t.Error("expected start time to be parsed")
			}
		})
	}
}

const importTemplate = `exams:
  - title: First
    courseId: %[1]d
    startTime: 2026-03-10T09:00:00Z
    endTime: 2026-03-10T11:00:00Z
    questions:
      - text: "2+2?"
        points: 10
        type: MultipleChoice
        options:
          - text: "4"
            isCorrect: true
          - text: "5"
  - title: Second
    courseId: %[1]d
    startTime: 2026-03-11T09:00:00Z
    endTime: %[2]s
    questions:
      - text: Explain zero
        points: 5
        type: OpenEnded
`

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	adminID, err := db.CreateUser(ctx, model.User{Username: "admin", PasswordHash: "x", Roles: []model.UserRole{model.RoleAdmin}, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	teacherUser, err := db.CreateUser(ctx, model.User{Username: "tina", PasswordHash: "x", Roles: []model.UserRole{model.RoleTeacher}, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	teacherID, err := db.CreateTeacher(ctx, model.Teacher{UserID: teacherUser})
	if err != nil {
		t.Fatalf("CreateTeacher: %v", err)
	}
	courseID, err := db.CreateCourse(ctx, model.Course{Code: "MATH101", Name: "Algebra", TeacherID: teacherID})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	admin := model.Principal{UserID: adminID, Username: "admin", Roles: []model.UserRole{model.RoleAdmin}}
	svc := exam.New(db, nil)
	path := filepath.Join(t.TempDir(), "algebra.yaml")

	countExams := func() int {
		t.Helper()
		n, err := db.ExamCount(ctx)
		if err != nil {
			t.Fatalf("ExamCount: %v", err)
		}
		return n
	}
	writeFile := func(end string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(fmt.Sprintf(importTemplate, courseID, end)), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// Second ends before it starts.
	writeFile("2026-03-11T08:00:00Z")
	if _, err := importFile(ctx, db, svc, admin, path, 0); err == nil {
		t.Fatal("expected import of a broken file to fail")
	}
	if n := countExams(); n != 0 {
		t.Fatalf("expected no exams after a failed import, got %d", n)
	}

	writeFile("2026-03-11T10:00:00Z")
	created, err := importFile(ctx, db, svc, admin, path, 0)
	if err != nil {
		t.Fatalf("importFile: %v", err)
	}
	if created != 2 || countExams() != 2 {
		t.Fatalf("expected 2 exams created, got %d (total %d)", created, countExams())
	}

	created, err = importFile(ctx, db, svc, admin, path, 0)
	if err != nil {
		t.Fatalf("importFile again: %v", err)
	}
	if created != 0 || countExams() != 2 {
		t.Errorf("expected unchanged file to be skipped, got %d created (total %d)", created, countExams())
	}
}
