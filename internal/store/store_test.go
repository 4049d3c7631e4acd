package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/examhall/internal/model"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type seed struct {
	teacherID, studentID, courseID int64
}

// seedCourse creates a teacher owning one course and a student enrolled in it.
func seedCourse(t *testing.T, s *Store) seed {
	t.Helper()
	ctx := context.Background()
	tu, err := s.CreateUser(ctx, model.User{Username: "tina", FullName: "Tina Teacher", PasswordHash: "x", Roles: []model.UserRole{model.RoleTeacher}, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	su, err := s.CreateUser(ctx, model.User{Username: "sam", PasswordHash: "x", Roles: []model.UserRole{model.RoleStudent}, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	var sd seed
	if sd.teacherID, err = s.CreateTeacher(ctx, model.Teacher{UserID: tu, Department: "Math"}); err != nil {
		t.Fatalf("CreateTeacher: %v", err)
	}
	if sd.studentID, err = s.CreateStudent(ctx, model.Student{UserID: su}); err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	if sd.courseID, err = s.CreateCourse(ctx, model.Course{Code: "MATH101", Name: "Algebra", TeacherID: sd.teacherID}); err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	if _, err := s.Enroll(ctx, sd.studentID, sd.courseID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	return sd
}

func insertTestExam(t *testing.T, s *Store, courseID int64, title string, start time.Time) *model.Exam {
	t.Helper()
	e := &model.Exam{
		Title:           title,
		CourseID:        courseID,
		DurationMinutes: 45,
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		Questions: []model.Question{
			{Text: "2+2?", Points: 10, Type: model.QuestionMultipleChoice, Options: []model.QuestionOption{
				{Text: "4", IsCorrect: true}, {Text: "5"},
			}},
			{Text: "Explain zero", Points: 5, Type: model.QuestionOpenEnded, ModelAnswer: "Additive identity"},
		},
	}
	if _, err := s.CreateExam(context.Background(), e); err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	return e
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.UserCount(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected empty users table, got %d (%v)", count, err)
	}

	id, err := s.CreateUser(ctx, model.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "hash",
		Roles:        []model.UserRole{model.RoleAdmin, model.RoleTeacher, model.RoleAdmin},
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u, err := s.GetUserByUsername(ctx, "admin")
	if err != nil || u == nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u.ID != id || u.FullName != "" || !u.Active {
		t.Errorf("unexpected user: %+v", u)
	}
	if len(u.Roles) != 2 {
		t.Errorf("expected 2 distinct roles, got %v", u.Roles)
	}

	if _, err := s.CreateUser(ctx, model.User{Username: "admin", PasswordHash: "x"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	if err := s.ToggleUserActive(ctx, id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	if u, _ = s.GetUserByID(ctx, id); u.Active {
		t.Error("expected user to be inactive after toggle")
	}

	missing, err := s.GetUserByID(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("expected nil user for missing id, got %+v (%v)", missing, err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 1 || len(users[0].Roles) != 2 {
		t.Errorf("unexpected ListUsers result: %+v (%v)", users, err)
	}
}

func TestCreateUserWithProfiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := model.User{Username: "pat", PasswordHash: "x", Roles: []model.UserRole{model.RoleTeacher, model.RoleStudent}, Active: true}
	id, profiles, err := s.CreateUserWithProfiles(ctx, u, "Physics")
	if err != nil {
		t.Fatalf("CreateUserWithProfiles: %v", err)
	}
	if profiles.TeacherID == nil || profiles.StudentID == nil {
		t.Fatalf("expected both profiles, got %+v", profiles)
	}
	teacher, err := s.GetTeacherByUserID(ctx, id)
	if err != nil || teacher == nil || teacher.ID != *profiles.TeacherID || teacher.Department != "Physics" {
		t.Errorf("expected teacher profile %d, got %+v (err %v)", *profiles.TeacherID, teacher, err)
	}
	student, err := s.GetStudentByUserID(ctx, id)
	if err != nil || student == nil || student.ID != *profiles.StudentID {
		t.Errorf("expected student profile %d, got %+v (err %v)", *profiles.StudentID, student, err)
	}

	if _, _, err := s.CreateUserWithProfiles(ctx, u, ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	parent, profiles, err := s.CreateUserWithProfiles(ctx, model.User{Username: "paula", PasswordHash: "x", Roles: []model.UserRole{model.RoleParent}, Active: true}, "")
	if err != nil {
		t.Fatalf("CreateUserWithProfiles(parent): %v", err)
	}
	if parent == 0 || profiles.TeacherID != nil || profiles.StudentID != nil {
		t.Errorf("expected no profiles for a parent, got %+v", profiles)
	}

	t.Run("profile failure rolls back the user", func(t *testing.T) {
		if _, err := s.db.Exec(`DROP TABLE students`); err != nil {
			t.Fatalf("drop students: %v", err)
		}
		before, err := s.UserCount(ctx)
		if err != nil {
			t.Fatalf("UserCount: %v", err)
		}
		_, _, err = s.CreateUserWithProfiles(ctx, model.User{Username: "lost", PasswordHash: "x", Roles: []model.UserRole{model.RoleStudent}, Active: true}, "")
		if err == nil {
			t.Fatal("expected profile creation to fail")
		}
		after, err := s.UserCount(ctx)
		if err != nil {
			t.Fatalf("UserCount: %v", err)
		}
		if after != before {
			t.Errorf("expected %d users after rollback, got %d", before, after)
		}
		if u, err := s.GetUserByUsername(ctx, "lost"); err != nil || u != nil {
			t.Errorf("expected no user, got %+v (err %v)", u, err)
		}
	})
}

func TestProfilesAndEnrollment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedCourse(t, s)

	teacher, err := s.GetTeacher(ctx, sd.teacherID)
	if err != nil || teacher == nil || teacher.Department != "Math" {
		t.Fatalf("GetTeacher: %+v (%v)", teacher, err)
	}
	if _, err := s.CreateTeacher(ctx, model.Teacher{UserID: teacher.UserID}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for second teacher profile, got %v", err)
	}
	byUser, err := s.GetTeacherByUserID(ctx, teacher.UserID)
	if err != nil || byUser == nil || byUser.ID != sd.teacherID {
		t.Errorf("GetTeacherByUserID: %+v (%v)", byUser, err)
	}

	course, err := s.GetCourse(ctx, sd.courseID)
	if err != nil || course == nil || course.Status != model.CourseActive {
		t.Fatalf("GetCourse: %+v (%v)", course, err)
	}
	if _, err := s.CreateCourse(ctx, model.Course{Code: "MATH101", Name: "Again", TeacherID: sd.teacherID}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for course code, got %v", err)
	}

	ids, err := s.EnrolledCourseIDs(ctx, sd.studentID)
	if err != nil || len(ids) != 1 || ids[0] != sd.courseID {
		t.Errorf("EnrolledCourseIDs: %v (%v)", ids, err)
	}
	if ok, _ := s.IsEnrolled(ctx, sd.studentID, sd.courseID); !ok {
		t.Error("expected student to be enrolled")
	}
	if ok, _ := s.IsEnrolled(ctx, sd.studentID, 999); ok {
		t.Error("expected no enrollment in unknown course")
	}
	if _, err := s.Enroll(ctx, sd.studentID, sd.courseID); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for second enrollment, got %v", err)
	}
}

func TestExamRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedCourse(t, s)

	loc := time.FixedZone("UTC+3", 3*60*60)
	e := insertTestExam(t, s, sd.courseID, "Quiz", t0.In(loc))
	if e.ID == 0 || e.Questions[0].ID == 0 || e.Questions[0].Options[1].ID == 0 {
		t.Fatalf("expected ids to be assigned: %+v", e)
	}

	got, err := s.GetExam(ctx, e.ID)
	if err != nil || got == nil {
		t.Fatalf("GetExam: %v", err)
	}
	if !got.StartTime.Equal(t0) || got.StartTime.Location() != time.UTC {
		t.Errorf("expected start %v in UTC, got %v", t0, got.StartTime)
	}
	if len(got.Questions) != 2 || got.Questions[0].Text != "2+2?" || got.Questions[1].Type != model.QuestionOpenEnded {
		t.Fatalf("unexpected questions: %+v", got.Questions)
	}
	if opt, ok := got.Questions[0].CorrectOption(); !ok || opt.Text != "4" {
		t.Errorf("expected correct option 4, got %+v", opt)
	}
	if got.Questions[1].ModelAnswer != "Additive identity" || len(got.Questions[1].Options) != 0 {
		t.Errorf("unexpected open-ended question: %+v", got.Questions[1])
	}

	if missing, err := s.GetExam(ctx, 999); err != nil || missing != nil {
		t.Errorf("expected nil exam for missing id, got %+v (%v)", missing, err)
	}
}

func TestListExams(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedCourse(t, s)

	insertTestExam(t, s, sd.courseID, "Late", t0.Add(48*time.Hour))
	insertTestExam(t, s, sd.courseID, "Early", t0)
	insertTestExam(t, s, sd.courseID, "Middle", t0.Add(24*time.Hour))

	asc, err := s.ListExams(ctx, ExamFilter{CourseIDs: []int64{sd.courseID}})
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(asc) != 3 || asc[0].Title != "Early" || asc[2].Title != "Late" {
		t.Errorf("expected ascending order, got %+v", asc)
	}
	if asc[0].CourseName != "Algebra" {
		t.Errorf("expected course name Algebra, got %q", asc[0].CourseName)
	}

	desc, err := s.ListExams(ctx, ExamFilter{TeacherID: sd.teacherID, Newest: true})
	if err != nil || len(desc) != 3 || desc[0].Title != "Late" {
		t.Errorf("expected newest first, got %+v (%v)", desc, err)
	}

	none, err := s.ListExams(ctx, ExamFilter{CourseIDs: []int64{}})
	if err != nil || len(none) != 0 {
		t.Errorf("expected no exams for empty course set, got %+v (%v)", none, err)
	}
	other, err := s.ListExams(ctx, ExamFilter{TeacherID: 999})
	if err != nil || len(other) != 0 {
		t.Errorf("expected no exams for unknown teacher, got %+v (%v)", other, err)
	}
}

func TestResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedCourse(t, s)
	e := insertTestExam(t, s, sd.courseID, "Quiz", t0)

	correct := true
	text := "nothing"
	selected := e.Questions[0].Options[0].ID
	submitted := t0.Add(30 * time.Minute)
	r := &model.ExamResult{
		ExamID:      e.ID,
		StudentID:   sd.studentID,
		Score:       10,
		StartedAt:   t0,
		SubmittedAt: &submitted,
		Answers: []model.StudentAnswer{
			{QuestionID: e.Questions[0].ID, SelectedOptionID: &selected, AutoPoints: 10, Correct: &correct},
			{QuestionID: e.Questions[1].ID, TextAnswer: &text},
		},
	}
	if _, err := s.CreateResult(ctx, r); err != nil {
		t.Fatalf("CreateResult: %v", err)
	}
	if r.ID == 0 || r.Answers[1].ResultID != r.ID {
		t.Fatalf("expected ids to be assigned: %+v", r)
	}

	dup := &model.ExamResult{ExamID: e.ID, StudentID: sd.studentID, StartedAt: t0}
	if _, err := s.CreateResult(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for second result, got %v", err)
	}

	got, err := s.GetResult(ctx, r.ID)
	if err != nil || got == nil {
		t.Fatalf("GetResult: %v", err)
	}
	if len(got.Answers) != 2 || *got.Answers[0].SelectedOptionID != selected || *got.Answers[1].TextAnswer != text {
		t.Errorf("unexpected answers: %+v", got.Answers)
	}
	if got.Answers[1].Correct != nil {
		t.Error("open-ended answer should have no correctness flag")
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(submitted) {
		t.Errorf("expected submitted at %v, got %v", submitted, got.SubmittedAt)
	}

	byStudent, err := s.ResultsForStudent(ctx, sd.studentID)
	if err != nil || byStudent[e.ID].Score != 10 {
		t.Errorf("ResultsForStudent: %+v (%v)", byStudent, err)
	}
	rows, err := s.ListResultRows(ctx, e.ID)
	if err != nil || len(rows) != 1 || rows[0].StudentName() != "sam" {
		t.Errorf("ListResultRows: %+v (%v)", rows, err)
	}
	if n, _ := s.CountResults(ctx, e.ID); n != 1 {
		t.Errorf("expected 1 result, got %d", n)
	}

	if err := s.ReviewAnswer(ctx, got.Answers[1].ID, 4, "close enough", 1, t0.Add(time.Hour)); err != nil {
		t.Fatalf("ReviewAnswer: %v", err)
	}
	if err := s.ReviewAnswer(ctx, 999, 1, "", 1, t0); err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows for unknown answer, got %v", err)
	}
	got, _ = s.GetResult(ctx, r.ID)
	a := got.Answers[1]
	if a.ReviewPoints == nil || *a.ReviewPoints != 4 || a.ReviewComment != "close enough" || a.ReviewedBy == nil {
		t.Errorf("unexpected reviewed answer: %+v", a)
	}
	if got.Score != 10 {
		t.Errorf("review must not change the automatic score, got %d", got.Score)
	}
}

func TestAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedCourse(t, s)
	e := insertTestExam(t, s, sd.courseID, "Quiz", t0)

	if a, err := s.GetAttempt(ctx, e.ID, sd.studentID); err != nil || a != nil {
		t.Fatalf("expected no attempt, got %+v (%v)", a, err)
	}
	first, err := s.BeginAttempt(ctx, e.ID, sd.studentID, t0)
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	second, err := s.BeginAttempt(ctx, e.ID, sd.studentID, t0.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if second.ID != first.ID || !second.StartedAt.Equal(t0) {
		t.Errorf("expected original attempt to be kept, got %+v", second)
	}
}

func TestClosedExamAnnouncements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedCourse(t, s)
	e := insertTestExam(t, s, sd.courseID, "Quiz", t0)

	closed, err := s.ListUnannouncedClosedExams(ctx, t0.Add(time.Hour))
	if err != nil || len(closed) != 0 {
		t.Fatalf("expected no closed exams during window, got %+v (%v)", closed, err)
	}
	closed, err = s.ListUnannouncedClosedExams(ctx, t0.Add(3*time.Hour))
	if err != nil || len(closed) != 1 || closed[0].ID != e.ID {
		t.Fatalf("expected one closed exam, got %+v (%v)", closed, err)
	}
	if err := s.MarkExamAnnounced(ctx, e.ID); err != nil {
		t.Fatalf("MarkExamAnnounced: %v", err)
	}
	if closed, _ = s.ListUnannouncedClosedExams(ctx, t0.Add(3*time.Hour)); len(closed) != 0 {
		t.Errorf("expected announced exam to be skipped, got %+v", closed)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash, err := s.GetImportedFileHash(ctx, "exams/quiz.yaml")
	if err != nil || hash != "" {
		t.Fatalf("expected no hash, got %q (%v)", hash, err)
	}
	if err := s.SetImportedFileHash(ctx, "exams/quiz.yaml", "abc"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash(ctx, "exams/quiz.yaml", "def"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if hash, _ = s.GetImportedFileHash(ctx, "exams/quiz.yaml"); hash != "def" {
		t.Errorf("expected updated hash def, got %q", hash)
	}
}

func TestExportExamResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedCourse(t, s)
	e := insertTestExam(t, s, sd.courseID, "Quiz", t0)

	selected := e.Questions[0].Options[1].ID
	wrong := false
	r := &model.ExamResult{
		ExamID: e.ID, StudentID: sd.studentID, StartedAt: t0,
		Answers: []model.StudentAnswer{{QuestionID: e.Questions[0].ID, SelectedOptionID: &selected, Correct: &wrong}},
	}
	if _, err := s.CreateResult(ctx, r); err != nil {
		t.Fatalf("CreateResult: %v", err)
	}

	export, err := s.ExportExamResults(ctx, e.ID)
	if err != nil {
		t.Fatalf("ExportExamResults: %v", err)
	}
	if export.CourseName != "Algebra" || export.MaxScore != 15 || len(export.Results) != 1 {
		t.Fatalf("unexpected export: %+v", export)
	}
	ans := export.Results[0].Answers
	if len(ans) != 1 || ans[0].SelectedOption != "5" || ans[0].Question != "2+2?" {
		t.Errorf("unexpected exported answers: %+v", ans)
	}

	if _, err := s.ExportExamResults(ctx, 999); err == nil {
		t.Error("expected error for missing exam")
	}
}
