package exam

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/examhall/internal/llm"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/notify"
	"github.com/pavelanni/examhall/internal/store"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeReviewer struct {
	suggestion *llm.Suggestion
	err        error
	gotAnswer  string
}

func (f *fakeReviewer) SuggestReview(_ context.Context, _ model.Question, answer string) (*llm.Suggestion, error) {
	f.gotAnswer = answer
	return f.suggestion, f.err
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	st  *store.Store
	svc *Service
	pub *recorder
	now time.Time

	admin, owner, otherTeacher, student, outsider model.Principal

	studentID   int64
	courseID    int64
	otherCourse int64
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	f := &fixture{t: t, ctx: context.Background(), st: st, pub: &recorder{}, now: baseTime}
	f.admin = f.user("admin", "", model.RoleAdmin)
	f.owner = f.user("tina", "Tina Teacher", model.RoleTeacher)
	f.otherTeacher = f.user("oscar", "", model.RoleTeacher)

	ownerID := f.teacherProfile(f.owner)
	otherID := f.teacherProfile(f.otherTeacher)

	f.courseID = f.course("MATH101", "Algebra", ownerID)
	f.otherCourse = f.course("HIST101", "History", otherID)

	f.student, f.studentID = f.enrolledStudent("sam", "Sam Student")
	f.outsider = f.user("olga", "", model.RoleStudent)
	if _, err := st.CreateStudent(f.ctx, model.Student{UserID: f.outsider.UserID}); err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}

	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.svc = New(st, f.pub, opts...)
	return f
}

func (f *fixture) user(username, fullName string, roles ...model.UserRole) model.Principal {
	f.t.Helper()
	id, err := f.st.CreateUser(f.ctx, model.User{
		Username:     username,
		FullName:     fullName,
		PasswordHash: "x",
		Roles:        roles,
		Active:       true,
	})
	if err != nil {
		f.t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return model.Principal{UserID: id, Username: username, Roles: roles}
}

func (f *fixture) teacherProfile(p model.Principal) int64 {
	f.t.Helper()
	id, err := f.st.CreateTeacher(f.ctx, model.Teacher{UserID: p.UserID})
	if err != nil {
		f.t.Fatalf("CreateTeacher: %v", err)
	}
	return id
}

func (f *fixture) course(code, name string, teacherID int64) int64 {
	f.t.Helper()
	id, err := f.st.CreateCourse(f.ctx, model.Course{Code: code, Name: name, TeacherID: teacherID})
	if err != nil {
		f.t.Fatalf("CreateCourse: %v", err)
	}
	return id
}

// enrolledStudent creates a student enrolled in the fixture's main course.
func (f *fixture) enrolledStudent(username, fullName string) (model.Principal, int64) {
	f.t.Helper()
	p := f.user(username, fullName, model.RoleStudent)
	id, err := f.st.CreateStudent(f.ctx, model.Student{UserID: p.UserID})
	if err != nil {
		f.t.Fatalf("CreateStudent: %v", err)
	}
	if _, err := f.st.Enroll(f.ctx, id, f.courseID); err != nil {
		f.t.Fatalf("Enroll: %v", err)
	}
	return p, id
}

// quizDraft has two multiple-choice questions worth 10 and 5 points. The
// first option of q1 and the second option of q2 are correct.
func quizDraft(courseID int64) ExamDraft {
	return ExamDraft{
		Title:           "Algebra quiz",
		Description:     "Chapter 1",
		CourseID:        courseID,
		DurationMinutes: 30,
		StartTime:       baseTime.Add(-time.Hour),
		EndTime:         baseTime.Add(time.Hour),
		Questions: []QuestionDraft{
			{Text: "2+2?", Points: 10, Type: model.QuestionMultipleChoice, Options: []OptionDraft{
				{Text: "4", IsCorrect: true}, {Text: "5"},
			}},
			{Text: "3*3?", Points: 5, Type: model.QuestionMultipleChoice, Options: []OptionDraft{
				{Text: "6"}, {Text: "9", IsCorrect: true},
			}},
		},
	}
}

func (f *fixture) createExam(d ExamDraft) *model.Exam {
	f.t.Helper()
	id, err := f.svc.Create(f.ctx, f.admin, d)
	if err != nil {
		f.t.Fatalf("Create: %v", err)
	}
	e, err := f.st.GetExam(f.ctx, id)
	if err != nil || e == nil {
		f.t.Fatalf("GetExam(%d): %v", id, err)
	}
	return e
}

func choose(q model.Question, optionIndex int) AnswerInput {
	id := q.Options[optionIndex].ID
	return AnswerInput{QuestionID: q.ID, SelectedOptionID: &id}
}

func ptr[T any](v T) *T { return &v }
