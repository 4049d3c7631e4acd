package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examhall/internal/exam"
	"github.com/pavelanni/examhall/internal/model"
)

type createUserRequest struct {
	Username   string           `json:"username" validate:"required,min=3,max=64"`
	FullName   string           `json:"fullName" validate:"max=200"`
	Email      string           `json:"email" validate:"omitempty,email"`
	Password   string           `json:"password" validate:"required,min=8"`
	Roles      []model.UserRole `json:"roles" validate:"required,min=1,dive,oneof=Student Teacher Admin Parent"`
	Department string           `json:"department" validate:"max=200"`
}

type userView struct {
	ID        int64            `json:"id"`
	Username  string           `json:"username"`
	FullName  string           `json:"fullName,omitempty"`
	Email     string           `json:"email,omitempty"`
	Roles     []model.UserRole `json:"roles"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"createdAt"`
	TeacherID *int64           `json:"teacherId,omitempty"`
	StudentID *int64           `json:"studentId,omitempty"`
}

type createCourseRequest struct {
	Code      string `json:"code" validate:"required,max=32"`
	Name      string `json:"name" validate:"required,max=200"`
	TeacherID int64  `json:"teacherId" validate:"required,gt=0"`
}

type enrollRequest struct {
	StudentID int64 `json:"studentId" validate:"required,gt=0"`
	CourseID  int64 `json:"courseId" validate:"required,gt=0"`
}

func newUserView(u model.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		Roles:     u.Roles,
		Active:    u.Active,
		CreatedAt: u.CreatedAt.UTC(),
	}
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := exam.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	u := model.User{
		Username:     req.Username,
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Roles:        req.Roles,
		Active:       true,
	}
	id, profiles, err := h.store.CreateUserWithProfiles(r.Context(), u, req.Department)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u.ID = id
	view := newUserView(u)
	view.CreatedAt = time.Now().UTC()
	view.TeacherID, view.StudentID = profiles.TeacherID, profiles.StudentID
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil {
		writeError(w, r, exam.ErrNotFound)
		return
	}
	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("toggled user active", "id", id, "active", !user.Active, "by", principal(r).Username)
	user.Active = !user.Active
	writeJSON(w, http.StatusOK, newUserView(*user))
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.store.ListCourses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := exam.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}
	teacher, err := h.store.GetTeacher(r.Context(), req.TeacherID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if teacher == nil {
		writeError(w, r, fmt.Errorf("teacher %d: %w", req.TeacherID, exam.ErrNotFound))
		return
	}
	c := model.Course{Code: req.Code, Name: req.Name, TeacherID: req.TeacherID, Status: model.CourseActive}
	if c.ID, err = h.store.CreateCourse(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("created course", "id", c.ID, "code", c.Code, "teacher_id", c.TeacherID)
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := exam.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	st, err := h.store.GetStudent(ctx, req.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	course, err := h.store.GetCourse(ctx, req.CourseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if st == nil || course == nil {
		writeError(w, r, fmt.Errorf("student %d or course %d: %w", req.StudentID, req.CourseID, exam.ErrNotFound))
		return
	}
	id, err := h.store.Enroll(ctx, st.ID, course.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.Enrollment{ID: id, StudentID: st.ID, CourseID: course.ID})
}
