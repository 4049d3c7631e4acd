package exam

import (
	"slices"

	"github.com/pavelanni/examhall/internal/model"
)

// Action is an operation of the exam engine subject to authorization.
type Action string

const (
	ActionCreateExam    Action = "exam.create"
	ActionListCreated   Action = "exam.list_created"
	ActionListAvailable Action = "exam.list_available"
	ActionTakeExam      Action = "exam.take"
	ActionSubmitExam    Action = "exam.submit"
	ActionViewResults   Action = "exam.view_results"
	ActionReviewAnswer  Action = "exam.review_answer"
)

var actionRoles = map[Action][]model.UserRole{
	ActionCreateExam:    {model.RoleTeacher, model.RoleAdmin},
	ActionListCreated:   {model.RoleTeacher, model.RoleAdmin},
	ActionListAvailable: {model.RoleStudent},
	ActionTakeExam:      {model.RoleStudent},
	ActionSubmitExam:    {model.RoleStudent},
	ActionViewResults:   {model.RoleTeacher, model.RoleAdmin},
	ActionReviewAnswer:  {model.RoleTeacher, model.RoleAdmin},
}

// Allowed reports whether any of the principal's roles grants action a.
func Allowed(p model.Principal, a Action) bool {
	return slices.ContainsFunc(actionRoles[a], p.HasRole)
}

// CanManageCourse reports whether the principal may manage exams of course.
// Admins manage every course; teachers only the courses they own.
func CanManageCourse(p model.Principal, teacher *model.Teacher, course model.Course) bool {
	if p.IsAdmin() {
		return true
	}
	return teacher != nil && p.HasRole(model.RoleTeacher) && course.TeacherID == teacher.ID
}

func authorize(p model.Principal, a Action) error {
	if p.UserID == 0 && len(p.Roles) == 0 {
		return ErrUnauthorized
	}
	if !Allowed(p, a) {
		return ErrForbidden
	}
	return nil
}
