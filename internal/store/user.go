package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pavelanni/examhall/internal/model"
)

// CreateUser inserts a new user together with its roles.
func (s *Store) CreateUser(ctx context.Context, u model.User) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	id, err := insertUser(ctx, tx, u)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "roles", u.Roles)
	return id, nil
}

// UserProfiles holds the ids of profiles created along with a user.
type UserProfiles struct {
	TeacherID *int64
	StudentID *int64
}

// CreateUserWithProfiles inserts a user with its roles and a teacher and/or
// student profile matching those roles, all in one transaction.
func (s *Store) CreateUserWithProfiles(ctx context.Context, u model.User, department string) (int64, UserProfiles, error) {
	var profiles UserProfiles
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, profiles, err
	}
	defer tx.Rollback()

	id, err := insertUser(ctx, tx, u)
	if err != nil {
		return 0, profiles, err
	}
	if slices.Contains(u.Roles, model.RoleTeacher) {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO teachers (user_id, department) VALUES (?, ?)`, id, department,
		)
		if err != nil {
			return 0, profiles, fmt.Errorf("create teacher profile: %w", err)
		}
		tid, err := res.LastInsertId()
		if err != nil {
			return 0, profiles, err
		}
		profiles.TeacherID = &tid
	}
	if slices.Contains(u.Roles, model.RoleStudent) {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO students (user_id, enrolled_at) VALUES (?, ?)`, id, time.Now().UTC(),
		)
		if err != nil {
			return 0, profiles, fmt.Errorf("create student profile: %w", err)
		}
		sid, err := res.LastInsertId()
		if err != nil {
			return 0, profiles, err
		}
		profiles.StudentID = &sid
	}
	if err := tx.Commit(); err != nil {
		return 0, profiles, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "roles", u.Roles,
		"teacher_profile", profiles.TeacherID != nil, "student_profile", profiles.StudentID != nil)
	return id, profiles, nil
}

func insertUser(ctx context.Context, tx *sql.Tx, u model.User) (int64, error) {
	var fullName any
	if u.FullName != "" {
		fullName = u.FullName
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, full_name, email, password_hash, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, fullName, u.Email, u.PasswordHash, u.Active, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("user %q: %w", u.Username, ErrDuplicate)
		}
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, role := range u.Roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`, id, role,
		); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, `WHERE username = ?`, username)
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	var fullName sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, full_name, email, password_hash, active, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &fullName, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.FullName = fullName.String
	if u.Roles, err = s.userRoles(ctx, u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) userRoles(ctx context.Context, userID int64) ([]model.UserRole, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []model.UserRole
	for rows.Next() {
		var r model.UserRole
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, full_name, email, password_hash, active, created_at
		 FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	var users []model.User
	for rows.Next() {
		var u model.User
		var fullName sql.NullString
		if err := rows.Scan(&u.ID, &u.Username, &fullName, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		u.FullName = fullName.String
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Roles, err = s.userRoles(ctx, users[i].ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET active = NOT active WHERE id = ?`, id)
	return err
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CreateTeacher attaches a teacher profile to a user.
func (s *Store) CreateTeacher(ctx context.Context, t model.Teacher) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO teachers (user_id, department) VALUES (?, ?)`, t.UserID, t.Department,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("teacher profile for user %d: %w", t.UserID, ErrDuplicate)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// CreateStudent attaches a student profile to a user.
func (s *Store) CreateStudent(ctx context.Context, st model.Student) (int64, error) {
	enrolledAt := st.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO students (user_id, enrolled_at) VALUES (?, ?)`, st.UserID, enrolledAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("student profile for user %d: %w", st.UserID, ErrDuplicate)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetTeacherByUserID returns the teacher profile of a user, or nil.
func (s *Store) GetTeacherByUserID(ctx context.Context, userID int64) (*model.Teacher, error) {
	var t model.Teacher
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, department FROM teachers WHERE user_id = ?`, userID,
	).Scan(&t.ID, &t.UserID, &t.Department)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetStudentByUserID returns the student profile of a user, or nil.
func (s *Store) GetStudentByUserID(ctx context.Context, userID int64) (*model.Student, error) {
	var st model.Student
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, enrolled_at FROM students WHERE user_id = ?`, userID,
	).Scan(&st.ID, &st.UserID, &st.EnrolledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetStudent returns a student profile by ID, or nil.
func (s *Store) GetStudent(ctx context.Context, id int64) (*model.Student, error) {
	var st model.Student
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, enrolled_at FROM students WHERE id = ?`, id,
	).Scan(&st.ID, &st.UserID, &st.EnrolledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetTeacher returns a teacher profile by ID, or nil.
func (s *Store) GetTeacher(ctx context.Context, id int64) (*model.Teacher, error) {
	var t model.Teacher
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, department FROM teachers WHERE id = ?`, id,
	).Scan(&t.ID, &t.UserID, &t.Department)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
