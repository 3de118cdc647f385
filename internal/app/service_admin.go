package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"standup/api/internal/auth"
	"standup/api/internal/authn"
	"standup/api/internal/store"
)

// User administration.

func (s *Service) ListUsers(ctx context.Context, sess Session) ([]map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, u := range users {
		items = append(items, userPayload(u))
	}
	return items, nil
}

type CreateUserInput struct {
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName"`
	Email       *string `json:"email"`
	Role        string  `json:"role"`
	Password    string  `json:"password"`
}

func (s *Service) CreateUser(ctx context.Context, sess Session, input CreateUserInput) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	username := strings.TrimSpace(input.Username)
	displayName := strings.TrimSpace(input.DisplayName)
	if username == "" || displayName == "" || input.Password == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "username, displayName and password are required", nil)
	}
	if err := authn.ValidatePassword(input.Password); err != nil {
		return nil, mapAuthnError(err)
	}

	role := input.Role
	if role != "admin" && role != "member" {
		role = "member"
	}
	hash, err := authn.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	id, err := s.store.CreateUser(ctx, store.User{
		Username:     username,
		DisplayName:  displayName,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		FeedToken:    auth.RandomToken("feed"),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "USER_EXISTS", "Username or email already exists", nil)
		}
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

type UpdateUserInput struct {
	DisplayName string  `json:"displayName"`
	Email       *string `json:"email"`
	Role        string  `json:"role"`
	IsActive    bool    `json:"isActive"`
}

// UpdateUser edits a user's profile, role and active flag. Admins cannot
// deactivate themselves or drop their own admin role.
func (s *Service) UpdateUser(ctx context.Context, sess Session, userID int64, input UpdateUserInput) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "displayName is required", nil)
	}
	role := input.Role
	if role != "admin" && role != "member" {
		role = user.Role
	}

	if userID == sess.UserID && !input.IsActive {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "You cannot deactivate your own account", nil)
	}
	if userID == sess.UserID && role != "admin" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "You cannot remove your own admin role", nil)
	}

	user.DisplayName = displayName
	user.Email = input.Email
	user.Role = role
	user.IsActive = input.IsActive
	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "USER_EXISTS", "Email already exists", nil)
		}
		return nil, err
	}

	updated, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return userPayload(updated), nil
}

// ResetUserPassword issues a temporary password and forces a change on the
// user's next login. The plaintext is returned once for the admin to hand
// over out of band.
func (s *Service) ResetUserPassword(ctx context.Context, sess Session, userID int64) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	temp, err := s.authn.ResetPassword(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"temporaryPassword": temp}, nil
}

// RotateFeedToken mints a new personal feed token, invalidating the old URL.
func (s *Service) RotateFeedToken(ctx context.Context, sess Session, userID int64) (map[string]any, error) {
	if !s.isAdmin(sess) && sess.UserID != userID {
		return nil, errForbidden()
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	token := auth.RandomToken("feed")
	if err := s.store.UpdateFeedToken(ctx, userID, token); err != nil {
		return nil, err
	}
	return map[string]any{"feedToken": token}, nil
}

// Departments.

func (s *Service) ListDepartments(ctx context.Context, includeArchived bool) ([]map[string]any, error) {
	departments, err := s.store.ListDepartments(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(departments))
	for _, d := range departments {
		items = append(items, departmentPayload(d))
	}
	return items, nil
}

type DepartmentInput struct {
	Name       string  `json:"name"`
	Color      *string `json:"color"`
	SortOrder  int     `json:"sortOrder"`
	IsSpecial  bool    `json:"isSpecial"`
	IsArchived bool    `json:"isArchived"`
}

func (s *Service) CreateDepartment(ctx context.Context, sess Session, input DepartmentInput) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	id, err := s.store.CreateDepartment(ctx, store.Department{
		Name:      name,
		Color:     input.Color,
		SortOrder: input.SortOrder,
		IsSpecial: input.IsSpecial,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "DEPARTMENT_EXISTS", "A department with that name already exists", nil)
		}
		return nil, err
	}
	dept, err := s.store.GetDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	return departmentPayload(dept), nil
}

func (s *Service) UpdateDepartment(ctx context.Context, sess Session, departmentID int64, input DepartmentInput) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	dept, err := s.store.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	dept.Name = name
	dept.Color = input.Color
	dept.SortOrder = input.SortOrder
	dept.IsSpecial = input.IsSpecial
	dept.IsArchived = input.IsArchived
	if err := s.store.UpdateDepartment(ctx, dept); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "DEPARTMENT_EXISTS", "A department with that name already exists", nil)
		}
		return nil, err
	}
	updated, err := s.store.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	return departmentPayload(updated), nil
}

func (s *Service) ReorderDepartments(ctx context.Context, sess Session, order []int64) error {
	if !s.isAdmin(sess) {
		return errForbidden()
	}
	if len(order) == 0 {
		return nil
	}
	return s.store.ReorderDepartments(ctx, order)
}

func (s *Service) DepartmentReporters(ctx context.Context, departmentID int64) ([]map[string]any, error) {
	if _, err := s.store.GetDepartment(ctx, departmentID); err != nil {
		return nil, err
	}
	reporters, err := s.store.ListDepartmentReporters(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(reporters))
	for _, r := range reporters {
		items = append(items, map[string]any{
			"userId":      r.UserID,
			"username":    r.Username,
			"displayName": r.DisplayName,
			"isPrimary":   r.IsPrimary,
		})
	}
	return items, nil
}

// SetDepartmentReporters replaces a department's reporter assignments.
// Backups matching the primary are dropped.
func (s *Service) SetDepartmentReporters(ctx context.Context, sess Session, departmentID int64, primary *int64, backups []int64) error {
	if !s.isAdmin(sess) {
		return errForbidden()
	}
	if _, err := s.store.GetDepartment(ctx, departmentID); err != nil {
		return err
	}
	return s.store.ReplaceDepartmentReporters(ctx, departmentID, primary, backups)
}

// Settings.

func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	return s.store.ListSettings(ctx)
}

func (s *Service) SaveSettings(ctx context.Context, sess Session, values map[string]string) error {
	if !s.isAdmin(sess) {
		return errForbidden()
	}
	for key, value := range values {
		if err := s.store.SetSetting(ctx, key, strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}
