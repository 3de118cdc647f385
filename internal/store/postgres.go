package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users ---

const userColumns = `id, username, display_name, email, password_hash, role, is_active,
	must_change_password, feed_token, created_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash, &u.Role,
		&u.IsActive, &u.MustChangePassword, &u.FeedToken, &u.CreatedAt, &u.LastLogin)
	return u, err
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
}

func (s *PostgresStore) GetUserByFeedToken(ctx context.Context, token string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE feed_token=$1 AND feed_token != ''`, token))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u User) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, display_name, email, password_hash, role, is_active, must_change_password, feed_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, u.Username, u.DisplayName, u.Email, u.PasswordHash, u.Role, u.IsActive, u.MustChangePassword, u.FeedToken).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET display_name=$2, email=$3, role=$4, is_active=$5 WHERE id=$1
	`, u.ID, u.DisplayName, u.Email, u.Role, u.IsActive)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string, mustChange bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, must_change_password=$3 WHERE id=$1
	`, id, passwordHash, mustChange)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLastLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login=NOW() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateFeedToken(ctx context.Context, id int64, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET feed_token=$2 WHERE id=$1`, id, token)
	if err != nil {
		return fmt.Errorf("update feed token: %w", err)
	}
	return nil
}

// --- Departments ---

const departmentColumns = `id, name, color, sort_order, is_special, is_archived, created_at`

func scanDepartment(row interface{ Scan(...any) error }) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Color, &d.SortOrder, &d.IsSpecial, &d.IsArchived, &d.CreatedAt)
	return d, err
}

func (s *PostgresStore) GetDepartment(ctx context.Context, id int64) (Department, error) {
	return scanDepartment(s.db.QueryRowContext(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id=$1`, id))
}

func (s *PostgresStore) ListDepartments(ctx context.Context, includeArchived bool) ([]Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments`
	if !includeArchived {
		query += ` WHERE is_archived = FALSE`
	}
	query += ` ORDER BY sort_order, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

func (s *PostgresStore) CreateDepartment(ctx context.Context, d Department) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO departments (name, color, sort_order, is_special, is_archived)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, d.Name, d.Color, d.SortOrder, d.IsSpecial, d.IsArchived).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("insert department: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateDepartment(ctx context.Context, d Department) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE departments SET name=$2, color=$3, is_special=$4, is_archived=$5 WHERE id=$1
	`, d.ID, d.Name, d.Color, d.IsSpecial, d.IsArchived)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

// ReorderDepartments rewrites sort_order to match the given id order.
func (s *PostgresStore) ReorderDepartments(ctx context.Context, order []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}
	for i, id := range order {
		if _, err := tx.ExecContext(ctx, `UPDATE departments SET sort_order=$2 WHERE id=$1`, id, i); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reorder department %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDepartmentReporters(ctx context.Context, departmentID int64) ([]DepartmentReporter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dr.department_id, dr.user_id, u.username, u.display_name, dr.is_primary
		FROM department_reporters dr
		JOIN users u ON u.id = dr.user_id
		WHERE dr.department_id = $1
		ORDER BY dr.is_primary DESC, u.display_name
	`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list reporters: %w", err)
	}
	defer rows.Close()

	var reporters []DepartmentReporter
	for rows.Next() {
		var r DepartmentReporter
		if err := rows.Scan(&r.DepartmentID, &r.UserID, &r.Username, &r.DisplayName, &r.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan reporter: %w", err)
		}
		reporters = append(reporters, r)
	}
	return reporters, rows.Err()
}

// ReplaceDepartmentReporters rewrites the reporter set for a department:
// one primary plus any number of backups. A backup id equal to the primary
// is dropped rather than duplicated.
func (s *PostgresStore) ReplaceDepartmentReporters(ctx context.Context, departmentID int64, primary *int64, backups []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reporters tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM department_reporters WHERE department_id=$1`, departmentID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear reporters: %w", err)
	}
	if primary != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO department_reporters (department_id, user_id, is_primary) VALUES ($1, $2, TRUE)
		`, departmentID, *primary); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert primary reporter: %w", err)
		}
	}
	for _, userID := range backups {
		if primary != nil && userID == *primary {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO department_reporters (department_id, user_id, is_primary) VALUES ($1, $2, FALSE)
			ON CONFLICT (department_id, user_id) DO NOTHING
		`, departmentID, userID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert backup reporter: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reporters: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsDepartmentReporter(ctx context.Context, departmentID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM department_reporters WHERE department_id=$1 AND user_id=$2)
	`, departmentID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reporter: %w", err)
	}
	return exists, nil
}

// PrimaryReporter returns the department's primary reporter, or nil when unset.
func (s *PostgresStore) PrimaryReporter(ctx context.Context, departmentID int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+prefixedUserColumns("u")+`
		FROM department_reporters dr
		JOIN users u ON u.id = dr.user_id
		WHERE dr.department_id = $1 AND dr.is_primary AND u.is_active
	`, departmentID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("primary reporter: %w", err)
	}
	return &u, nil
}

func prefixedUserColumns(alias string) string {
	return alias + `.id, ` + alias + `.username, ` + alias + `.display_name, ` + alias + `.email, ` +
		alias + `.password_hash, ` + alias + `.role, ` + alias + `.is_active, ` +
		alias + `.must_change_password, ` + alias + `.feed_token, ` + alias + `.created_at, ` + alias + `.last_login`
}

// --- Attendance ---

func (s *PostgresStore) SetAttendance(ctx context.Context, meetingID, userID int64, status string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meeting_attendance (meeting_id, user_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (meeting_id, user_id) DO UPDATE SET status=EXCLUDED.status
	`, meetingID, userID, status)
	if err != nil {
		return fmt.Errorf("set attendance: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveAttendance(ctx context.Context, meetingID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM meeting_attendance WHERE meeting_id=$1 AND user_id=$2
	`, meetingID, userID)
	if err != nil {
		return fmt.Errorf("remove attendance: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttendance(ctx context.Context, meetingID int64) ([]Attendance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ma.meeting_id, ma.user_id, u.username, u.display_name, ma.status
		FROM meeting_attendance ma
		JOIN users u ON u.id = ma.user_id
		WHERE ma.meeting_id = $1
		ORDER BY u.display_name
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var entries []Attendance
	for rows.Next() {
		var a Attendance
		if err := rows.Scan(&a.MeetingID, &a.UserID, &a.Username, &a.DisplayName, &a.Status); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// --- Settings ---

func (s *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}
