package store

import (
	"context"
	"fmt"
	"time"
)

const meetingColumns = `id, date, status, locked_by, locked_at, template_id, created_at`

func scanMeeting(row interface{ Scan(...any) error }) (Meeting, error) {
	var m Meeting
	err := row.Scan(&m.ID, &m.Date, &m.Status, &m.LockedBy, &m.LockedAt, &m.TemplateID, &m.CreatedAt)
	return m, err
}

// CreateMeeting inserts a meeting and its snapshot sections in one
// transaction. A duplicate date rolls everything back and returns ErrConflict.
func (s *PostgresStore) CreateMeeting(ctx context.Context, date time.Time, templateID *int64, sections []Section) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin meeting tx: %w", err)
	}

	var meetingID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO meetings (date, template_id) VALUES ($1, $2) RETURNING id
	`, date, templateID).Scan(&meetingID)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("insert meeting: %w", err)
	}

	for _, sec := range sections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sections (meeting_id, name, reporter, reporter_id, department_id, sort_order, is_special, content)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, meetingID, sec.Name, sec.Reporter, sec.ReporterID, sec.DepartmentID, sec.SortOrder, sec.IsSpecial, sec.Content); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert section: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit meeting: %w", err)
	}
	return meetingID, nil
}

func (s *PostgresStore) GetMeeting(ctx context.Context, id int64) (Meeting, error) {
	return scanMeeting(s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id=$1`, id))
}

func (s *PostgresStore) LatestMeeting(ctx context.Context) (Meeting, error) {
	return scanMeeting(s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings ORDER BY date DESC LIMIT 1`))
}

func (s *PostgresStore) ListMeetings(ctx context.Context, limit, offset int) ([]Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+meetingColumns+` FROM meetings ORDER BY date DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

func (s *PostgresStore) DeleteMeeting(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM search_index WHERE meeting_id=$1`, id); err != nil {
		return fmt.Errorf("clear meeting index: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return nil
}

// LockMeeting is idempotent: locking a locked meeting leaves it untouched.
func (s *PostgresStore) LockMeeting(ctx context.Context, id, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET status=$2, locked_by=$3, locked_at=NOW()
		WHERE id=$1 AND status != $2
	`, id, MeetingLocked, userID)
	if err != nil {
		return fmt.Errorf("lock meeting: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnlockMeeting(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET status=$2, locked_by=NULL, locked_at=NULL WHERE id=$1
	`, id, MeetingOpen)
	if err != nil {
		return fmt.Errorf("unlock meeting: %w", err)
	}
	return nil
}

// --- Sections ---

const sectionColumns = `id, meeting_id, name, reporter, reporter_id, department_id, sort_order, is_special, content, updated_at`

func scanSection(row interface{ Scan(...any) error }) (Section, error) {
	var sec Section
	err := row.Scan(&sec.ID, &sec.MeetingID, &sec.Name, &sec.Reporter, &sec.ReporterID,
		&sec.DepartmentID, &sec.SortOrder, &sec.IsSpecial, &sec.Content, &sec.UpdatedAt)
	return sec, err
}

func (s *PostgresStore) GetSection(ctx context.Context, id int64) (Section, error) {
	return scanSection(s.db.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id=$1`, id))
}

func (s *PostgresStore) ListSections(ctx context.Context, meetingID int64) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sectionColumns+` FROM sections WHERE meeting_id=$1 ORDER BY sort_order, id
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// UpdateSectionContent saves content last-write-wins and stamps updated_at.
func (s *PostgresStore) UpdateSectionContent(ctx context.Context, id int64, content string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sections SET content=$2, updated_at=NOW() WHERE id=$1
	`, id, content)
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

// FindCarrySection locates the section in a target meeting that matches a
// source section, by department id first and name second.
func (s *PostgresStore) FindCarrySection(ctx context.Context, meetingID int64, departmentID *int64, name string) (Section, error) {
	if departmentID != nil {
		sec, err := scanSection(s.db.QueryRowContext(ctx, `
			SELECT `+sectionColumns+` FROM sections WHERE meeting_id=$1 AND department_id=$2
		`, meetingID, *departmentID))
		if err == nil {
			return sec, nil
		}
	}
	return scanSection(s.db.QueryRowContext(ctx, `
		SELECT `+sectionColumns+` FROM sections WHERE meeting_id=$1 AND name=$2
	`, meetingID, name))
}

// --- Templates ---

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.description, t.created_by, u.display_name, t.created_at,
			(SELECT COUNT(*) FROM template_sections ts WHERE ts.template_id = t.id)
		FROM meeting_templates t
		LEFT JOIN users u ON u.id = t.created_by
		ORDER BY t.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatorName, &t.CreatedAt, &t.SectionCount); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id int64) (Template, error) {
	var t Template
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.name, t.description, t.created_by, u.display_name, t.created_at,
			(SELECT COUNT(*) FROM template_sections ts WHERE ts.template_id = t.id)
		FROM meeting_templates t
		LEFT JOIN users u ON u.id = t.created_by
		WHERE t.id=$1
	`, id).Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatorName, &t.CreatedAt, &t.SectionCount)
	return t, err
}

func (s *PostgresStore) ListTemplateSections(ctx context.Context, templateID int64) ([]TemplateSection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts.id, ts.template_id, ts.department_id, d.name, d.is_special, d.color, ts.sort_order, ts.default_content
		FROM template_sections ts
		JOIN departments d ON d.id = ts.department_id
		WHERE ts.template_id = $1
		ORDER BY ts.sort_order, ts.id
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list template sections: %w", err)
	}
	defer rows.Close()

	var sections []TemplateSection
	for rows.Next() {
		var ts TemplateSection
		if err := rows.Scan(&ts.ID, &ts.TemplateID, &ts.DepartmentID, &ts.DepartmentName, &ts.IsSpecial, &ts.Color, &ts.SortOrder, &ts.DefaultContent); err != nil {
			return nil, fmt.Errorf("scan template section: %w", err)
		}
		sections = append(sections, ts)
	}
	return sections, rows.Err()
}

func (s *PostgresStore) CreateTemplate(ctx context.Context, t Template, sections []TemplateSection) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin template tx: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO meeting_templates (name, description, created_by) VALUES ($1, $2, $3) RETURNING id
	`, t.Name, t.Description, t.CreatedBy).Scan(&id)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("insert template: %w", err)
	}

	for _, ts := range sections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO template_sections (template_id, department_id, sort_order, default_content)
			VALUES ($1, $2, $3, $4)
		`, id, ts.DepartmentID, ts.SortOrder, ts.DefaultContent); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert template section: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit template: %w", err)
	}
	return id, nil
}

// UpdateTemplate renames a template and replaces its section list wholesale.
func (s *PostgresStore) UpdateTemplate(ctx context.Context, t Template, sections []TemplateSection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE meeting_templates SET name=$2, description=$3 WHERE id=$1
	`, t.ID, t.Name, t.Description); err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update template: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM template_sections WHERE template_id=$1`, t.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear template sections: %w", err)
	}
	for _, ts := range sections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO template_sections (template_id, department_id, sort_order, default_content)
			VALUES ($1, $2, $3, $4)
		`, t.ID, ts.DepartmentID, ts.SortOrder, ts.DefaultContent); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert template section: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meeting_templates WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}
