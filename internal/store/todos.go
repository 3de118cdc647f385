package store

import (
	"context"
	"fmt"
	"strings"
)

const todoColumns = `t.id, t.section_id, t.text, t.done, t.assigned_to, u.display_name,
	t.due_date, t.priority, t.created_by, t.created_at, t.completed_at`

const todoJoin = ` FROM todos t LEFT JOIN users u ON u.id = t.assigned_to`

func scanTodo(row interface{ Scan(...any) error }) (Todo, error) {
	var t Todo
	err := row.Scan(&t.ID, &t.SectionID, &t.Text, &t.Done, &t.AssignedTo, &t.AssigneeName,
		&t.DueDate, &t.Priority, &t.CreatedBy, &t.CreatedAt, &t.CompletedAt)
	return t, err
}

func (s *PostgresStore) AddTodo(ctx context.Context, t Todo) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO todos (section_id, text, assigned_to, due_date, priority, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, t.SectionID, t.Text, t.AssignedTo, t.DueDate, t.Priority, t.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert todo: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetTodo(ctx context.Context, id int64) (Todo, error) {
	return scanTodo(s.db.QueryRowContext(ctx, `SELECT `+todoColumns+todoJoin+` WHERE t.id=$1`, id))
}

// SetTodoDone flips completion. completed_at is stamped on completion and
// cleared on reopen so close-time analytics stay honest.
func (s *PostgresStore) SetTodoDone(ctx context.Context, id int64, done bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE todos
		SET done=$2, completed_at=CASE WHEN $2 THEN NOW() ELSE NULL END
		WHERE id=$1
	`, id, done)
	if err != nil {
		return fmt.Errorf("set todo done: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTodo(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSectionTodos(ctx context.Context, sectionID int64) ([]Todo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+todoColumns+todoJoin+`
		WHERE t.section_id=$1
		ORDER BY t.done, t.created_at
	`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("list section todos: %w", err)
	}
	defer rows.Close()

	var todos []Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

const todoContextColumns = todoColumns + `, s.name, s.department_id, s.is_special, m.id, m.date`

const todoContextJoin = todoJoin + `
	JOIN sections s ON s.id = t.section_id
	JOIN meetings m ON m.id = s.meeting_id`

func scanTodoContext(row interface{ Scan(...any) error }) (TodoWithContext, error) {
	var t TodoWithContext
	err := row.Scan(&t.ID, &t.SectionID, &t.Text, &t.Done, &t.AssignedTo, &t.AssigneeName,
		&t.DueDate, &t.Priority, &t.CreatedBy, &t.CreatedAt, &t.CompletedAt,
		&t.SectionName, &t.SectionDepartment, &t.SectionIsSpecial, &t.MeetingID, &t.MeetingDate)
	return t, err
}

func (s *PostgresStore) GetTodoContext(ctx context.Context, id int64) (TodoWithContext, error) {
	return scanTodoContext(s.db.QueryRowContext(ctx, `
		SELECT `+todoContextColumns+todoContextJoin+` WHERE t.id=$1
	`, id))
}

// ListOpenTodos returns todos across meetings with AND-composed filters,
// newest meeting first.
func (s *PostgresStore) ListOpenTodos(ctx context.Context, filter TodoFilter) ([]TodoWithContext, error) {
	var conds []string
	var args []any

	if !filter.IncludeDone {
		conds = append(conds, "t.done = FALSE")
	}
	if filter.Unassigned {
		conds = append(conds, "t.assigned_to IS NULL")
	} else if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		conds = append(conds, fmt.Sprintf("t.assigned_to = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conds = append(conds, fmt.Sprintf("t.priority = $%d", len(args)))
	}
	if filter.Overdue {
		conds = append(conds, "t.due_date IS NOT NULL AND t.due_date < CURRENT_DATE AND t.done = FALSE")
	}

	query := `SELECT ` + todoContextColumns + todoContextJoin
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY m.date DESC, s.sort_order, t.created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list open todos: %w", err)
	}
	defer rows.Close()

	var todos []TodoWithContext
	for rows.Next() {
		t, err := scanTodoContext(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// ListUserTodos returns a user's todos in triage order: overdue first, then
// by due date with no-date items last, then priority, then age. Done todos
// are excluded unless includeDone is set.
func (s *PostgresStore) ListUserTodos(ctx context.Context, userID int64, includeDone bool) ([]TodoWithContext, error) {
	where := `t.done = FALSE AND t.assigned_to = $1`
	if includeDone {
		where = `t.assigned_to = $1`
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+todoContextColumns+todoContextJoin+`
		WHERE `+where+`
		ORDER BY
			(t.due_date IS NOT NULL AND t.due_date < CURRENT_DATE) DESC,
			t.due_date ASC NULLS LAST,
			CASE t.priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END,
			t.created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user todos: %w", err)
	}
	defer rows.Close()

	var todos []TodoWithContext
	for rows.Next() {
		t, err := scanTodoContext(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// CarryForwardTodo copies an open todo into the target section and closes the
// original, atomically. Returns the id of the new copy.
func (s *PostgresStore) CarryForwardTodo(ctx context.Context, todoID, targetSectionID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin carry tx: %w", err)
	}

	var newID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO todos (section_id, text, assigned_to, due_date, priority, created_by)
		SELECT $2, text, assigned_to, due_date, priority, created_by FROM todos WHERE id=$1
		RETURNING id
	`, todoID, targetSectionID).Scan(&newID)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("copy todo: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE todos SET done=TRUE, completed_at=NOW() WHERE id=$1
	`, todoID); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("close original todo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit carry: %w", err)
	}
	return newID, nil
}
