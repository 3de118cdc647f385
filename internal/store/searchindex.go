package store

import (
	"context"
	"fmt"
)

// The search_index table denormalizes sections and todos into one searchable
// shape; the fts column is generated by Postgres.

func (s *PostgresStore) IndexSection(ctx context.Context, sectionID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM search_index WHERE type='section' AND source_id=$1
	`, sectionID); err != nil {
		return fmt.Errorf("clear section index: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_index (type, source_id, meeting_id, meeting_date, section_name, reporter, content)
		SELECT 'section', s.id, m.id, m.date, s.name, s.reporter, s.content
		FROM sections s
		JOIN meetings m ON m.id = s.meeting_id
		WHERE s.id = $1 AND s.content != ''
	`, sectionID)
	if err != nil {
		return fmt.Errorf("index section: %w", err)
	}
	return nil
}

func (s *PostgresStore) IndexTodo(ctx context.Context, todoID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_index (type, source_id, meeting_id, meeting_date, section_name, reporter, content)
		SELECT 'todo', t.id, m.id, m.date, s.name, s.reporter, t.text
		FROM todos t
		JOIN sections s ON s.id = t.section_id
		JOIN meetings m ON m.id = s.meeting_id
		WHERE t.id = $1
		ON CONFLICT (type, source_id) DO UPDATE SET content=EXCLUDED.content, section_name=EXCLUDED.section_name
	`, todoID)
	if err != nil {
		return fmt.Errorf("index todo: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveFromIndex(ctx context.Context, typ string, sourceID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM search_index WHERE type=$1 AND source_id=$2
	`, typ, sourceID)
	if err != nil {
		return fmt.Errorf("remove from index: %w", err)
	}
	return nil
}

// RebuildSearchIndex repopulates the whole index from sections and todos.
func (s *PostgresStore) RebuildSearchIndex(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM search_index`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO search_index (type, source_id, meeting_id, meeting_date, section_name, reporter, content)
		SELECT 'section', s.id, m.id, m.date, s.name, s.reporter, s.content
		FROM sections s
		JOIN meetings m ON m.id = s.meeting_id
		WHERE s.content != ''
	`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("rebuild sections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO search_index (type, source_id, meeting_id, meeting_date, section_name, reporter, content)
		SELECT 'todo', t.id, m.id, m.date, s.name, s.reporter, t.text
		FROM todos t
		JOIN sections s ON s.id = t.section_id
		JOIN meetings m ON m.id = s.meeting_id
	`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("rebuild todos: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}
