package search

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"strings"
)

// ts_headline can only emit literal selector strings, so we ask it for
// private-use sentinels, HTML-escape the whole snippet, then swap the
// sentinels for real <mark> tags. That way user content can never smuggle
// markup through the highlighter.
const (
	markStart = "\ue000"
	markEnd   = "\ue001"
)

// PgFTS implements Searcher on the search_index table maintained alongside
// section and todo writes. It is the fallback when Meilisearch is absent.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over search_index ranked by ts_rank, with
// ts_headline snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.FilterType != "" {
		where += " AND type = $2"
		args = append(args, string(q.FilterType))
	}

	headlineOpts := fmt.Sprintf("StartSel=%s, StopSel=%s, MaxWords=30, MaxFragments=1", markStart, markEnd)

	countSQL := "SELECT count(*) FROM search_index WHERE " + where
	dataSQL := fmt.Sprintf(`
		SELECT type, source_id, meeting_id, meeting_date::text, section_name, reporter,
			ts_headline('english', content, plainto_tsquery('english', $1), '%s')
		FROM search_index
		WHERE %s
		ORDER BY ts_rank(fts, plainto_tsquery('english', $1)) DESC, meeting_date DESC
		LIMIT %d`, headlineOpts, where, limit)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ, raw string
		if err := rows.Scan(&typ, &r.SourceID, &r.MeetingID, &r.MeetingDate, &r.SectionName, &r.Reporter, &raw); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		r.Snippet = renderSnippet(raw)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

func renderSnippet(raw string) string {
	escaped := html.EscapeString(raw)
	escaped = strings.ReplaceAll(escaped, markStart, "<mark>")
	return strings.ReplaceAll(escaped, markEnd, "</mark>")
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SectionRecord, []TodoRecord, error) {
	sectionRows, err := p.db.QueryContext(ctx, `
		SELECT s.id, s.meeting_id, m.date::text, s.name, s.reporter, s.content
		FROM sections s
		JOIN meetings m ON m.id = s.meeting_id
		WHERE s.content != ''
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load sections: %w", err)
	}
	defer sectionRows.Close()

	sections := make([]SectionRecord, 0)
	for sectionRows.Next() {
		var rec SectionRecord
		if err := sectionRows.Scan(&rec.ID, &rec.MeetingID, &rec.MeetingDate, &rec.Name, &rec.Reporter, &rec.Content); err != nil {
			return nil, nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, rec)
	}
	if err := sectionRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate sections: %w", err)
	}

	todoRows, err := p.db.QueryContext(ctx, `
		SELECT t.id, s.meeting_id, m.date::text, s.name, t.text, t.done
		FROM todos t
		JOIN sections s ON s.id = t.section_id
		JOIN meetings m ON m.id = s.meeting_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load todos: %w", err)
	}
	defer todoRows.Close()

	todos := make([]TodoRecord, 0)
	for todoRows.Next() {
		var rec TodoRecord
		if err := todoRows.Scan(&rec.ID, &rec.MeetingID, &rec.MeetingDate, &rec.SectionName, &rec.Text, &rec.Done); err != nil {
			return nil, nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, rec)
	}
	if err := todoRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate todos: %w", err)
	}

	return sections, todos, nil
}
