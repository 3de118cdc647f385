package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

func (s *PostgresStore) AnalyticsKPIs(ctx context.Context) (KPIs, error) {
	var k KPIs

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE date >= date_trunc('month', CURRENT_DATE))
		FROM meetings
	`).Scan(&k.TotalMeetings, &k.MeetingsThisMonth)
	if err != nil {
		return KPIs{}, fmt.Errorf("meeting counts: %w", err)
	}

	fillRate, hasCurrent, err := s.windowFillRate(ctx, 10, 0)
	if err != nil {
		return KPIs{}, err
	}
	prevRate, hasPrev, err := s.windowFillRate(ctx, 10, 10)
	if err != nil {
		return KPIs{}, err
	}
	if hasCurrent {
		k.FillRate = fillRate
	}
	k.FillRateTrend = "flat"
	if hasPrev && fillRate > prevRate {
		k.FillRateTrend = "up"
	} else if hasPrev && fillRate < prevRate {
		k.FillRateTrend = "down"
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE done = FALSE),
			COUNT(*) FILTER (WHERE done = FALSE AND due_date IS NOT NULL AND due_date < CURRENT_DATE)
		FROM todos
	`).Scan(&k.OpenTodos, &k.OverdueTodos)
	if err != nil {
		return KPIs{}, fmt.Errorf("todo counts: %w", err)
	}

	var avgDays *float64
	err = s.db.QueryRowContext(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM completed_at - created_at) / 86400.0)
		FROM todos WHERE done = TRUE AND completed_at IS NOT NULL
	`).Scan(&avgDays)
	if err != nil {
		return KPIs{}, fmt.Errorf("avg close days: %w", err)
	}
	if avgDays != nil {
		rounded := math.Round(*avgDays*10) / 10
		k.AvgCloseDays = &rounded
	}

	return k, nil
}

// windowFillRate computes the filled-section percentage over a window of
// recent meetings. The bool result is false when the window is empty.
func (s *PostgresStore) windowFillRate(ctx context.Context, limit, offset int) (int, bool, error) {
	var meetings, total, filled int
	err := s.db.QueryRowContext(ctx, `
		WITH window_meetings AS (
			SELECT id FROM meetings ORDER BY date DESC LIMIT $1 OFFSET $2
		)
		SELECT (SELECT COUNT(*) FROM window_meetings),
			COUNT(s.id),
			COUNT(s.id) FILTER (WHERE s.content != '')
		FROM sections s
		WHERE s.meeting_id IN (SELECT id FROM window_meetings)
	`, limit, offset).Scan(&meetings, &total, &filled)
	if err != nil {
		return 0, false, fmt.Errorf("window fill rate: %w", err)
	}
	if meetings == 0 {
		return 0, false, nil
	}
	return pct(filled, total), true, nil
}

func pct(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// FillRateSeries returns per-meeting fill percentages, oldest first.
func (s *PostgresStore) FillRateSeries(ctx context.Context, limit int) ([]FillRatePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.date,
			COUNT(s.id),
			COUNT(s.id) FILTER (WHERE s.content != ''),
			COUNT(s.id) FILTER (WHERE NOT s.is_special),
			COUNT(s.id) FILTER (WHERE NOT s.is_special AND s.content != '')
		FROM meetings m
		LEFT JOIN sections s ON s.meeting_id = m.id
		GROUP BY m.id, m.date
		ORDER BY m.date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fill rate series: %w", err)
	}
	defer rows.Close()

	var points []FillRatePoint
	for rows.Next() {
		var date time.Time
		var total, filled, regTotal, regFilled int
		if err := rows.Scan(&date, &total, &filled, &regTotal, &regFilled); err != nil {
			return nil, fmt.Errorf("scan fill rate: %w", err)
		}
		points = append(points, FillRatePoint{
			Date:       date.Format(dateLayout),
			FillPct:    pct(filled, total),
			RegularPct: pct(regFilled, regTotal),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query, oldest-first for the chart.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// TodoVelocity returns created/completed counts for trailing 7-day windows
// ending today, oldest window first.
func (s *PostgresStore) TodoVelocity(ctx context.Context, weeks int) ([]VelocityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.ws,
			(SELECT COUNT(*) FROM todos t
				WHERE t.created_at::date >= w.ws AND t.created_at::date <= w.ws + 6),
			(SELECT COUNT(*) FROM todos t
				WHERE t.completed_at IS NOT NULL
				AND t.completed_at::date >= w.ws AND t.completed_at::date <= w.ws + 6)
		FROM (
			SELECT CURRENT_DATE - (g.i * 7 + 6) AS ws
			FROM generate_series($1::int - 1, 0, -1) AS g(i)
		) w
	`, weeks)
	if err != nil {
		return nil, fmt.Errorf("todo velocity: %w", err)
	}
	defer rows.Close()

	var points []VelocityPoint
	for rows.Next() {
		var weekStart time.Time
		var p VelocityPoint
		if err := rows.Scan(&weekStart, &p.Created, &p.Completed); err != nil {
			return nil, fmt.Errorf("scan velocity: %w", err)
		}
		p.WeekStart = weekStart.Format(dateLayout)
		points = append(points, p)
	}
	return points, rows.Err()
}

// CompletionHeatmap builds the department-by-meeting fill matrix over the
// most recent meetings, oldest first.
func (s *PostgresStore) CompletionHeatmap(ctx context.Context, limit int) (Heatmap, error) {
	meetings, err := s.ListMeetings(ctx, limit, 0)
	if err != nil {
		return Heatmap{}, err
	}
	for i, j := 0, len(meetings)-1; i < j; i, j = i+1, j-1 {
		meetings[i], meetings[j] = meetings[j], meetings[i]
	}

	departments, err := s.ListDepartments(ctx, false)
	if err != nil {
		return Heatmap{}, err
	}

	type cellKey struct {
		meetingID    int64
		departmentID int64
	}
	filled := make(map[cellKey]bool)

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.meeting_id, s.department_id, s.content != ''
		FROM sections s
		WHERE s.department_id IS NOT NULL
			AND s.meeting_id IN (SELECT id FROM meetings ORDER BY date DESC LIMIT $1)
	`, limit)
	if err != nil {
		return Heatmap{}, fmt.Errorf("heatmap sections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var meetingID, departmentID int64
		var hasContent bool
		if err := rows.Scan(&meetingID, &departmentID, &hasContent); err != nil {
			return Heatmap{}, fmt.Errorf("scan heatmap section: %w", err)
		}
		filled[cellKey{meetingID, departmentID}] = hasContent
	}
	if err := rows.Err(); err != nil {
		return Heatmap{}, err
	}

	hm := Heatmap{Meetings: make([]string, 0, len(meetings)), Departments: make([]HeatmapRow, 0, len(departments))}
	for _, m := range meetings {
		hm.Meetings = append(hm.Meetings, m.Date.Format(dateLayout))
	}
	for _, dept := range departments {
		row := HeatmapRow{Department: dept.Name, IsSpecial: dept.IsSpecial, Cells: make([]HeatmapCell, 0, len(meetings))}
		for _, m := range meetings {
			status := "missing"
			if hasContent, ok := filled[cellKey{m.ID, dept.ID}]; ok {
				status = "empty"
				if hasContent {
					status = "filled"
				}
			}
			row.Cells = append(row.Cells, HeatmapCell{Date: m.Date.Format(dateLayout), Status: status})
		}
		hm.Departments = append(hm.Departments, row)
	}
	return hm, nil
}

// TodosByAssignee returns open todo counts per assignee broken down by
// priority, heaviest load first. Unassigned todos group under "Unassigned".
func (s *PostgresStore) TodosByAssignee(ctx context.Context) ([]AssigneeLoad, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(u.display_name, 'Unassigned'), t.priority, COUNT(*)
		FROM todos t
		LEFT JOIN users u ON u.id = t.assigned_to
		WHERE t.done = FALSE
		GROUP BY 1, 2
	`)
	if err != nil {
		return nil, fmt.Errorf("todos by assignee: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*AssigneeLoad)
	var order []string
	for rows.Next() {
		var name, priority string
		var count int
		if err := rows.Scan(&name, &priority, &count); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		load, ok := byName[name]
		if !ok {
			load = &AssigneeLoad{Name: name}
			byName[name] = load
			order = append(order, name)
		}
		switch priority {
		case "high":
			load.High += count
		case "low":
			load.Low += count
		default:
			load.Normal += count
		}
		load.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	loads := make([]AssigneeLoad, 0, len(order))
	for _, name := range order {
		loads = append(loads, *byName[name])
	}
	sort.SliceStable(loads, func(i, j int) bool { return loads[i].Total > loads[j].Total })
	return loads, nil
}

// StaleTodos returns open todos at least `days` whole days old, oldest first.
func (s *PostgresStore) StaleTodos(ctx context.Context, days int) ([]StaleTodo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.text, t.priority, u.display_name, s.name, m.date, t.due_date, t.created_at,
			(CURRENT_DATE - t.created_at::date)
		FROM todos t
		JOIN sections s ON s.id = t.section_id
		JOIN meetings m ON m.id = s.meeting_id
		LEFT JOIN users u ON u.id = t.assigned_to
		WHERE t.done = FALSE AND t.created_at <= NOW() - make_interval(days => $1)
		ORDER BY t.created_at ASC
	`, days)
	if err != nil {
		return nil, fmt.Errorf("stale todos: %w", err)
	}
	defer rows.Close()

	var stale []StaleTodo
	for rows.Next() {
		var st StaleTodo
		var meetingDate, createdAt time.Time
		var dueDate *time.Time
		if err := rows.Scan(&st.ID, &st.Text, &st.Priority, &st.AssigneeName, &st.SectionName,
			&meetingDate, &dueDate, &createdAt, &st.AgeDays); err != nil {
			return nil, fmt.Errorf("scan stale todo: %w", err)
		}
		st.MeetingDate = meetingDate.Format(dateLayout)
		st.CreatedAt = createdAt.Format(time.RFC3339)
		if dueDate != nil {
			due := dueDate.Format(dateLayout)
			st.DueDate = &due
		}
		stale = append(stale, st)
	}
	return stale, rows.Err()
}

// RecentActivity approximates an activity feed from section and todo
// timestamps; there is no dedicated activity log.
func (s *PostgresStore) RecentActivity(ctx context.Context, limit int) ([]ActivityItem, error) {
	var items []ActivityItem

	edits, err := s.db.QueryContext(ctx, `
		SELECT s.name, s.reporter, s.updated_at, m.date
		FROM sections s
		JOIN meetings m ON m.id = s.meeting_id
		WHERE s.updated_at IS NOT NULL AND s.content != ''
		ORDER BY s.updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("activity edits: %w", err)
	}
	defer edits.Close()
	for edits.Next() {
		var name, reporter string
		var updatedAt time.Time
		var meetingDate time.Time
		if err := edits.Scan(&name, &reporter, &updatedAt, &meetingDate); err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		items = append(items, ActivityItem{
			Type:        "section_edit",
			Text:        "Updated " + name,
			Actor:       orSomeone(reporter),
			MeetingDate: meetingDate.Format(dateLayout),
			Timestamp:   updatedAt,
		})
	}
	if err := edits.Err(); err != nil {
		return nil, err
	}

	created, err := s.db.QueryContext(ctx, `
		SELECT t.text, t.created_at, u.display_name, m.date
		FROM todos t
		JOIN sections s ON s.id = t.section_id
		JOIN meetings m ON m.id = s.meeting_id
		LEFT JOIN users u ON u.id = t.created_by
		ORDER BY t.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("activity created: %w", err)
	}
	defer created.Close()
	for created.Next() {
		var text string
		var createdAt time.Time
		var actor *string
		var meetingDate time.Time
		if err := created.Scan(&text, &createdAt, &actor, &meetingDate); err != nil {
			return nil, fmt.Errorf("scan created: %w", err)
		}
		items = append(items, ActivityItem{
			Type:        "todo_created",
			Text:        "Created: " + truncate(text, 50),
			Actor:       orSomeonePtr(actor),
			MeetingDate: meetingDate.Format(dateLayout),
			Timestamp:   createdAt,
		})
	}
	if err := created.Err(); err != nil {
		return nil, err
	}

	completed, err := s.db.QueryContext(ctx, `
		SELECT t.text, t.completed_at, u.display_name, m.date
		FROM todos t
		JOIN sections s ON s.id = t.section_id
		JOIN meetings m ON m.id = s.meeting_id
		LEFT JOIN users u ON u.id = t.assigned_to
		WHERE t.completed_at IS NOT NULL
		ORDER BY t.completed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("activity completed: %w", err)
	}
	defer completed.Close()
	for completed.Next() {
		var text string
		var completedAt time.Time
		var actor *string
		var meetingDate time.Time
		if err := completed.Scan(&text, &completedAt, &actor, &meetingDate); err != nil {
			return nil, fmt.Errorf("scan completed: %w", err)
		}
		items = append(items, ActivityItem{
			Type:        "todo_completed",
			Text:        "Completed: " + truncate(text, 50),
			Actor:       orSomeonePtr(actor),
			MeetingDate: meetingDate.Format(dateLayout),
			Timestamp:   completedAt,
		})
	}
	if err := completed.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func orSomeone(s string) string {
	if s == "" {
		return "Someone"
	}
	return s
}

func orSomeonePtr(s *string) string {
	if s == nil {
		return "Someone"
	}
	return orSomeone(*s)
}
