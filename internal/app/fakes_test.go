package app

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"standup/api/internal/archive"
	"standup/api/internal/authn"
	"standup/api/internal/config"
	"standup/api/internal/ratelimit"
	"standup/api/internal/search"
	"standup/api/internal/session"
	"standup/api/internal/store"
)

// fakeStore is an in-memory dataStore for service and handler tests.
type fakeStore struct {
	users     map[int64]store.User
	depts     map[int64]store.Department
	reporters map[int64][]store.DepartmentReporter
	meetings  map[int64]store.Meeting
	sections  map[int64]store.Section
	todos     map[int64]store.Todo
	// attendance keys by meeting then user.
	attendance map[int64]map[int64]string
	templates  map[int64]store.Template
	tmplRows   map[int64][]store.TemplateSection
	settings   map[string]string
	nextID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      map[int64]store.User{},
		depts:      map[int64]store.Department{},
		reporters:  map[int64][]store.DepartmentReporter{},
		meetings:   map[int64]store.Meeting{},
		sections:   map[int64]store.Section{},
		todos:      map[int64]store.Todo{},
		attendance: map[int64]map[int64]string{},
		templates:  map[int64]store.Template{},
		tmplRows:   map[int64][]store.TemplateSection{},
		settings:   map[string]string{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

// Users.

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (store.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByFeedToken(_ context.Context, token string) (store.User, error) {
	for _, u := range f.users {
		if u.FeedToken == token {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) ListUsers(_ context.Context) ([]store.User, error) {
	users := make([]store.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (f *fakeStore) CountUsers(_ context.Context) (int, error) {
	return len(f.users), nil
}

func (f *fakeStore) CreateUser(_ context.Context, u store.User) (int64, error) {
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return 0, store.ErrConflict
		}
	}
	u.ID = f.id()
	u.CreatedAt = time.Now()
	f.users[u.ID] = u
	return u.ID, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, u store.User) error {
	existing, ok := f.users[u.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.DisplayName = u.DisplayName
	existing.Email = u.Email
	existing.Role = u.Role
	existing.IsActive = u.IsActive
	f.users[u.ID] = existing
	return nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string, mustChange bool) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	u.MustChangePassword = mustChange
	f.users[id] = u
	return nil
}

func (f *fakeStore) UpdateLastLogin(_ context.Context, id int64) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now()
	u.LastLogin = &now
	f.users[id] = u
	return nil
}

func (f *fakeStore) UpdateFeedToken(_ context.Context, id int64, token string) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.FeedToken = token
	f.users[id] = u
	return nil
}

// Departments.

func (f *fakeStore) GetDepartment(_ context.Context, id int64) (store.Department, error) {
	d, ok := f.depts[id]
	if !ok {
		return store.Department{}, sql.ErrNoRows
	}
	return d, nil
}

func (f *fakeStore) ListDepartments(_ context.Context, includeArchived bool) ([]store.Department, error) {
	depts := make([]store.Department, 0, len(f.depts))
	for _, d := range f.depts {
		if d.IsArchived && !includeArchived {
			continue
		}
		depts = append(depts, d)
	}
	sort.Slice(depts, func(i, j int) bool {
		if depts[i].SortOrder != depts[j].SortOrder {
			return depts[i].SortOrder < depts[j].SortOrder
		}
		return depts[i].ID < depts[j].ID
	})
	return depts, nil
}

func (f *fakeStore) CreateDepartment(_ context.Context, d store.Department) (int64, error) {
	for _, existing := range f.depts {
		if existing.Name == d.Name {
			return 0, store.ErrConflict
		}
	}
	d.ID = f.id()
	f.depts[d.ID] = d
	return d.ID, nil
}

func (f *fakeStore) UpdateDepartment(_ context.Context, d store.Department) error {
	if _, ok := f.depts[d.ID]; !ok {
		return sql.ErrNoRows
	}
	f.depts[d.ID] = d
	return nil
}

func (f *fakeStore) ReorderDepartments(_ context.Context, order []int64) error {
	for i, id := range order {
		if d, ok := f.depts[id]; ok {
			d.SortOrder = i
			f.depts[id] = d
		}
	}
	return nil
}

func (f *fakeStore) ListDepartmentReporters(_ context.Context, departmentID int64) ([]store.DepartmentReporter, error) {
	return f.reporters[departmentID], nil
}

func (f *fakeStore) ReplaceDepartmentReporters(_ context.Context, departmentID int64, primary *int64, backups []int64) error {
	var rows []store.DepartmentReporter
	add := func(userID int64, isPrimary bool) {
		u := f.users[userID]
		rows = append(rows, store.DepartmentReporter{
			DepartmentID: departmentID,
			UserID:       userID,
			Username:     u.Username,
			DisplayName:  u.DisplayName,
			IsPrimary:    isPrimary,
		})
	}
	if primary != nil {
		add(*primary, true)
	}
	for _, id := range backups {
		if primary != nil && id == *primary {
			continue
		}
		add(id, false)
	}
	f.reporters[departmentID] = rows
	return nil
}

func (f *fakeStore) IsDepartmentReporter(_ context.Context, departmentID, userID int64) (bool, error) {
	for _, r := range f.reporters[departmentID] {
		if r.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) PrimaryReporter(_ context.Context, departmentID int64) (*store.User, error) {
	for _, r := range f.reporters[departmentID] {
		if r.IsPrimary {
			u := f.users[r.UserID]
			return &u, nil
		}
	}
	return nil, nil
}

// Meetings and sections.

func (f *fakeStore) CreateMeeting(_ context.Context, date time.Time, templateID *int64, sections []store.Section) (int64, error) {
	for _, m := range f.meetings {
		if m.Date.Equal(date) {
			return 0, store.ErrConflict
		}
	}
	meeting := store.Meeting{
		ID:         f.id(),
		Date:       date,
		Status:     store.MeetingOpen,
		TemplateID: templateID,
		CreatedAt:  time.Now(),
	}
	f.meetings[meeting.ID] = meeting
	for _, section := range sections {
		section.ID = f.id()
		section.MeetingID = meeting.ID
		f.sections[section.ID] = section
	}
	return meeting.ID, nil
}

func (f *fakeStore) GetMeeting(_ context.Context, id int64) (store.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return store.Meeting{}, sql.ErrNoRows
	}
	return m, nil
}

func (f *fakeStore) LatestMeeting(_ context.Context) (store.Meeting, error) {
	var latest store.Meeting
	found := false
	for _, m := range f.meetings {
		if !found || m.Date.After(latest.Date) {
			latest = m
			found = true
		}
	}
	if !found {
		return store.Meeting{}, sql.ErrNoRows
	}
	return latest, nil
}

func (f *fakeStore) ListMeetings(_ context.Context, limit, offset int) ([]store.Meeting, error) {
	meetings := make([]store.Meeting, 0, len(f.meetings))
	for _, m := range f.meetings {
		meetings = append(meetings, m)
	}
	sort.Slice(meetings, func(i, j int) bool { return meetings[i].Date.After(meetings[j].Date) })
	if offset >= len(meetings) {
		return nil, nil
	}
	meetings = meetings[offset:]
	if len(meetings) > limit {
		meetings = meetings[:limit]
	}
	return meetings, nil
}

func (f *fakeStore) DeleteMeeting(_ context.Context, id int64) error {
	if _, ok := f.meetings[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.meetings, id)
	for sid, section := range f.sections {
		if section.MeetingID != id {
			continue
		}
		delete(f.sections, sid)
		for tid, todo := range f.todos {
			if todo.SectionID == sid {
				delete(f.todos, tid)
			}
		}
	}
	delete(f.attendance, id)
	return nil
}

func (f *fakeStore) LockMeeting(_ context.Context, id, userID int64) error {
	m, ok := f.meetings[id]
	if !ok {
		return sql.ErrNoRows
	}
	if m.Status == store.MeetingLocked {
		return nil
	}
	now := time.Now()
	m.Status = store.MeetingLocked
	m.LockedBy = &userID
	m.LockedAt = &now
	f.meetings[id] = m
	return nil
}

func (f *fakeStore) UnlockMeeting(_ context.Context, id int64) error {
	m, ok := f.meetings[id]
	if !ok {
		return sql.ErrNoRows
	}
	m.Status = store.MeetingOpen
	m.LockedBy = nil
	m.LockedAt = nil
	f.meetings[id] = m
	return nil
}

func (f *fakeStore) GetSection(_ context.Context, id int64) (store.Section, error) {
	s, ok := f.sections[id]
	if !ok {
		return store.Section{}, sql.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) ListSections(_ context.Context, meetingID int64) ([]store.Section, error) {
	var sections []store.Section
	for _, s := range f.sections {
		if s.MeetingID == meetingID {
			sections = append(sections, s)
		}
	}
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].SortOrder != sections[j].SortOrder {
			return sections[i].SortOrder < sections[j].SortOrder
		}
		return sections[i].ID < sections[j].ID
	})
	return sections, nil
}

func (f *fakeStore) UpdateSectionContent(_ context.Context, id int64, content string) error {
	s, ok := f.sections[id]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now()
	s.Content = content
	s.UpdatedAt = &now
	f.sections[id] = s
	return nil
}

func (f *fakeStore) FindCarrySection(_ context.Context, meetingID int64, departmentID *int64, name string) (store.Section, error) {
	sections, _ := f.ListSections(context.Background(), meetingID)
	if departmentID != nil {
		for _, s := range sections {
			if s.DepartmentID != nil && *s.DepartmentID == *departmentID {
				return s, nil
			}
		}
	}
	for _, s := range sections {
		if s.Name == name {
			return s, nil
		}
	}
	return store.Section{}, sql.ErrNoRows
}

// Templates.

func (f *fakeStore) ListTemplates(_ context.Context) ([]store.Template, error) {
	templates := make([]store.Template, 0, len(f.templates))
	for _, t := range f.templates {
		t.SectionCount = len(f.tmplRows[t.ID])
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (f *fakeStore) GetTemplate(_ context.Context, id int64) (store.Template, error) {
	t, ok := f.templates[id]
	if !ok {
		return store.Template{}, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) ListTemplateSections(_ context.Context, templateID int64) ([]store.TemplateSection, error) {
	var rows []store.TemplateSection
	for _, ts := range f.tmplRows[templateID] {
		dept, ok := f.depts[ts.DepartmentID]
		if !ok {
			continue
		}
		ts.DepartmentName = dept.Name
		ts.IsSpecial = dept.IsSpecial
		ts.Color = dept.Color
		rows = append(rows, ts)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SortOrder < rows[j].SortOrder })
	return rows, nil
}

func (f *fakeStore) CreateTemplate(_ context.Context, t store.Template, sections []store.TemplateSection) (int64, error) {
	for _, existing := range f.templates {
		if existing.Name == t.Name {
			return 0, store.ErrConflict
		}
	}
	t.ID = f.id()
	t.CreatedAt = time.Now()
	f.templates[t.ID] = t
	for i := range sections {
		sections[i].ID = f.id()
		sections[i].TemplateID = t.ID
	}
	f.tmplRows[t.ID] = sections
	return t.ID, nil
}

func (f *fakeStore) UpdateTemplate(_ context.Context, t store.Template, sections []store.TemplateSection) error {
	existing, ok := f.templates[t.ID]
	if !ok {
		return sql.ErrNoRows
	}
	for _, other := range f.templates {
		if other.ID != t.ID && other.Name == t.Name {
			return store.ErrConflict
		}
	}
	existing.Name = t.Name
	existing.Description = t.Description
	f.templates[t.ID] = existing
	for i := range sections {
		sections[i].ID = f.id()
		sections[i].TemplateID = t.ID
	}
	f.tmplRows[t.ID] = sections
	return nil
}

func (f *fakeStore) DeleteTemplate(_ context.Context, id int64) error {
	if _, ok := f.templates[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.templates, id)
	delete(f.tmplRows, id)
	return nil
}

// Attendance.

func (f *fakeStore) SetAttendance(_ context.Context, meetingID, userID int64, status string) error {
	if f.attendance[meetingID] == nil {
		f.attendance[meetingID] = map[int64]string{}
	}
	f.attendance[meetingID][userID] = status
	return nil
}

func (f *fakeStore) RemoveAttendance(_ context.Context, meetingID, userID int64) error {
	delete(f.attendance[meetingID], userID)
	return nil
}

func (f *fakeStore) ListAttendance(_ context.Context, meetingID int64) ([]store.Attendance, error) {
	var rows []store.Attendance
	for userID, status := range f.attendance[meetingID] {
		u := f.users[userID]
		rows = append(rows, store.Attendance{
			MeetingID:   meetingID,
			UserID:      userID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Status:      status,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DisplayName < rows[j].DisplayName })
	return rows, nil
}

// Settings.

func (f *fakeStore) SetSetting(_ context.Context, key, value string) error {
	f.settings[key] = value
	return nil
}

func (f *fakeStore) ListSettings(_ context.Context) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.settings {
		out[k] = v
	}
	return out, nil
}

// Todos.

func (f *fakeStore) AddTodo(_ context.Context, t store.Todo) (int64, error) {
	t.ID = f.id()
	t.CreatedAt = time.Now()
	f.todos[t.ID] = t
	return t.ID, nil
}

func (f *fakeStore) GetTodo(_ context.Context, id int64) (store.Todo, error) {
	t, ok := f.todos[id]
	if !ok {
		return store.Todo{}, sql.ErrNoRows
	}
	if t.AssignedTo != nil {
		if u, ok := f.users[*t.AssignedTo]; ok {
			name := u.DisplayName
			t.AssigneeName = &name
		}
	}
	return t, nil
}

func (f *fakeStore) SetTodoDone(_ context.Context, id int64, done bool) error {
	t, ok := f.todos[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.Done = done
	if done {
		now := time.Now()
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	f.todos[id] = t
	return nil
}

func (f *fakeStore) DeleteTodo(_ context.Context, id int64) error {
	if _, ok := f.todos[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.todos, id)
	return nil
}

func (f *fakeStore) ListSectionTodos(_ context.Context, sectionID int64) ([]store.Todo, error) {
	var todos []store.Todo
	for id := range f.todos {
		t, _ := f.GetTodo(context.Background(), id)
		if t.SectionID == sectionID {
			todos = append(todos, t)
		}
	}
	sort.Slice(todos, func(i, j int) bool {
		if todos[i].Done != todos[j].Done {
			return !todos[i].Done
		}
		return todos[i].ID < todos[j].ID
	})
	return todos, nil
}

func (f *fakeStore) GetTodoContext(_ context.Context, id int64) (store.TodoWithContext, error) {
	t, err := f.GetTodo(context.Background(), id)
	if err != nil {
		return store.TodoWithContext{}, err
	}
	section, ok := f.sections[t.SectionID]
	if !ok {
		return store.TodoWithContext{}, sql.ErrNoRows
	}
	meeting, ok := f.meetings[section.MeetingID]
	if !ok {
		return store.TodoWithContext{}, sql.ErrNoRows
	}
	return store.TodoWithContext{
		Todo:              t,
		SectionName:       section.Name,
		SectionDepartment: section.DepartmentID,
		SectionIsSpecial:  section.IsSpecial,
		MeetingID:         meeting.ID,
		MeetingDate:       meeting.Date,
	}, nil
}

func (f *fakeStore) ListOpenTodos(_ context.Context, filter store.TodoFilter) ([]store.TodoWithContext, error) {
	var todos []store.TodoWithContext
	for id := range f.todos {
		t, err := f.GetTodoContext(context.Background(), id)
		if err != nil {
			continue
		}
		if t.Done && !filter.IncludeDone {
			continue
		}
		if filter.Unassigned && t.AssignedTo != nil {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.Overdue && (t.DueDate == nil || !t.DueDate.Before(time.Now())) {
			continue
		}
		todos = append(todos, t)
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].ID < todos[j].ID })
	return todos, nil
}

func (f *fakeStore) ListUserTodos(_ context.Context, userID int64, includeDone bool) ([]store.TodoWithContext, error) {
	var todos []store.TodoWithContext
	for id := range f.todos {
		t, err := f.GetTodoContext(context.Background(), id)
		if err != nil {
			continue
		}
		if t.AssignedTo == nil || *t.AssignedTo != userID {
			continue
		}
		if t.Done && !includeDone {
			continue
		}
		todos = append(todos, t)
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].ID < todos[j].ID })
	return todos, nil
}

func (f *fakeStore) CarryForwardTodo(_ context.Context, todoID, targetSectionID int64) (int64, error) {
	original, ok := f.todos[todoID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	carried := store.Todo{
		SectionID:  targetSectionID,
		Text:       original.Text,
		AssignedTo: original.AssignedTo,
		DueDate:    original.DueDate,
		Priority:   original.Priority,
		CreatedBy:  original.CreatedBy,
		CreatedAt:  time.Now(),
	}
	carried.ID = f.id()
	f.todos[carried.ID] = carried

	now := time.Now()
	original.Done = true
	original.CompletedAt = &now
	f.todos[todoID] = original
	return carried.ID, nil
}

// Search index and analytics are exercised against a real database; the
// fakes only need to not fail.

func (f *fakeStore) IndexSection(_ context.Context, _ int64) error { return nil }

func (f *fakeStore) IndexTodo(_ context.Context, _ int64) error { return nil }

func (f *fakeStore) RemoveFromIndex(_ context.Context, _ string, _ int64) error { return nil }

func (f *fakeStore) RebuildSearchIndex(_ context.Context) error { return nil }

func (f *fakeStore) AnalyticsKPIs(_ context.Context) (store.KPIs, error) {
	return store.KPIs{TotalMeetings: len(f.meetings)}, nil
}

func (f *fakeStore) FillRateSeries(_ context.Context, _ int) ([]store.FillRatePoint, error) {
	return nil, nil
}

func (f *fakeStore) TodoVelocity(_ context.Context, _ int) ([]store.VelocityPoint, error) {
	return nil, nil
}

func (f *fakeStore) CompletionHeatmap(_ context.Context, _ int) (store.Heatmap, error) {
	return store.Heatmap{}, nil
}

func (f *fakeStore) TodosByAssignee(_ context.Context) ([]store.AssigneeLoad, error) {
	return nil, nil
}

func (f *fakeStore) StaleTodos(_ context.Context, _ int) ([]store.StaleTodo, error) {
	return nil, nil
}

func (f *fakeStore) RecentActivity(_ context.Context, _ int) ([]store.ActivityItem, error) {
	return nil, nil
}

func (f *fakeStore) Ping(_ context.Context) error { return nil }

// fakeSearch records indexing calls and answers canned results.
type fakeSearch struct {
	results         []search.Result
	indexedSections []search.SectionRecord
	indexedTodos    []search.TodoRecord
	deletedSections []int64
	deletedTodos    []int64
	reindexed       bool
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	return search.Response{Results: f.results, Total: len(f.results), Query: q.Text}
}

func (f *fakeSearch) IndexSection(rec search.SectionRecord) {
	f.indexedSections = append(f.indexedSections, rec)
}

func (f *fakeSearch) IndexTodo(rec search.TodoRecord) {
	f.indexedTodos = append(f.indexedTodos, rec)
}

func (f *fakeSearch) DeleteSection(id int64) {
	f.deletedSections = append(f.deletedSections, id)
}

func (f *fakeSearch) DeleteTodo(id int64) {
	f.deletedTodos = append(f.deletedTodos, id)
}

func (f *fakeSearch) ReindexAllFromPG(_ context.Context) { f.reindexed = true }

// fakeArchive records snapshots and serves them back by date.
type fakeArchive struct {
	snapshots []string
	authors   []string
	contents  map[string]string
}

func (f *fakeArchive) Snapshot(date, markdown, author string) (string, error) {
	f.snapshots = append(f.snapshots, date)
	f.authors = append(f.authors, author)
	if f.contents == nil {
		f.contents = map[string]string{}
	}
	f.contents[date] = markdown
	return "abc1234", nil
}

func (f *fakeArchive) History(_ int) ([]archive.Commit, error) {
	return nil, nil
}

func (f *fakeArchive) ReadSnapshot(date string) (string, error) {
	markdown, ok := f.contents[date]
	if !ok {
		return "", errors.New("snapshot not found")
	}
	return markdown, nil
}

type testEnv struct {
	service *Service
	store   *fakeStore
	search  *fakeSearch
	archive *fakeArchive
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { client.Close() })
	sessions := session.NewRedisStoreWithClient(client)

	cfg := config.Config{
		TokenSecret: "test-secret",
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  24 * time.Hour,
	}
	fs := newFakeStore()
	fsearch := &fakeSearch{}
	farchive := &fakeArchive{}
	service := New(cfg, fs, sessions, authn.NewService(fs), ratelimit.New(3, time.Minute), fsearch, farchive)

	return &testEnv{service: service, store: fs, search: fsearch, archive: farchive}
}

// seedUser inserts a user with a bcrypt hash of the given password and
// returns it.
func seedUser(t *testing.T, fs *fakeStore, username, role, password string) store.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id, err := fs.CreateUser(context.Background(), store.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		FeedToken:    "feed-" + username,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	u, _ := fs.GetUserByID(context.Background(), id)
	return u
}

func sessionFor(t *testing.T, env *testEnv, user store.User) Session {
	t.Helper()
	sess, err := env.service.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return sess
}
