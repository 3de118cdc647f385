package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"standup/api/internal/store"
)

func wantDomainError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != status || domainErr.Code != code {
		t.Fatalf("expected %d %s, got %d %s", status, code, domainErr.Status, domainErr.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.store, "alice", "member", "correct-horse-battery")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := env.service.Login(ctx, "alice", "wrong", "10.0.0.1"); err == nil {
			t.Fatal("expected login failure")
		}
	}

	_, err := env.service.Login(ctx, "alice", "correct-horse-battery", "10.0.0.1")
	wantDomainError(t, err, http.StatusTooManyRequests, "RATE_LIMITED")

	// Another IP is unaffected.
	if _, err := env.service.Login(ctx, "alice", "correct-horse-battery", "10.0.0.2"); err != nil {
		t.Fatalf("login from fresh ip: %v", err)
	}
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.store, "bob", "member", "correct-horse-battery")

	ctx := context.Background()
	sess, err := env.service.Login(ctx, "bob", "correct-horse-battery", "10.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	promoted := env.store.users[user.ID]
	promoted.Role = "admin"
	env.store.users[user.ID] = promoted

	rotated, err := env.service.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.Role != "admin" {
		t.Fatalf("expected refreshed session role admin, got %s", rotated.Role)
	}

	// The old refresh token was revoked by rotation.
	if _, err := env.service.Refresh(ctx, sess.RefreshToken); err == nil {
		t.Fatal("expected rotated refresh token to be rejected")
	}
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.store, "carol", "member", "correct-horse-battery")

	ctx := context.Background()
	sess, err := env.service.Login(ctx, "carol", "correct-horse-battery", "10.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	disabled := env.store.users[user.ID]
	disabled.IsActive = false
	env.store.users[user.ID] = disabled

	if _, err := env.service.Refresh(ctx, sess.RefreshToken); err == nil {
		t.Fatal("expected refresh to fail for deactivated user")
	}
}

func TestCreateMeetingDuplicateDate(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	if _, err := env.service.CreateMeeting(ctx, sess, "2026-08-28", nil, nil); err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	_, err := env.service.CreateMeeting(ctx, sess, "2026-08-28", nil, nil)
	wantDomainError(t, err, http.StatusConflict, "MEETING_EXISTS")
}

func TestCreateMeetingDefaultSections(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	payload, err := env.service.CreateMeeting(context.Background(), sess, "2026-08-28", nil, nil)
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	sections := payload["sections"].([]map[string]any)
	if len(sections) != len(defaultSectionNames) {
		t.Fatalf("expected %d default sections, got %d", len(defaultSectionNames), len(sections))
	}
	if sections[0]["name"] != "Engineering" {
		t.Fatalf("expected Engineering first, got %v", sections[0]["name"])
	}
	last := sections[len(sections)-1]
	if last["name"] != "Shoutouts" || last["isSpecial"] != true {
		t.Fatalf("expected special Shoutouts section last, got %v", last)
	}
}

func TestCreateMeetingFromDepartmentsFillsReporters(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	reporter := seedUser(t, env.store, "dana", "member", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	deptID, err := env.store.CreateDepartment(ctx, store.Department{Name: "Engineering", SortOrder: 0})
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	rid := reporter.ID
	if err := env.store.ReplaceDepartmentReporters(ctx, deptID, &rid, nil); err != nil {
		t.Fatalf("set reporters: %v", err)
	}

	payload, err := env.service.CreateMeeting(ctx, sess, "2026-08-28", nil, nil)
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	sections := payload["sections"].([]map[string]any)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0]["reporter"] != "dana" {
		t.Fatalf("expected primary reporter dana, got %v", sections[0]["reporter"])
	}
}

func TestCreateMeetingFromTemplateSkipsArchivedDepartments(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	engID, err := env.store.CreateDepartment(ctx, store.Department{Name: "Engineering", SortOrder: 0})
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	opsID, err := env.store.CreateDepartment(ctx, store.Department{Name: "Operations", SortOrder: 1})
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	templateID, err := env.store.CreateTemplate(ctx, store.Template{Name: "Weekly"}, []store.TemplateSection{
		{DepartmentID: engID, SortOrder: 0, DefaultContent: "carry the oncall notes"},
		{DepartmentID: opsID, SortOrder: 1},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	archived := env.store.depts[opsID]
	archived.IsArchived = true
	env.store.depts[opsID] = archived

	payload, err := env.service.CreateMeeting(ctx, sess, "2026-08-28", &templateID, nil)
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	sections := payload["sections"].([]map[string]any)
	if len(sections) != 1 {
		t.Fatalf("expected archived department to be skipped, got %d sections", len(sections))
	}
	if sections[0]["name"] != "Engineering" || sections[0]["content"] != "carry the oncall notes" {
		t.Fatalf("unexpected section: %v", sections[0])
	}
}

func TestSaveTemplateFromMeetingCapturesContent(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	deptID, err := env.store.CreateDepartment(ctx, store.Department{Name: "Engineering"})
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	if _, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, []store.Section{
		{Name: "Engineering", DepartmentID: &deptID},
	}); err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	section := findSection(t, env.store, "Engineering")
	if _, err := env.service.SaveSection(ctx, sess, section.ID, "shipped the release"); err != nil {
		t.Fatalf("save section: %v", err)
	}

	payload, err := env.service.SaveTemplateFromMeeting(ctx, sess, section.MeetingID, "Weekly", "")
	if err != nil {
		t.Fatalf("save template: %v", err)
	}
	rows := payload["sections"].([]map[string]any)
	if len(rows) != 1 {
		t.Fatalf("expected 1 template section, got %d", len(rows))
	}
	if rows[0]["defaultContent"] != "shipped the release" {
		t.Fatalf("expected section content captured as default content, got %v", rows[0]["defaultContent"])
	}
}

func TestSaveSectionPermissions(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	reporter := seedUser(t, env.store, "erin", "member", "correct-horse-battery")
	outsider := seedUser(t, env.store, "frank", "member", "correct-horse-battery")
	adminSess := sessionFor(t, env, admin)

	ctx := context.Background()
	rid := reporter.ID
	_, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, []store.Section{
		{Name: "Engineering", ReporterID: &rid},
	})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	sectionID := findSection(t, env.store, "Engineering").ID

	if _, err := env.service.SaveSection(ctx, sessionFor(t, env, reporter), sectionID, "shipped the thing"); err != nil {
		t.Fatalf("reporter save: %v", err)
	}

	_, err = env.service.SaveSection(ctx, sessionFor(t, env, outsider), sectionID, "drive-by edit")
	wantDomainError(t, err, http.StatusForbidden, "FORBIDDEN")

	if _, err := env.service.SaveSection(ctx, adminSess, sectionID, "admin override"); err != nil {
		t.Fatalf("admin save: %v", err)
	}
}

func TestSaveSectionLockedMeeting(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	meetingID, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, []store.Section{{Name: "Engineering"}})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if _, err := env.service.LockMeeting(ctx, sess, meetingID); err != nil {
		t.Fatalf("lock: %v", err)
	}

	sectionID := findSection(t, env.store, "Engineering").ID
	_, err = env.service.SaveSection(ctx, sess, sectionID, "too late")
	wantDomainError(t, err, http.StatusForbidden, "MEETING_LOCKED")
}

func TestLockMeetingSnapshotsArchive(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	meetingID, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, []store.Section{{Name: "Engineering"}})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	payload, err := env.service.LockMeeting(ctx, sess, meetingID)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if payload["status"] != store.MeetingLocked {
		t.Fatalf("expected locked status, got %v", payload["status"])
	}
	if len(env.archive.snapshots) != 1 || env.archive.snapshots[0] != "2026-08-28" {
		t.Fatalf("expected one archive snapshot for 2026-08-28, got %v", env.archive.snapshots)
	}
	if env.archive.authors[0] != "admin" {
		t.Fatalf("expected snapshot author admin, got %s", env.archive.authors[0])
	}

	// Locking again is a no-op but still snapshots the current state.
	if _, err := env.service.LockMeeting(ctx, sess, meetingID); err != nil {
		t.Fatalf("second lock: %v", err)
	}

	memberSess := sessionFor(t, env, seedUser(t, env.store, "gail", "member", "correct-horse-battery"))
	_, err = env.service.LockMeeting(ctx, memberSess, meetingID)
	wantDomainError(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestAddTodoNormalizesPriority(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	if _, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, []store.Section{{Name: "Engineering"}}); err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	sectionID := findSection(t, env.store, "Engineering").ID

	payload, err := env.service.AddTodo(ctx, sess, sectionID, AddTodoInput{Text: "fix the flake", Priority: "urgent"})
	if err != nil {
		t.Fatalf("add todo: %v", err)
	}
	if payload["priority"] != "normal" {
		t.Fatalf("expected unknown priority to collapse to normal, got %v", payload["priority"])
	}

	_, err = env.service.AddTodo(ctx, sess, sectionID, AddTodoInput{Text: "   "})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestCarryForwardTodo(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	deptID, err := env.store.CreateDepartment(ctx, store.Department{Name: "Engineering"})
	if err != nil {
		t.Fatalf("create department: %v", err)
	}

	if _, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-21"), nil, []store.Section{
		{Name: "Engineering", DepartmentID: &deptID},
	}); err != nil {
		t.Fatalf("create old meeting: %v", err)
	}
	oldSection := findSection(t, env.store, "Engineering")

	todoPayload, err := env.service.AddTodo(ctx, sess, oldSection.ID, AddTodoInput{Text: "rotate certs", Priority: "high"})
	if err != nil {
		t.Fatalf("add todo: %v", err)
	}
	todoID := todoPayload["id"].(int64)

	if _, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, []store.Section{
		{Name: "Engineering", DepartmentID: &deptID},
	}); err != nil {
		t.Fatalf("create latest meeting: %v", err)
	}

	carried, err := env.service.CarryForwardTodo(ctx, sess, todoID)
	if err != nil {
		t.Fatalf("carry forward: %v", err)
	}
	if carried["text"] != "rotate certs" || carried["priority"] != "high" || carried["done"] != false {
		t.Fatalf("unexpected carried todo: %v", carried)
	}

	original, err := env.store.GetTodo(ctx, todoID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if !original.Done || original.CompletedAt == nil {
		t.Fatal("expected original todo to be closed out")
	}
}

func TestCarryForwardTodoNoMatchingSection(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	if _, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-21"), nil, []store.Section{{Name: "Design"}}); err != nil {
		t.Fatalf("create old meeting: %v", err)
	}
	oldSection := findSection(t, env.store, "Design")
	todoPayload, err := env.service.AddTodo(ctx, sess, oldSection.ID, AddTodoInput{Text: "update mockups"})
	if err != nil {
		t.Fatalf("add todo: %v", err)
	}

	if _, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, []store.Section{{Name: "Engineering"}}); err != nil {
		t.Fatalf("create latest meeting: %v", err)
	}

	_, err = env.service.CarryForwardTodo(ctx, sess, todoPayload["id"].(int64))
	wantDomainError(t, err, http.StatusBadRequest, "NO_TARGET_SECTION")
}

func TestSetAttendanceNoneRemoves(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	meetingID, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, nil)
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	if err := env.service.SetAttendance(ctx, sess, meetingID, admin.ID, "remote"); err != nil {
		t.Fatalf("set attendance: %v", err)
	}
	rows, _ := env.service.MeetingAttendance(ctx, meetingID)
	if len(rows) != 1 || rows[0]["status"] != "remote" {
		t.Fatalf("unexpected attendance: %v", rows)
	}

	// Unknown statuses collapse to present.
	if err := env.service.SetAttendance(ctx, sess, meetingID, admin.ID, "teleporting"); err != nil {
		t.Fatalf("set attendance: %v", err)
	}
	rows, _ = env.service.MeetingAttendance(ctx, meetingID)
	if rows[0]["status"] != "present" {
		t.Fatalf("expected present, got %v", rows[0]["status"])
	}

	if err := env.service.SetAttendance(ctx, sess, meetingID, admin.ID, "none"); err != nil {
		t.Fatalf("remove attendance: %v", err)
	}
	rows, _ = env.service.MeetingAttendance(ctx, meetingID)
	if len(rows) != 0 {
		t.Fatalf("expected attendance removed, got %v", rows)
	}
}

func TestUpdateUserSelfGuards(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	_, err := env.service.UpdateUser(ctx, sess, admin.ID, UpdateUserInput{
		DisplayName: "admin", Role: "admin", IsActive: false,
	})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	_, err = env.service.UpdateUser(ctx, sess, admin.ID, UpdateUserInput{
		DisplayName: "admin", Role: "member", IsActive: true,
	})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestCreateUserDefaultsInvalidRole(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	payload, err := env.service.CreateUser(context.Background(), sess, CreateUserInput{
		Username:    "henry",
		DisplayName: "Henry",
		Role:        "superuser",
		Password:    "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if payload["role"] != "member" {
		t.Fatalf("expected invalid role to default to member, got %v", payload["role"])
	}
}

func TestFeedTodosSkipsDone(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	if _, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, []store.Section{{Name: "Engineering"}}); err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	sectionID := findSection(t, env.store, "Engineering").ID

	adminID := admin.ID
	open, err := env.service.AddTodo(ctx, sess, sectionID, AddTodoInput{Text: "open item", AssignedTo: &adminID})
	if err != nil {
		t.Fatalf("add todo: %v", err)
	}
	closed, err := env.service.AddTodo(ctx, sess, sectionID, AddTodoInput{Text: "closed item", AssignedTo: &adminID})
	if err != nil {
		t.Fatalf("add todo: %v", err)
	}
	if _, err := env.service.ToggleTodo(ctx, sess, closed["id"].(int64)); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	payload, err := env.service.FeedTodos(ctx, admin.FeedToken)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	todos := payload["todos"].([]map[string]any)
	if len(todos) != 1 || todos[0]["id"] != open["id"] {
		t.Fatalf("expected only the open todo, got %v", todos)
	}

	if _, err := env.service.FeedTodos(ctx, "feed-bogus"); err == nil {
		t.Fatal("expected unknown feed token to fail")
	}
}

func TestMyTodosIncludeDone(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	if _, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, []store.Section{{Name: "Engineering"}}); err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	sectionID := findSection(t, env.store, "Engineering").ID

	adminID := admin.ID
	if _, err := env.service.AddTodo(ctx, sess, sectionID, AddTodoInput{Text: "open item", AssignedTo: &adminID}); err != nil {
		t.Fatalf("add todo: %v", err)
	}
	closed, err := env.service.AddTodo(ctx, sess, sectionID, AddTodoInput{Text: "closed item", AssignedTo: &adminID})
	if err != nil {
		t.Fatalf("add todo: %v", err)
	}
	if _, err := env.service.ToggleTodo(ctx, sess, closed["id"].(int64)); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	open, err := env.service.MyTodos(ctx, sess, false)
	if err != nil {
		t.Fatalf("my todos: %v", err)
	}
	if len(open) != 1 || open[0]["text"] != "open item" {
		t.Fatalf("expected only the open todo, got %v", open)
	}

	all, err := env.service.MyTodos(ctx, sess, true)
	if err != nil {
		t.Fatalf("my todos: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both todos with includeDone, got %v", all)
	}
}

func TestArchiveSnapshotReadBack(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env.store, "admin", "admin", "correct-horse-battery")
	sess := sessionFor(t, env, admin)

	ctx := context.Background()
	meetingID, err := env.store.CreateMeeting(ctx, mustDate(t, "2026-08-28"), nil, []store.Section{{Name: "Engineering"}})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if _, err := env.service.LockMeeting(ctx, sess, meetingID); err != nil {
		t.Fatalf("lock: %v", err)
	}

	payload, err := env.service.ArchiveSnapshot(sess, "2026-08-28")
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	markdown, _ := payload["markdown"].(string)
	if !strings.Contains(markdown, "## Engineering") {
		t.Fatalf("expected snapshot markdown, got %q", markdown)
	}

	_, err = env.service.ArchiveSnapshot(sess, "2026-01-01")
	wantDomainError(t, err, http.StatusNotFound, "NOT_FOUND")

	_, err = env.service.ArchiveSnapshot(sess, "not-a-date")
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	memberSess := sessionFor(t, env, seedUser(t, env.store, "jill", "member", "correct-horse-battery"))
	_, err = env.service.ArchiveSnapshot(memberSess, "2026-08-28")
	wantDomainError(t, err, http.StatusForbidden, "FORBIDDEN")
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return date
}

func findSection(t *testing.T, fs *fakeStore, name string) store.Section {
	t.Helper()
	var found store.Section
	for _, s := range fs.sections {
		if s.Name == name && s.ID > found.ID {
			found = s
		}
	}
	if found.ID == 0 {
		t.Fatalf("no section named %s", name)
	}
	return found
}
