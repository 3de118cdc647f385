package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"standup/api/internal/export"
	"standup/api/internal/perm"
	"standup/api/internal/search"
	"standup/api/internal/store"
)

const dateLayout = "2006-01-02"

// defaultSectionNames seeds meetings on fresh installs before any
// departments exist. The last two are special sections.
var defaultSectionNames = []struct {
	name    string
	special bool
}{
	{"Engineering", false},
	{"Design", false},
	{"Product", false},
	{"QA", false},
	{"Infrastructure", false},
	{"Support", false},
	{"Operations", false},
	{"PTO / Out of Office", true},
	{"Shoutouts", true},
}

// CreateMeeting creates a meeting for a date. Section layout comes from a
// template when templateID is set, from another meeting when copyFromID is
// set, and otherwise from the active departments (falling back to the
// default layout when none exist yet).
func (s *Service) CreateMeeting(ctx context.Context, sess Session, dateStr string, templateID, copyFromID *int64) (map[string]any, error) {
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
	}

	var sections []store.Section
	switch {
	case templateID != nil:
		sections, err = s.templateSections(ctx, *templateID)
	case copyFromID != nil:
		sections, err = s.copiedSections(ctx, *copyFromID)
	default:
		sections, err = s.departmentSections(ctx)
	}
	if err != nil {
		return nil, err
	}

	meetingID, err := s.store.CreateMeeting(ctx, date, templateID, sections)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "MEETING_EXISTS", "A meeting for this date already exists", nil)
		}
		return nil, err
	}
	return s.MeetingDetail(ctx, meetingID)
}

func (s *Service) templateSections(ctx context.Context, templateID int64) ([]store.Section, error) {
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	templateSections, err := s.store.ListTemplateSections(ctx, templateID)
	if err != nil {
		return nil, err
	}

	sections := make([]store.Section, 0, len(templateSections))
	for _, ts := range templateSections {
		// Departments archived or deleted since the template was saved
		// drop out of the meeting.
		dept, err := s.store.GetDepartment(ctx, ts.DepartmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		if dept.IsArchived {
			continue
		}

		deptID := ts.DepartmentID
		section := store.Section{
			Name:         ts.DepartmentName,
			DepartmentID: &deptID,
			SortOrder:    ts.SortOrder,
			IsSpecial:    ts.IsSpecial,
			Content:      ts.DefaultContent,
		}
		if err := s.fillReporter(ctx, &section, deptID); err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	return sections, nil
}

func (s *Service) copiedSections(ctx context.Context, meetingID int64) ([]store.Section, error) {
	prev, err := s.store.ListSections(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	sections := make([]store.Section, 0, len(prev))
	for _, p := range prev {
		sections = append(sections, store.Section{
			Name:         p.Name,
			Reporter:     p.Reporter,
			ReporterID:   p.ReporterID,
			DepartmentID: p.DepartmentID,
			SortOrder:    p.SortOrder,
			IsSpecial:    p.IsSpecial,
			Content:      p.Content,
		})
	}
	return sections, nil
}

func (s *Service) departmentSections(ctx context.Context) ([]store.Section, error) {
	departments, err := s.store.ListDepartments(ctx, false)
	if err != nil {
		return nil, err
	}

	if len(departments) == 0 {
		sections := make([]store.Section, 0, len(defaultSectionNames))
		for i, def := range defaultSectionNames {
			sections = append(sections, store.Section{
				Name:      def.name,
				SortOrder: i,
				IsSpecial: def.special,
			})
		}
		return sections, nil
	}

	sections := make([]store.Section, 0, len(departments))
	for _, dept := range departments {
		deptID := dept.ID
		section := store.Section{
			Name:         dept.Name,
			DepartmentID: &deptID,
			SortOrder:    dept.SortOrder,
			IsSpecial:    dept.IsSpecial,
		}
		if err := s.fillReporter(ctx, &section, deptID); err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	return sections, nil
}

func (s *Service) fillReporter(ctx context.Context, section *store.Section, departmentID int64) error {
	reporter, err := s.store.PrimaryReporter(ctx, departmentID)
	if err != nil {
		return err
	}
	if reporter != nil {
		section.Reporter = reporter.DisplayName
		reporterID := reporter.ID
		section.ReporterID = &reporterID
	}
	return nil
}

// MeetingDetail returns a meeting with its sections, todos and attendance.
func (s *Service) MeetingDetail(ctx context.Context, meetingID int64) (map[string]any, error) {
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	sections, err := s.store.ListSections(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	sectionPayloads := make([]map[string]any, 0, len(sections))
	for _, section := range sections {
		todos, err := s.store.ListSectionTodos(ctx, section.ID)
		if err != nil {
			return nil, err
		}
		payload := sectionPayload(section)
		payload["todos"] = todoPayloads(todos)
		sectionPayloads = append(sectionPayloads, payload)
	}
	attendance, err := s.store.ListAttendance(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	payload := meetingPayload(meeting)
	payload["sections"] = sectionPayloads
	payload["attendance"] = attendancePayloads(attendance)
	return payload, nil
}

// LatestMeetingDetail returns the most recent meeting, or nil when no
// meeting exists yet.
func (s *Service) LatestMeetingDetail(ctx context.Context) (map[string]any, error) {
	meeting, err := s.store.LatestMeeting(ctx)
	if err != nil {
		return nil, err
	}
	return s.MeetingDetail(ctx, meeting.ID)
}

func (s *Service) ListMeetings(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	meetings, err := s.store.ListMeetings(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(meetings))
	for _, m := range meetings {
		items = append(items, meetingPayload(m))
	}
	return items, nil
}

func (s *Service) DeleteMeeting(ctx context.Context, sess Session, meetingID int64) error {
	if !s.isAdmin(sess) {
		return errForbidden()
	}
	sections, err := s.store.ListSections(ctx, meetingID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMeeting(ctx, meetingID); err != nil {
		return err
	}
	if s.search != nil {
		for _, section := range sections {
			s.search.DeleteSection(section.ID)
		}
	}
	return nil
}

// LockMeeting makes a meeting read-only and commits a Markdown snapshot to
// the archive. Locking an already locked meeting is a no-op. Archive
// failures are logged rather than surfaced; the lock itself stands.
func (s *Service) LockMeeting(ctx context.Context, sess Session, meetingID int64) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if err := s.store.LockMeeting(ctx, meetingID, sess.UserID); err != nil {
		return nil, err
	}

	if s.archive != nil {
		data, err := s.buildMeetingData(ctx, meetingID)
		if err != nil {
			log.Printf("archive: assemble meeting %d: %v", meetingID, err)
		} else if _, err := s.archive.Snapshot(meeting.Date.Format(dateLayout), export.BuildMarkdown(data), sess.UserName); err != nil {
			log.Printf("archive: snapshot meeting %d: %v", meetingID, err)
		}
	}
	return s.MeetingDetail(ctx, meetingID)
}

func (s *Service) UnlockMeeting(ctx context.Context, sess Session, meetingID int64) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	if err := s.store.UnlockMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	return s.MeetingDetail(ctx, meetingID)
}

// ArchiveHistory lists recent archive snapshots, admin only.
func (s *Service) ArchiveHistory(sess Session, limit int) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	commits, err := s.archive.History(limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"commits": commits}, nil
}

// ArchiveSnapshot returns the archived Markdown committed when the meeting
// for the given date was locked, admin only.
func (s *Service) ArchiveSnapshot(sess Session, date string) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
	}
	markdown, err := s.archive.ReadSnapshot(date)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "No snapshot for that date", nil)
	}
	return map[string]any{"date": date, "markdown": markdown}, nil
}

// SectionDetail returns a section with its todos.
func (s *Service) SectionDetail(ctx context.Context, sectionID int64) (map[string]any, error) {
	section, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	todos, err := s.store.ListSectionTodos(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	payload := sectionPayload(section)
	payload["todos"] = todoPayloads(todos)
	return payload, nil
}

// SaveSection replaces a section's notes. Members may edit only sections
// they report for; admins may edit any. Locked meetings reject all edits.
func (s *Service) SaveSection(ctx context.Context, sess Session, sectionID int64, content string) (map[string]any, error) {
	section, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	meeting, err := s.store.GetMeeting(ctx, section.MeetingID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeSectionEdit(ctx, sess, section, meeting); err != nil {
		return nil, err
	}

	if err := s.store.UpdateSectionContent(ctx, sectionID, content); err != nil {
		return nil, err
	}
	s.reindexSection(ctx, sectionID)
	return s.SectionDetail(ctx, sectionID)
}

func (s *Service) authorizeSectionEdit(ctx context.Context, sess Session, section store.Section, meeting store.Meeting) error {
	sc := perm.SectionContext{
		MeetingLocked:     meeting.Status == store.MeetingLocked,
		IsSectionReporter: section.ReporterID != nil && *section.ReporterID == sess.UserID,
	}
	if section.DepartmentID != nil {
		isReporter, err := s.store.IsDepartmentReporter(ctx, *section.DepartmentID, sess.UserID)
		if err != nil {
			return err
		}
		sc.IsDepartmentReporter = isReporter
	}

	if sc.MeetingLocked {
		return domainError(http.StatusForbidden, "MEETING_LOCKED", "This meeting is locked", nil)
	}
	if !perm.CanEditSection(perm.Normalize(sess.Role), sc) {
		return errForbidden()
	}
	return nil
}

// reindexSection refreshes both search backends for a section. Indexing is
// best effort; content is already saved.
func (s *Service) reindexSection(ctx context.Context, sectionID int64) {
	if err := s.store.IndexSection(ctx, sectionID); err != nil {
		log.Printf("search: index section %d: %v", sectionID, err)
	}
	if s.search == nil {
		return
	}
	section, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return
	}
	if section.Content == "" {
		s.search.DeleteSection(sectionID)
		return
	}
	meeting, err := s.store.GetMeeting(ctx, section.MeetingID)
	if err != nil {
		return
	}
	s.search.IndexSection(search.SectionRecord{
		ID:          section.ID,
		MeetingID:   meeting.ID,
		MeetingDate: meeting.Date.Format(dateLayout),
		Name:        section.Name,
		Reporter:    section.Reporter,
		Content:     section.Content,
	})
}

// SetAttendance records a user's status for a meeting. Status "none"
// removes the record entirely.
func (s *Service) SetAttendance(ctx context.Context, sess Session, meetingID, userID int64, status string) error {
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if meeting.Status == store.MeetingLocked {
		return domainError(http.StatusForbidden, "MEETING_LOCKED", "This meeting is locked", nil)
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}

	if status == "none" {
		return s.store.RemoveAttendance(ctx, meetingID, userID)
	}
	switch status {
	case "present", "absent", "remote":
	default:
		status = "present"
	}
	return s.store.SetAttendance(ctx, meetingID, userID, status)
}

func (s *Service) MeetingAttendance(ctx context.Context, meetingID int64) ([]map[string]any, error) {
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	attendance, err := s.store.ListAttendance(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return attendancePayloads(attendance), nil
}

// ExportMeetingMarkdown renders a meeting as a downloadable Markdown file.
func (s *Service) ExportMeetingMarkdown(ctx context.Context, meetingID int64) (*export.Result, error) {
	data, err := s.buildMeetingData(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return export.Markdown(data), nil
}

// ExportMeetingPDF renders a meeting as a PDF via headless Chrome.
func (s *Service) ExportMeetingPDF(ctx context.Context, meetingID int64) (*export.Result, error) {
	data, err := s.buildMeetingData(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	result, err := export.PDF(data)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF export is not available on this server", nil)
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) buildMeetingData(ctx context.Context, meetingID int64) (export.MeetingData, error) {
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return export.MeetingData{}, err
	}
	sections, err := s.store.ListSections(ctx, meetingID)
	if err != nil {
		return export.MeetingData{}, err
	}
	attendance, err := s.store.ListAttendance(ctx, meetingID)
	if err != nil {
		return export.MeetingData{}, err
	}

	data := export.MeetingData{Date: meeting.Date.Format(dateLayout)}
	for _, a := range attendance {
		switch a.Status {
		case "present":
			data.Present = append(data.Present, a.DisplayName)
		case "remote":
			data.Remote = append(data.Remote, a.DisplayName)
		case "absent":
			data.Absent = append(data.Absent, a.DisplayName)
		}
	}

	for _, section := range sections {
		todos, err := s.store.ListSectionTodos(ctx, section.ID)
		if err != nil {
			return export.MeetingData{}, err
		}
		sec := export.SectionData{
			Name:      section.Name,
			Reporter:  section.Reporter,
			Content:   section.Content,
			IsSpecial: section.IsSpecial,
		}
		for _, t := range todos {
			todo := export.TodoData{
				Text:     t.Text,
				Done:     t.Done,
				Priority: t.Priority,
			}
			if t.DueDate != nil {
				todo.DueDate = t.DueDate.Format(dateLayout)
			}
			sec.Todos = append(sec.Todos, todo)
		}
		data.Sections = append(data.Sections, sec)
	}
	return data, nil
}

// Templates.

func (s *Service) ListTemplates(ctx context.Context) ([]map[string]any, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(templates))
	for _, t := range templates {
		items = append(items, templatePayload(t))
	}
	return items, nil
}

func (s *Service) TemplateDetail(ctx context.Context, templateID int64) (map[string]any, error) {
	template, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	sections, err := s.store.ListTemplateSections(ctx, templateID)
	if err != nil {
		return nil, err
	}
	payload := templatePayload(template)
	payload["sections"] = templateSectionPayloads(sections)
	return payload, nil
}

type TemplateSectionInput struct {
	DepartmentID   int64  `json:"departmentId"`
	SortOrder      int    `json:"sortOrder"`
	DefaultContent string `json:"defaultContent"`
}

func (s *Service) CreateTemplate(ctx context.Context, sess Session, name, description string, sections []TemplateSectionInput) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	creator := sess.UserID
	id, err := s.store.CreateTemplate(ctx, store.Template{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   &creator,
	}, templateSectionRows(sections))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "TEMPLATE_EXISTS", "A template with this name already exists", nil)
		}
		return nil, err
	}
	return s.TemplateDetail(ctx, id)
}

func (s *Service) UpdateTemplate(ctx context.Context, sess Session, templateID int64, name, description string, sections []TemplateSectionInput) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}

	err := s.store.UpdateTemplate(ctx, store.Template{
		ID:          templateID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}, templateSectionRows(sections))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "TEMPLATE_EXISTS", "A template with this name already exists", nil)
		}
		return nil, err
	}
	return s.TemplateDetail(ctx, templateID)
}

func (s *Service) DeleteTemplate(ctx context.Context, sess Session, templateID int64) error {
	if !s.isAdmin(sess) {
		return errForbidden()
	}
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		return err
	}
	return s.store.DeleteTemplate(ctx, templateID)
}

// SaveTemplateFromMeeting captures a meeting's section layout as a reusable
// template. Sections without a department are skipped since templates
// reference departments.
func (s *Service) SaveTemplateFromMeeting(ctx context.Context, sess Session, meetingID int64, name, description string) (map[string]any, error) {
	if !s.isAdmin(sess) {
		return nil, errForbidden()
	}
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	sections, err := s.store.ListSections(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	inputs := make([]TemplateSectionInput, 0, len(sections))
	for _, section := range sections {
		if section.DepartmentID == nil {
			continue
		}
		inputs = append(inputs, TemplateSectionInput{
			DepartmentID:   *section.DepartmentID,
			SortOrder:      section.SortOrder,
			DefaultContent: section.Content,
		})
	}
	if len(inputs) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "meeting has no department-linked sections to capture", nil)
	}
	return s.CreateTemplate(ctx, sess, name, description, inputs)
}

func templateSectionRows(inputs []TemplateSectionInput) []store.TemplateSection {
	rows := make([]store.TemplateSection, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, store.TemplateSection{
			DepartmentID:   in.DepartmentID,
			SortOrder:      in.SortOrder,
			DefaultContent: in.DefaultContent,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].SortOrder < rows[j].SortOrder })
	return rows
}
