package app

import (
	"time"

	"standup/api/internal/store"
)

// JSON shapes returned by the API. Dates render as YYYY-MM-DD, timestamps
// as RFC 3339.

func meetingPayload(m store.Meeting) map[string]any {
	payload := map[string]any{
		"id":        m.ID,
		"date":      m.Date.Format(dateLayout),
		"status":    m.Status,
		"createdAt": m.CreatedAt.Format(time.RFC3339),
	}
	if m.LockedBy != nil {
		payload["lockedBy"] = *m.LockedBy
	}
	if m.LockedAt != nil {
		payload["lockedAt"] = m.LockedAt.Format(time.RFC3339)
	}
	if m.TemplateID != nil {
		payload["templateId"] = *m.TemplateID
	}
	return payload
}

func sectionPayload(s store.Section) map[string]any {
	payload := map[string]any{
		"id":        s.ID,
		"meetingId": s.MeetingID,
		"name":      s.Name,
		"reporter":  s.Reporter,
		"sortOrder": s.SortOrder,
		"isSpecial": s.IsSpecial,
		"content":   s.Content,
	}
	if s.ReporterID != nil {
		payload["reporterId"] = *s.ReporterID
	}
	if s.DepartmentID != nil {
		payload["departmentId"] = *s.DepartmentID
	}
	if s.UpdatedAt != nil {
		payload["updatedAt"] = s.UpdatedAt.Format(time.RFC3339)
	}
	return payload
}

func todoPayload(t store.Todo) map[string]any {
	payload := map[string]any{
		"id":        t.ID,
		"sectionId": t.SectionID,
		"text":      t.Text,
		"done":      t.Done,
		"priority":  t.Priority,
		"createdAt": t.CreatedAt.Format(time.RFC3339),
	}
	if t.AssignedTo != nil {
		payload["assignedTo"] = *t.AssignedTo
	}
	if t.AssigneeName != nil {
		payload["assigneeName"] = *t.AssigneeName
	}
	if t.DueDate != nil {
		payload["dueDate"] = t.DueDate.Format(dateLayout)
	}
	if t.CompletedAt != nil {
		payload["completedAt"] = t.CompletedAt.Format(time.RFC3339)
	}
	return payload
}

func todoPayloads(todos []store.Todo) []map[string]any {
	items := make([]map[string]any, 0, len(todos))
	for _, t := range todos {
		items = append(items, todoPayload(t))
	}
	return items
}

func todoContextPayload(t store.TodoWithContext) map[string]any {
	payload := todoPayload(t.Todo)
	payload["sectionName"] = t.SectionName
	payload["meetingId"] = t.MeetingID
	payload["meetingDate"] = t.MeetingDate.Format(dateLayout)
	return payload
}

func attendancePayloads(attendance []store.Attendance) []map[string]any {
	items := make([]map[string]any, 0, len(attendance))
	for _, a := range attendance {
		items = append(items, map[string]any{
			"userId":      a.UserID,
			"username":    a.Username,
			"displayName": a.DisplayName,
			"status":      a.Status,
		})
	}
	return items
}

func userPayload(u store.User) map[string]any {
	payload := map[string]any{
		"id":                 u.ID,
		"username":           u.Username,
		"displayName":        u.DisplayName,
		"role":               u.Role,
		"isActive":           u.IsActive,
		"mustChangePassword": u.MustChangePassword,
		"createdAt":          u.CreatedAt.Format(time.RFC3339),
	}
	if u.Email != nil {
		payload["email"] = *u.Email
	}
	if u.LastLogin != nil {
		payload["lastLogin"] = u.LastLogin.Format(time.RFC3339)
	}
	return payload
}

func departmentPayload(d store.Department) map[string]any {
	payload := map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"sortOrder":  d.SortOrder,
		"isSpecial":  d.IsSpecial,
		"isArchived": d.IsArchived,
	}
	if d.Color != nil {
		payload["color"] = *d.Color
	}
	return payload
}

func templatePayload(t store.Template) map[string]any {
	payload := map[string]any{
		"id":           t.ID,
		"name":         t.Name,
		"description":  t.Description,
		"sectionCount": t.SectionCount,
		"createdAt":    t.CreatedAt.Format(time.RFC3339),
	}
	if t.CreatorName != nil {
		payload["createdBy"] = *t.CreatorName
	}
	return payload
}

func templateSectionPayloads(sections []store.TemplateSection) []map[string]any {
	items := make([]map[string]any, 0, len(sections))
	for _, ts := range sections {
		item := map[string]any{
			"departmentId":   ts.DepartmentID,
			"departmentName": ts.DepartmentName,
			"isSpecial":      ts.IsSpecial,
			"sortOrder":      ts.SortOrder,
			"defaultContent": ts.DefaultContent,
		}
		if ts.Color != nil {
			item["color"] = *ts.Color
		}
		items = append(items, item)
	}
	return items
}
