package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"standup/api/internal/search"
	"standup/api/internal/store"
)

type AddTodoInput struct {
	Text       string `json:"text"`
	AssignedTo *int64 `json:"assignedTo"`
	DueDate    string `json:"dueDate"`
	Priority   string `json:"priority"`
}

// AddTodo creates a todo under a section. Any member may add todos as long
// as the meeting is open. Unknown priorities collapse to normal.
func (s *Service) AddTodo(ctx context.Context, sess Session, sectionID int64, input AddTodoInput) (map[string]any, error) {
	section, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	meeting, err := s.store.GetMeeting(ctx, section.MeetingID)
	if err != nil {
		return nil, err
	}
	if meeting.Status == store.MeetingLocked {
		return nil, domainError(http.StatusForbidden, "MEETING_LOCKED", "This meeting is locked", nil)
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}

	todo := store.Todo{
		SectionID:  sectionID,
		Text:       text,
		AssignedTo: input.AssignedTo,
		Priority:   normalizePriority(input.Priority),
	}
	creator := sess.UserID
	todo.CreatedBy = &creator
	if input.DueDate != "" {
		due, err := time.Parse(dateLayout, input.DueDate)
		if err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "dueDate must be YYYY-MM-DD", nil)
		}
		todo.DueDate = &due
	}

	id, err := s.store.AddTodo(ctx, todo)
	if err != nil {
		return nil, err
	}
	s.reindexTodo(ctx, id)

	created, err := s.store.GetTodo(ctx, id)
	if err != nil {
		return nil, err
	}
	return todoPayload(created), nil
}

func (s *Service) SectionTodos(ctx context.Context, sectionID int64) ([]map[string]any, error) {
	if _, err := s.store.GetSection(ctx, sectionID); err != nil {
		return nil, err
	}
	todos, err := s.store.ListSectionTodos(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	return todoPayloads(todos), nil
}

// ToggleTodo flips a todo between open and done, stamping or clearing the
// completion time. Toggling stays allowed after the meeting locks so action
// items can be closed out later.
func (s *Service) ToggleTodo(ctx context.Context, sess Session, todoID int64) (map[string]any, error) {
	todo, err := s.store.GetTodo(ctx, todoID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetTodoDone(ctx, todoID, !todo.Done); err != nil {
		return nil, err
	}
	s.reindexTodo(ctx, todoID)

	updated, err := s.store.GetTodo(ctx, todoID)
	if err != nil {
		return nil, err
	}
	return todoPayload(updated), nil
}

func (s *Service) DeleteTodo(ctx context.Context, sess Session, todoID int64) error {
	if _, err := s.store.GetTodo(ctx, todoID); err != nil {
		return err
	}
	if err := s.store.DeleteTodo(ctx, todoID); err != nil {
		return err
	}
	if err := s.store.RemoveFromIndex(ctx, "todo", todoID); err != nil {
		log.Printf("search: remove todo %d: %v", todoID, err)
	}
	if s.search != nil {
		s.search.DeleteTodo(todoID)
	}
	return nil
}

// CarryForwardTodo copies an open todo into the matching section of the
// latest meeting and marks the original done. The match prefers the same
// department, then falls back to the section name.
func (s *Service) CarryForwardTodo(ctx context.Context, sess Session, todoID int64) (map[string]any, error) {
	original, err := s.store.GetTodoContext(ctx, todoID)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestMeeting(ctx)
	if err != nil {
		return nil, err
	}
	if latest.Status == store.MeetingLocked {
		return nil, domainError(http.StatusForbidden, "MEETING_LOCKED", "The latest meeting is locked", nil)
	}

	target, err := s.store.FindCarrySection(ctx, latest.ID, original.SectionDepartment, original.SectionName)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "NO_TARGET_SECTION", "The latest meeting has no matching section", nil)
	}

	newID, err := s.store.CarryForwardTodo(ctx, todoID, target.ID)
	if err != nil {
		return nil, err
	}
	s.reindexTodo(ctx, todoID)
	s.reindexTodo(ctx, newID)

	carried, err := s.store.GetTodo(ctx, newID)
	if err != nil {
		return nil, err
	}
	return todoPayload(carried), nil
}

// OpenTodos lists open todos across all meetings with optional filters.
func (s *Service) OpenTodos(ctx context.Context, filter store.TodoFilter) ([]map[string]any, error) {
	todos, err := s.store.ListOpenTodos(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(todos))
	for _, t := range todos {
		items = append(items, todoContextPayload(t))
	}
	return items, nil
}

// MyTodos lists the caller's todos in triage order: overdue first, then by
// due date, priority, and age.
func (s *Service) MyTodos(ctx context.Context, sess Session, includeDone bool) ([]map[string]any, error) {
	todos, err := s.store.ListUserTodos(ctx, sess.UserID, includeDone)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(todos))
	for _, t := range todos {
		items = append(items, todoContextPayload(t))
	}
	return items, nil
}

func normalizePriority(priority string) string {
	switch priority {
	case "low", "normal", "high":
		return priority
	default:
		return "normal"
	}
}

// reindexTodo refreshes both search backends for a todo. Best effort.
func (s *Service) reindexTodo(ctx context.Context, todoID int64) {
	if err := s.store.IndexTodo(ctx, todoID); err != nil {
		log.Printf("search: index todo %d: %v", todoID, err)
	}
	if s.search == nil {
		return
	}
	t, err := s.store.GetTodoContext(ctx, todoID)
	if err != nil {
		return
	}
	s.search.IndexTodo(search.TodoRecord{
		ID:          t.ID,
		MeetingID:   t.MeetingID,
		MeetingDate: t.MeetingDate.Format(dateLayout),
		SectionName: t.SectionName,
		Text:        t.Text,
		Done:        t.Done,
	})
}
