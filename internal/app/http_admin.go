package app

import "net/http"

// routeAdmin dispatches /api/admin/* requests. It returns false when the
// path is not an admin route so the main handler can fall through to 404.
// Role checks live in the service layer.
func (s *HTTPServer) routeAdmin(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "users":
		return s.routeAdminUsers(w, r, sess, parts[1:])
	case "departments":
		return s.routeAdminDepartments(w, r, sess, parts[1:])
	case "settings":
		if len(parts) != 1 {
			return false
		}
		if r.Method == http.MethodGet {
			if !s.service.isAdmin(sess) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return true
			}
			values, err := s.service.Settings(r.Context())
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"settings": values})
			return true
		}
		if r.Method == http.MethodPut {
			var body struct {
				Settings map[string]string `json:"settings"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			if err := s.service.SaveSettings(r.Context(), sess, body.Settings); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return true
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return true
	case "search":
		if len(parts) == 2 && parts[1] == "rebuild" && r.Method == http.MethodPost {
			if err := s.service.RebuildSearch(r.Context(), sess); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return true
		}
		return false
	case "archive":
		if len(parts) == 1 && r.Method == http.MethodGet {
			payload, err := s.service.ArchiveHistory(sess, queryInt(r, "limit", 50))
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, payload)
			return true
		}
		if len(parts) == 2 && r.Method == http.MethodGet {
			payload, err := s.service.ArchiveSnapshot(sess, parts[1])
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, payload)
			return true
		}
		return false
	}
	return false
}

func (s *HTTPServer) routeAdminUsers(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) == 0 {
		if r.Method == http.MethodGet {
			items, err := s.service.ListUsers(r.Context(), sess)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"users": items})
			return true
		}
		if r.Method == http.MethodPost {
			var body CreateUserInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.CreateUser(r.Context(), sess, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusCreated, payload)
			return true
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return true
	}

	userID, ok := parseID(w, parts[0])
	if !ok {
		return true
	}

	if len(parts) == 1 && r.Method == http.MethodPut {
		var body UpdateUserInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.UpdateUser(r.Context(), sess, userID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeJSON(w, http.StatusOK, payload)
		return true
	}

	if len(parts) == 2 && parts[1] == "reset-password" && r.Method == http.MethodPost {
		payload, err := s.service.ResetUserPassword(r.Context(), sess, userID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeJSON(w, http.StatusOK, payload)
		return true
	}

	if len(parts) == 2 && parts[1] == "feed-token" && r.Method == http.MethodPost {
		payload, err := s.service.RotateFeedToken(r.Context(), sess, userID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeJSON(w, http.StatusOK, payload)
		return true
	}

	return false
}

func (s *HTTPServer) routeAdminDepartments(w http.ResponseWriter, r *http.Request, sess Session, parts []string) bool {
	if len(parts) == 0 {
		if r.Method == http.MethodGet {
			if !s.service.isAdmin(sess) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return true
			}
			items, err := s.service.ListDepartments(r.Context(), r.URL.Query().Get("includeArchived") == "true")
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"departments": items})
			return true
		}
		if r.Method == http.MethodPost {
			var body DepartmentInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.CreateDepartment(r.Context(), sess, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusCreated, payload)
			return true
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return true
	}

	if len(parts) == 1 && parts[0] == "reorder" && r.Method == http.MethodPut {
		var body struct {
			Order []int64 `json:"order"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		if err := s.service.ReorderDepartments(r.Context(), sess, body.Order); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return true
	}

	departmentID, ok := parseID(w, parts[0])
	if !ok {
		return true
	}

	if len(parts) == 1 && r.Method == http.MethodPut {
		var body DepartmentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.UpdateDepartment(r.Context(), sess, departmentID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeJSON(w, http.StatusOK, payload)
		return true
	}

	if len(parts) == 2 && parts[1] == "reporters" {
		if r.Method == http.MethodGet {
			if !s.service.isAdmin(sess) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return true
			}
			items, err := s.service.DepartmentReporters(r.Context(), departmentID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"reporters": items})
			return true
		}
		if r.Method == http.MethodPut {
			var body struct {
				Primary *int64  `json:"primary"`
				Backups []int64 `json:"backups"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			if err := s.service.SetDepartmentReporters(r.Context(), sess, departmentID, body.Primary, body.Backups); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return true
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return true
	}

	return false
}
