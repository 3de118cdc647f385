package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"standup/api/internal/archive"
	"standup/api/internal/auth"
	"standup/api/internal/authn"
	"standup/api/internal/config"
	"standup/api/internal/perm"
	"standup/api/internal/ratelimit"
	"standup/api/internal/search"
	"standup/api/internal/session"
	"standup/api/internal/store"
)

type Session struct {
	Token              string
	RefreshToken       string
	UserID             int64
	UserName           string
	Role               string
	MustChangePassword bool
	ExpiresAt          time.Time
}

type dataStore interface {
	GetUserByID(ctx context.Context, id int64) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	GetUserByFeedToken(ctx context.Context, token string) (store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	CountUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, u store.User) (int64, error)
	UpdateUser(ctx context.Context, u store.User) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string, mustChange bool) error
	UpdateLastLogin(ctx context.Context, id int64) error
	UpdateFeedToken(ctx context.Context, id int64, token string) error

	GetDepartment(ctx context.Context, id int64) (store.Department, error)
	ListDepartments(ctx context.Context, includeArchived bool) ([]store.Department, error)
	CreateDepartment(ctx context.Context, d store.Department) (int64, error)
	UpdateDepartment(ctx context.Context, d store.Department) error
	ReorderDepartments(ctx context.Context, order []int64) error
	ListDepartmentReporters(ctx context.Context, departmentID int64) ([]store.DepartmentReporter, error)
	ReplaceDepartmentReporters(ctx context.Context, departmentID int64, primary *int64, backups []int64) error
	IsDepartmentReporter(ctx context.Context, departmentID, userID int64) (bool, error)
	PrimaryReporter(ctx context.Context, departmentID int64) (*store.User, error)

	CreateMeeting(ctx context.Context, date time.Time, templateID *int64, sections []store.Section) (int64, error)
	GetMeeting(ctx context.Context, id int64) (store.Meeting, error)
	LatestMeeting(ctx context.Context) (store.Meeting, error)
	ListMeetings(ctx context.Context, limit, offset int) ([]store.Meeting, error)
	DeleteMeeting(ctx context.Context, id int64) error
	LockMeeting(ctx context.Context, id, userID int64) error
	UnlockMeeting(ctx context.Context, id int64) error
	GetSection(ctx context.Context, id int64) (store.Section, error)
	ListSections(ctx context.Context, meetingID int64) ([]store.Section, error)
	UpdateSectionContent(ctx context.Context, id int64, content string) error
	FindCarrySection(ctx context.Context, meetingID int64, departmentID *int64, name string) (store.Section, error)

	ListTemplates(ctx context.Context) ([]store.Template, error)
	GetTemplate(ctx context.Context, id int64) (store.Template, error)
	ListTemplateSections(ctx context.Context, templateID int64) ([]store.TemplateSection, error)
	CreateTemplate(ctx context.Context, t store.Template, sections []store.TemplateSection) (int64, error)
	UpdateTemplate(ctx context.Context, t store.Template, sections []store.TemplateSection) error
	DeleteTemplate(ctx context.Context, id int64) error

	SetAttendance(ctx context.Context, meetingID, userID int64, status string) error
	RemoveAttendance(ctx context.Context, meetingID, userID int64) error
	ListAttendance(ctx context.Context, meetingID int64) ([]store.Attendance, error)

	SetSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) (map[string]string, error)

	AddTodo(ctx context.Context, t store.Todo) (int64, error)
	GetTodo(ctx context.Context, id int64) (store.Todo, error)
	SetTodoDone(ctx context.Context, id int64, done bool) error
	DeleteTodo(ctx context.Context, id int64) error
	ListSectionTodos(ctx context.Context, sectionID int64) ([]store.Todo, error)
	GetTodoContext(ctx context.Context, id int64) (store.TodoWithContext, error)
	ListOpenTodos(ctx context.Context, filter store.TodoFilter) ([]store.TodoWithContext, error)
	ListUserTodos(ctx context.Context, userID int64, includeDone bool) ([]store.TodoWithContext, error)
	CarryForwardTodo(ctx context.Context, todoID, targetSectionID int64) (int64, error)

	IndexSection(ctx context.Context, sectionID int64) error
	IndexTodo(ctx context.Context, todoID int64) error
	RemoveFromIndex(ctx context.Context, typ string, sourceID int64) error
	RebuildSearchIndex(ctx context.Context) error

	AnalyticsKPIs(ctx context.Context) (store.KPIs, error)
	FillRateSeries(ctx context.Context, limit int) ([]store.FillRatePoint, error)
	TodoVelocity(ctx context.Context, weeks int) ([]store.VelocityPoint, error)
	CompletionHeatmap(ctx context.Context, limit int) (store.Heatmap, error)
	TodosByAssignee(ctx context.Context) ([]store.AssigneeLoad, error)
	StaleTodos(ctx context.Context, days int) ([]store.StaleTodo, error)
	RecentActivity(ctx context.Context, limit int) ([]store.ActivityItem, error)

	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (session.TokenData, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexSection(rec search.SectionRecord)
	IndexTodo(rec search.TodoRecord)
	DeleteSection(id int64)
	DeleteTodo(id int64)
	ReindexAllFromPG(ctx context.Context)
}

type archiveService interface {
	Snapshot(date, markdown, author string) (string, error)
	History(limit int) ([]archive.Commit, error)
	ReadSnapshot(date string) (string, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authn    *authn.Service
	limiter  *ratelimit.Limiter
	search   searchService
	archive  archiveService
}

func New(cfg config.Config, dataStore dataStore, sessions sessionStore, authnSvc *authn.Service, limiter *ratelimit.Limiter, searchSvc searchService, archiveSvc archiveService) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		authn:    authnSvc,
		limiter:  limiter,
		search:   searchSvc,
		archive:  archiveSvc,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Setup creates the first admin account and signs it in. Available only
// while the user table is empty.
func (s *Service) Setup(ctx context.Context, username, password, displayName string) (Session, error) {
	user, err := s.authn.Setup(ctx, username, password, displayName)
	if err != nil {
		return Session{}, mapAuthnError(err)
	}
	return s.issueSession(ctx, user)
}

// Login verifies credentials with per-IP rate limiting on failures.
func (s *Service) Login(ctx context.Context, username, password, clientIP string) (Session, error) {
	if !s.limiter.Allow(clientIP) {
		return Session{}, domainError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many login attempts. Try again in a minute.", nil)
	}

	user, err := s.authn.SignIn(ctx, username, password)
	if err != nil {
		if errors.Is(err, authn.ErrInvalidCredentials) {
			s.limiter.Record(clientIP)
		}
		return Session{}, mapAuthnError(err)
	}
	s.limiter.Reset(clientIP)

	return s.issueSession(ctx, user)
}

// ChangePassword rotates the caller's password. The current password check
// is skipped for accounts flagged by an admin reset.
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if err := s.authn.ChangePassword(ctx, userID, currentPassword, newPassword); err != nil {
		return mapAuthnError(err)
	}
	return nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}

	// Reload the user so role and status changes take effect on rotation.
	user, err := s.store.GetUserByID(ctx, data.UserID)
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, auth.ErrInvalidToken
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  auth.RandomToken("jti"),
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := auth.RandomToken("rft")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:              token,
		RefreshToken:       refresh,
		UserID:             user.ID,
		UserName:           user.DisplayName,
		Role:               string(perm.Normalize(user.Role)),
		MustChangePassword: user.MustChangePassword,
		ExpiresAt:          expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:              token,
		UserID:             user.ID,
		UserName:           user.DisplayName,
		Role:               string(perm.Normalize(user.Role)),
		MustChangePassword: user.MustChangePassword,
		ExpiresAt:          time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) isAdmin(sess Session) bool {
	return perm.Normalize(sess.Role) == perm.RoleAdmin
}

// Search runs a full-text query over sections and todos.
func (s *Service) Search(q, filterType string, limit int) search.Response {
	return s.search.Search(search.Query{
		Text:       strings.TrimSpace(q),
		FilterType: search.ResultType(filterType),
		Limit:      limit,
	})
}

// RebuildSearch repopulates the Postgres index and mirrors it to Meilisearch.
func (s *Service) RebuildSearch(ctx context.Context, sess Session) error {
	if !s.isAdmin(sess) {
		return errForbidden()
	}
	if err := s.store.RebuildSearchIndex(ctx); err != nil {
		return err
	}
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

// FeedTodos returns a user's open todos for the personal token feed. The
// token stands in for authentication, so unknown tokens are a 404.
func (s *Service) FeedTodos(ctx context.Context, feedToken string) (map[string]any, error) {
	user, err := s.store.GetUserByFeedToken(ctx, feedToken)
	if err != nil {
		return nil, err
	}
	todos, err := s.store.ListUserTodos(ctx, user.ID, false)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(todos))
	for _, t := range todos {
		items = append(items, todoContextPayload(t))
	}
	return map[string]any{
		"user":  user.DisplayName,
		"todos": items,
	}, nil
}

func errForbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func mapAuthnError(err error) error {
	var weak *authn.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		return domainError(http.StatusUnprocessableEntity, "WEAK_PASSWORD", weak.Reason, nil)
	case errors.Is(err, authn.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	case errors.Is(err, authn.ErrAccountDisabled):
		return domainError(http.StatusForbidden, "ACCOUNT_DISABLED", "This account has been deactivated", nil)
	case errors.Is(err, authn.ErrSetupDone):
		return domainError(http.StatusConflict, "SETUP_DONE", "Setup has already been completed", nil)
	case errors.Is(err, authn.ErrUsernameTaken):
		return domainError(http.StatusConflict, "USERNAME_TAKEN", "That username is already taken", nil)
	}
	return err
}
