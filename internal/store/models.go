package store

import "time"

type User struct {
	ID                 int64
	Username           string
	DisplayName        string
	Email              *string
	PasswordHash       string
	Role               string
	IsActive           bool
	MustChangePassword bool
	FeedToken          string
	CreatedAt          time.Time
	LastLogin          *time.Time
}

type Department struct {
	ID         int64
	Name       string
	Color      *string
	SortOrder  int
	IsSpecial  bool
	IsArchived bool
	CreatedAt  time.Time
}

// DepartmentReporter is a reporter assignment joined with user info.
type DepartmentReporter struct {
	DepartmentID int64
	UserID       int64
	Username     string
	DisplayName  string
	IsPrimary    bool
}

type Meeting struct {
	ID         int64
	Date       time.Time
	Status     string
	LockedBy   *int64
	LockedAt   *time.Time
	TemplateID *int64
	CreatedAt  time.Time
}

const (
	MeetingOpen   = "open"
	MeetingLocked = "locked"
)

type Section struct {
	ID           int64
	MeetingID    int64
	Name         string
	Reporter     string
	ReporterID   *int64
	DepartmentID *int64
	SortOrder    int
	IsSpecial    bool
	Content      string
	UpdatedAt    *time.Time
}

type Todo struct {
	ID           int64
	SectionID    int64
	Text         string
	Done         bool
	AssignedTo   *int64
	AssigneeName *string
	DueDate      *time.Time
	Priority     string
	CreatedBy    *int64
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// TodoWithContext carries the section and meeting a todo belongs to,
// for cross-meeting listings and carry-forward.
type TodoWithContext struct {
	Todo
	SectionName       string
	SectionDepartment *int64
	SectionIsSpecial  bool
	MeetingID         int64
	MeetingDate       time.Time
}

// TodoFilter selects open todos across meetings. All set fields are ANDed.
type TodoFilter struct {
	IncludeDone bool
	// AssignedTo filters by user id; Unassigned selects NULL assignees instead.
	AssignedTo *int64
	Unassigned bool
	Priority   string
	Overdue    bool
}

type Template struct {
	ID          int64
	Name        string
	Description string
	CreatedBy   *int64
	CreatorName *string
	CreatedAt   time.Time
	// SectionCount is populated by listings.
	SectionCount int
}

type TemplateSection struct {
	ID             int64
	TemplateID     int64
	DepartmentID   int64
	DepartmentName string
	IsSpecial      bool
	Color          *string
	SortOrder      int
	DefaultContent string
}

type Attendance struct {
	MeetingID   int64
	UserID      int64
	Username    string
	DisplayName string
	Status      string
}

// Analytics result shapes.

type KPIs struct {
	TotalMeetings     int      `json:"totalMeetings"`
	MeetingsThisMonth int      `json:"meetingsThisMonth"`
	FillRate          int      `json:"fillRate"`
	FillRateTrend     string   `json:"fillRateTrend"`
	OpenTodos         int      `json:"openTodos"`
	OverdueTodos      int      `json:"overdueTodos"`
	AvgCloseDays      *float64 `json:"avgCloseDays"`
}

type FillRatePoint struct {
	Date       string `json:"date"`
	FillPct    int    `json:"fillPct"`
	RegularPct int    `json:"regularPct"`
}

type VelocityPoint struct {
	WeekStart string `json:"weekStart"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

type HeatmapCell struct {
	Date   string `json:"date"`
	Status string `json:"status"` // missing, empty or filled
}

type HeatmapRow struct {
	Department string        `json:"department"`
	IsSpecial  bool          `json:"isSpecial"`
	Cells      []HeatmapCell `json:"cells"`
}

type Heatmap struct {
	Meetings    []string     `json:"meetings"`
	Departments []HeatmapRow `json:"departments"`
}

type AssigneeLoad struct {
	Name   string `json:"name"`
	High   int    `json:"high"`
	Normal int    `json:"normal"`
	Low    int    `json:"low"`
	Total  int    `json:"total"`
}

type StaleTodo struct {
	ID           int64   `json:"id"`
	Text         string  `json:"text"`
	Priority     string  `json:"priority"`
	AssigneeName *string `json:"assigneeName"`
	SectionName  string  `json:"sectionName"`
	MeetingDate  string  `json:"meetingDate"`
	DueDate      *string `json:"dueDate"`
	CreatedAt    string  `json:"createdAt"`
	AgeDays      int     `json:"ageDays"`
}

type ActivityItem struct {
	Type        string    `json:"type"`
	Text        string    `json:"text"`
	Actor       string    `json:"actor"`
	MeetingDate string    `json:"meetingDate"`
	Timestamp   time.Time `json:"timestamp"`
}
