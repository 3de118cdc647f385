package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultSection ResultType = "section"
	ResultTodo    ResultType = "todo"
)

// Result is a single search hit. Snippet is HTML-escaped with <mark>
// highlight tags restored afterwards, so it is safe to render directly.
type Result struct {
	Type        ResultType `json:"type"`
	SourceID    int64      `json:"sourceId"`
	MeetingID   int64      `json:"meetingId"`
	MeetingDate string     `json:"meetingDate"`
	SectionName string     `json:"sectionName"`
	Reporter    string     `json:"reporter,omitempty"`
	Snippet     string     `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// SectionRecord is the data we index for a section.
type SectionRecord struct {
	ID          int64  `json:"id"`
	MeetingID   int64  `json:"meetingId"`
	MeetingDate string `json:"meetingDate"`
	Name        string `json:"name"`
	Reporter    string `json:"reporter"`
	Content     string `json:"content"`
}

// TodoRecord is the data we index for a todo.
type TodoRecord struct {
	ID          int64  `json:"id"`
	MeetingID   int64  `json:"meetingId"`
	MeetingDate string `json:"meetingDate"`
	SectionName string `json:"sectionName"`
	Text        string `json:"text"`
	Done        bool   `json:"done"`
}
