package domain

import (
	"fmt"
	"strings"
	"time"
)

// StatementType is the coarse class of a statement, derived from its leading keyword.
type StatementType string

const (
	StatementAll    StatementType = "ALL"
	StatementSelect StatementType = "SELECT"
	StatementInsert StatementType = "INSERT"
	StatementUpdate StatementType = "UPDATE"
	StatementDelete StatementType = "DELETE"
	StatementCreate StatementType = "CREATE"
	StatementOther  StatementType = "OTHER"
)

// ClassifiedTypes are the prefixes ClassifyStatement recognises, in match order.
var ClassifiedTypes = []StatementType{
	StatementSelect, StatementInsert, StatementUpdate, StatementDelete, StatementCreate,
}

// ClassifyStatement matches the statement's leading keyword case-insensitively.
func ClassifyStatement(statement string) StatementType {
	s := strings.ToUpper(strings.TrimLeft(statement, " \t\r\n"))
	for _, t := range ClassifiedTypes {
		if strings.HasPrefix(s, string(t)) {
			return t
		}
	}
	return StatementOther
}

// ParseStatementType accepts any casing. The empty string means ALL.
func ParseStatementType(s string) (StatementType, error) {
	t := StatementType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case "":
		return StatementAll, nil
	case StatementAll, StatementSelect, StatementInsert, StatementUpdate,
		StatementDelete, StatementCreate, StatementOther:
		return t, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidStatementType, s)
}

// TimeRange is a lookback window ending now. Zero means unbounded.
type TimeRange struct {
	Name     string
	Duration time.Duration
}

var (
	RangeLastHour = TimeRange{Name: "1h", Duration: time.Hour}
	RangeLastDay  = TimeRange{Name: "24h", Duration: 24 * time.Hour}
	RangeLastWeek = TimeRange{Name: "7d", Duration: 7 * 24 * time.Hour}
	RangeAllTime  = TimeRange{Name: "all"}
)

// TimeRanges lists the presets accepted by ParseTimeRange.
var TimeRanges = []TimeRange{RangeLastHour, RangeLastDay, RangeLastWeek, RangeAllTime}

// ParseTimeRange accepts a preset name, or any Go duration such as "90m".
// The empty string means all time.
func ParseTimeRange(s string) (TimeRange, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RangeAllTime, nil
	}
	for _, r := range TimeRanges {
		if r.Name == s {
			return r, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return TimeRange{}, fmt.Errorf("%w %q: use 1h, 24h, 7d, all or a positive duration", ErrInvalidTimeRange, s)
	}
	return TimeRange{Name: s, Duration: d}, nil
}

// Bounded reports whether the range has a lower bound.
func (r TimeRange) Bounded() bool { return r.Duration > 0 }

// Since returns the lower bound of the range relative to now.
func (r TimeRange) Since(now time.Time) time.Time {
	return now.Add(-r.Duration)
}

// HistoryQuery narrows a history read. Zero values mean "no constraint".
type HistoryQuery struct {
	Range  TimeRange
	Type   StatementType
	Caller string
	Source Source
	Limit  int

	// Where is a raw backend predicate AND-ed to the generated one.
	// It is trusted as-is and never validated.
	Where string
}

// StatementCount is a statement's frequency within a history window.
type StatementCount struct {
	StatementHash string `json:"statement_hash"`
	Statement     string `json:"statement"`
	Count         int    `json:"count"`
}

// CallerCount is the number of records issued by one caller.
type CallerCount struct {
	CallerName string `json:"caller_name"`
	Count      int    `json:"count"`
}

// Stats summarises a history window.
type Stats struct {
	Total          int                   `json:"total"`
	QueriesPerHour float64               `json:"queries_per_hour"`
	UniqueCallers  int                   `json:"unique_callers"`
	First          *time.Time            `json:"first,omitempty"`
	Last           *time.Time            `json:"last,omitempty"`
	ByType         map[StatementType]int `json:"by_type"`
	BySource       map[Source]int        `json:"by_source"`
	TopStatements  []StatementCount      `json:"top_statements"`
	ByCaller       []CallerCount         `json:"by_caller"`
}
