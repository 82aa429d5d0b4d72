package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	ErrRecordFailed         = errors.New("recording query failed")
	ErrInvalidSource        = errors.New("invalid source")
	ErrInvalidTimeRange     = errors.New("invalid time range")
	ErrInvalidStatementType = errors.New("invalid statement type")
	ErrInvalidPolicy        = errors.New("invalid failure policy")
	ErrNotFound             = errors.New("not found")
)

// TimestampLayout is the storage format for QueryRecord.Timestamp. Fixed width
// and UTC, so lexical order matches time order.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// LoopbackAddress is substituted when the caller address cannot be resolved.
const LoopbackAddress = "127.0.0.1"

// Source identifies which interception path produced a record.
type Source string

const (
	SourceCursor      Source = "cursor"
	SourceCursorBulk  Source = "cursor_bulk"
	SourceBulkAPI     Source = "bulk_api"
	SourceBulkAPIBulk Source = "bulk_api_bulk"
)

// Sources lists every valid Source in display order.
var Sources = []Source{SourceCursor, SourceCursorBulk, SourceBulkAPI, SourceBulkAPIBulk}

func (s Source) Valid() bool {
	switch s {
	case SourceCursor, SourceCursorBulk, SourceBulkAPI, SourceBulkAPIBulk:
		return true
	}
	return false
}

// ParseSource converts a string into a Source.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !src.Valid() {
		return "", fmt.Errorf("%w %q: must be one of %v", ErrInvalidSource, s, Sources)
	}
	return src, nil
}

// Caller is the resolved identity of the process issuing a statement.
type Caller struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// QueryRecord is one immutable fact about an intercepted statement.
type QueryRecord struct {
	ID                  int64     `json:"id"`
	RawStatement        string    `json:"raw_statement"`
	NormalizedStatement string    `json:"normalized_statement"`
	StatementHash       string    `json:"statement_hash"`
	ParamValues         []string  `json:"param_values"`
	Timestamp           time.Time `json:"timestamp"`
	CallerName          string    `json:"caller_name"`
	CallerAddress       string    `json:"caller_address"`
	Source              Source    `json:"source"`
}

// NewQueryRecord builds an unsaved record. ID is assigned by the store.
// Timestamps are truncated to microseconds to match storage precision.
func NewQueryRecord(statement string, params []string, at time.Time, caller Caller, source Source) QueryRecord {
	if params == nil {
		params = []string{}
	}
	return QueryRecord{
		RawStatement:        statement,
		NormalizedStatement: statement,
		StatementHash:       StatementHash(statement),
		ParamValues:         params,
		Timestamp:           at.UTC().Truncate(time.Microsecond),
		CallerName:          caller.Name,
		CallerAddress:       caller.Address,
		Source:              source,
	}
}

// StatementType classifies the record's raw statement.
func (r QueryRecord) StatementType() StatementType {
	return ClassifyStatement(r.RawStatement)
}

// StatementHash returns the hex SHA-256 digest of the statement bytes.
func StatementHash(statement string) string {
	sum := sha256.Sum256([]byte(statement))
	return hex.EncodeToString(sum[:])
}
