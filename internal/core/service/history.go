package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"github.com/guillermoBallester/querytrail/internal/core/port"
)

// topStatementsLimit caps Stats.TopStatements.
const topStatementsLimit = 10

// leadingSpace mirrors the characters ClassifyStatement trims.
const leadingSpace = "' ' || char(9) || char(10) || char(13)"

// HistoryService is the read side of the query log: filtered history and
// summary statistics, translated into predicates for the store.
type HistoryService struct {
	reader port.RecordReader
	now    func() time.Time
}

func NewHistoryService(reader port.RecordReader) *HistoryService {
	return &HistoryService{reader: reader, now: time.Now}
}

// Search returns records matching q, newest first, truncated to q.Limit.
func (s *HistoryService) Search(ctx context.Context, q domain.HistoryQuery) ([]domain.QueryRecord, error) {
	where, err := s.Predicate(q)
	if err != nil {
		return nil, err
	}
	records, err := s.reader.History(ctx, where)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	if q.Limit > 0 && len(records) > q.Limit {
		records = records[:q.Limit]
	}
	return records, nil
}

// Get returns a single record by id.
func (s *HistoryService) Get(ctx context.Context, id int64) (*domain.QueryRecord, error) {
	return s.reader.Get(ctx, id)
}

// Stats summarises the records matching q. Limit is ignored.
func (s *HistoryService) Stats(ctx context.Context, q domain.HistoryQuery) (*domain.Stats, error) {
	q.Limit = 0
	records, err := s.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return Summarize(records), nil
}

// Predicate translates q into a backend predicate. Generated literals are
// quoted; q.Where is appended verbatim.
func (s *HistoryService) Predicate(q domain.HistoryQuery) (string, error) {
	var clauses []string

	if q.Range.Bounded() {
		since := q.Range.Since(s.now()).UTC().Format(domain.TimestampLayout)
		clauses = append(clauses, "timestamp >= "+quoteLiteral(since))
	}

	switch q.Type {
	case "", domain.StatementAll:
	case domain.StatementOther:
		prefixes := make([]string, len(domain.ClassifiedTypes))
		for i, t := range domain.ClassifiedTypes {
			prefixes[i] = typeClause(t)
		}
		clauses = append(clauses, "NOT ("+strings.Join(prefixes, " OR ")+")")
	case domain.StatementSelect, domain.StatementInsert, domain.StatementUpdate,
		domain.StatementDelete, domain.StatementCreate:
		clauses = append(clauses, typeClause(q.Type))
	default:
		return "", fmt.Errorf("%w %q", domain.ErrInvalidStatementType, q.Type)
	}

	if q.Caller != "" {
		clauses = append(clauses, "caller_name = "+quoteLiteral(q.Caller))
	}
	if q.Source != "" {
		if !q.Source.Valid() {
			return "", fmt.Errorf("%w %q", domain.ErrInvalidSource, q.Source)
		}
		clauses = append(clauses, "source = "+quoteLiteral(string(q.Source)))
	}
	if w := strings.TrimSpace(q.Where); w != "" {
		clauses = append(clauses, "("+w+")")
	}

	return strings.Join(clauses, " AND "), nil
}

func typeClause(t domain.StatementType) string {
	return fmt.Sprintf("UPPER(LTRIM(raw_statement, %s)) LIKE '%s%%'", leadingSpace, t)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Summarize computes Stats over records in any order.
func Summarize(records []domain.QueryRecord) *domain.Stats {
	st := &domain.Stats{
		Total:         len(records),
		ByType:        map[domain.StatementType]int{},
		BySource:      map[domain.Source]int{},
		TopStatements: []domain.StatementCount{},
		ByCaller:      []domain.CallerCount{},
	}
	if len(records) == 0 {
		return st
	}

	first, last := records[0].Timestamp, records[0].Timestamp
	byHash := map[string]*domain.StatementCount{}
	byCaller := map[string]int{}

	for _, r := range records {
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
		st.ByType[r.StatementType()]++
		st.BySource[r.Source]++
		byCaller[r.CallerName]++

		sc, ok := byHash[r.StatementHash]
		if !ok {
			sc = &domain.StatementCount{StatementHash: r.StatementHash, Statement: r.RawStatement}
			byHash[r.StatementHash] = sc
		}
		sc.Count++
	}

	st.First, st.Last = &first, &last
	st.UniqueCallers = len(byCaller)
	hours := last.Sub(first).Hours()
	if hours < 1 {
		hours = 1
	}
	st.QueriesPerHour = float64(len(records)) / hours

	for _, sc := range byHash {
		st.TopStatements = append(st.TopStatements, *sc)
	}
	sort.Slice(st.TopStatements, func(i, j int) bool {
		a, b := st.TopStatements[i], st.TopStatements[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.StatementHash < b.StatementHash
	})
	if len(st.TopStatements) > topStatementsLimit {
		st.TopStatements = st.TopStatements[:topStatementsLimit]
	}

	for name, n := range byCaller {
		st.ByCaller = append(st.ByCaller, domain.CallerCount{CallerName: name, Count: n})
	}
	sort.Slice(st.ByCaller, func(i, j int) bool {
		a, b := st.ByCaller[i], st.ByCaller[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.CallerName < b.CallerName
	})

	return st
}
