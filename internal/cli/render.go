package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
)

// maxStatementWidth truncates statements in text output.
const maxStatementWidth = 72

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeHistoryText(w io.Writer, records []domain.QueryRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no records")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIMESTAMP\tSOURCE\tCALLER\tPARAMS\tSTATEMENT")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t[%s]\t%s\n",
			r.ID,
			r.Timestamp.UTC().Format(domain.TimestampLayout),
			r.Source,
			r.CallerName,
			strings.Join(r.ParamValues, ", "),
			oneLine(r.RawStatement),
		)
	}
	return tw.Flush()
}

func writeStatsText(w io.Writer, st *domain.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintf(tw, "total:\t%d\n", st.Total)
	fmt.Fprintf(tw, "queries/hour:\t%.2f\n", st.QueriesPerHour)
	fmt.Fprintf(tw, "unique callers:\t%d\n", st.UniqueCallers)
	if st.First != nil && st.Last != nil {
		fmt.Fprintf(tw, "first:\t%s\n", st.First.UTC().Format(domain.TimestampLayout))
		fmt.Fprintf(tw, "last:\t%s\n", st.Last.UTC().Format(domain.TimestampLayout))
	}
	if st.Total == 0 {
		return tw.Flush()
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "TYPE\tCOUNT")
	for _, t := range append(slices.Clone(domain.ClassifiedTypes), domain.StatementOther) {
		if n := st.ByType[t]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", t, n)
		}
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "SOURCE\tCOUNT")
	for _, s := range domain.Sources {
		if n := st.BySource[s]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", s, n)
		}
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "COUNT\tSTATEMENT")
	for _, sc := range st.TopStatements {
		fmt.Fprintf(tw, "%d\t%s\n", sc.Count, oneLine(sc.Statement))
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "COUNT\tCALLER")
	for _, cc := range st.ByCaller {
		fmt.Fprintf(tw, "%d\t%s\n", cc.Count, cc.CallerName)
	}

	return tw.Flush()
}

// oneLine collapses whitespace runs and truncates long statements.
func oneLine(statement string) string {
	s := strings.Join(strings.Fields(statement), " ")
	if utf8.RuneCountInString(s) <= maxStatementWidth {
		return s
	}
	r := []rune(s)
	return string(r[:maxStatementWidth-3]) + "..."
}
