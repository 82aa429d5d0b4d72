package postgres

import (
	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// splitArgs separates leading pgx execution options from bound parameters.
func splitArgs(args []any) (options, bound []any) {
	i := 0
	for i < len(args) && isOption(args[i]) {
		i++
	}
	return args[:i], args[i:]
}

func isOption(arg any) bool {
	switch arg.(type) {
	case pgx.QueryExecMode, pgx.QueryResultFormats, pgx.QueryResultFormatsByOID:
		return true
	}
	return false
}

// boundArgs returns only the arguments that bind statement parameters.
// pgx rewrites a single NamedArgs or StrictNamedArgs into one parameter per
// name, so those are unpacked in key order. Any other map binds as a single
// json or hstore value and is left whole.
func boundArgs(args []any) []any {
	_, bound := splitArgs(args)
	if len(bound) != 1 {
		return bound
	}
	switch m := bound[0].(type) {
	case pgx.NamedArgs:
		return []any{domain.SortedNamed(m)}
	case pgx.StrictNamedArgs:
		return []any{domain.SortedNamed(m)}
	}
	return bound
}

// driverArgs converts args into what pgx accepts. A domain.Named list is
// passed as pgx.NamedArgs; everything else is forwarded untouched.
func driverArgs(args []any) []any {
	options, bound := splitArgs(args)
	if len(bound) != 1 {
		return args
	}
	named, ok := bound[0].(domain.Named)
	if !ok {
		return args
	}
	out := make([]any, 0, len(options)+1)
	out = append(out, options...)
	return append(out, pgx.NamedArgs(named.Map()))
}
