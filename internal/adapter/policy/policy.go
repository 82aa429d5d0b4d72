package policy

import (
	"fmt"
	"strings"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Policy holds operator-controlled masking rules loaded from a YAML file.
// Rules mask bound parameter values before they are written to the query
// log; the values sent to the database are never touched.
type Policy struct {
	Params ParamsConfig `yaml:"params"`
}

// ParamsConfig lists parameter masking rules. Every matching rule applies,
// in file order.
type ParamsConfig struct {
	Rules []Rule `yaml:"rules"`
}

// Rule selects statements by a case-insensitive substring of the statement
// text or by exact statement hash, and masks parameters at 1-based
// positions. No positions means every parameter.
type Rule struct {
	Match  string          `yaml:"match,omitempty"`
	Hash   string          `yaml:"hash,omitempty"`
	Params []int           `yaml:"params,omitempty"`
	Mask   domain.MaskType `yaml:"mask"`
}

// UnmarshalYAML supports both the struct format and a plain-string shorthand.
//
//	rules:
//	  - "password"            # shorthand: Rule{Match: "password", Mask: redact}
//	  - match: "INSERT INTO cards"
//	    params: [2]
//	    mask: "partial"
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.Match = value.Value
		r.Mask = domain.MaskRedact
		return nil
	}
	// Decode as struct (avoid infinite recursion by using an alias type).
	type alias Rule
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding rule: %w", err)
	}
	*r = Rule(a)
	return nil
}

func (r Rule) matches(sql, hash string) bool {
	if r.Hash != "" && !strings.EqualFold(r.Hash, hash) {
		return false
	}
	if r.Match != "" && !strings.Contains(strings.ToLower(sql), strings.ToLower(r.Match)) {
		return false
	}
	return true
}

// Masker applies a Policy to bound values. It implements port.ParamMasker.
type Masker struct {
	rules []Rule
}

func NewMasker(pol *Policy) *Masker {
	if pol == nil {
		return &Masker{}
	}
	return &Masker{rules: pol.Params.Rules}
}

// MaskParams returns values with every matching rule applied. The input
// slice is left untouched.
func (m *Masker) MaskParams(sql string, values []any) []any {
	if len(m.rules) == 0 || len(values) == 0 {
		return values
	}
	hash := domain.StatementHash(sql)
	out := values
	for _, r := range m.rules {
		if r.matches(sql, hash) {
			out = domain.MaskValues(out, r.Params, r.Mask)
		}
	}
	return out
}
