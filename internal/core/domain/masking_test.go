package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskType_Valid(t *testing.T) {
	t.Parallel()
	for _, mt := range []MaskType{"", MaskRedact, MaskHash, MaskPartial, MaskNull} {
		assert.True(t, mt.Valid(), "expected %q to be valid", mt)
	}
	for _, mt := range []MaskType{"encrypt", "REDACT", "sha256"} {
		assert.False(t, mt.Valid(), "expected %q to be invalid", mt)
	}
}

func TestApplyMask(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value any
		mask  MaskType
		want  any
	}{
		{"redact string", "hunter2", MaskRedact, "***"},
		{"redact int", 12345, MaskRedact, "***"},
		{"partial long", "1234567890", MaskPartial, "******7890"},
		{"partial short", "ab", MaskPartial, "***ab"},
		{"partial int", 12345, MaskPartial, "*2345"},
		{"null", "secret", MaskNull, nil},
		{"nil stays nil", nil, MaskRedact, nil},
		{"unknown mask keeps value", "keep-me", "unknown", "keep-me"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyMask(tt.value, tt.mask))
		})
	}
}

func TestApplyMask_Hash(t *testing.T) {
	t.Parallel()
	h, ok := ApplyMask("secret@email.com", MaskHash).(string)
	require.True(t, ok)
	assert.Len(t, h, 64)
	assert.Equal(t, h, ApplyMask("secret@email.com", MaskHash))
	assert.NotEqual(t, h, ApplyMask("other@email.com", MaskHash))
	assert.Equal(t, ApplyMask(12345, MaskHash), ApplyMask("12345", MaskHash))
}

func TestApplyMask_PartialUnicode(t *testing.T) {
	t.Parallel()
	s, ok := ApplyMask("café résumé", MaskPartial).(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(s, "sumé"))
	assert.Len(t, []rune(s), 11)
}

func TestMaskValues_Positions(t *testing.T) {
	t.Parallel()
	in := []any{"alice", "hunter2", 42}

	out := MaskValues(in, []int{2}, MaskRedact)

	assert.Equal(t, []any{"alice", "***", 42}, out)
	assert.Equal(t, "hunter2", in[1], "input must not be modified")
}

func TestMaskValues_AllWhenNoPositions(t *testing.T) {
	t.Parallel()
	out := MaskValues([]any{"a", nil, 3}, nil, MaskNull)
	assert.Equal(t, []any{nil, nil, nil}, out)
}

func TestMaskValues_OutOfRangeIgnored(t *testing.T) {
	t.Parallel()
	out := MaskValues([]any{"a"}, []int{0, 5}, MaskRedact)
	assert.Equal(t, []any{"a"}, out)
}
