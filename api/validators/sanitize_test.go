package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{name: "trims", in: "  short shipment \n", maxLen: 0, want: "short shipment"},
		{name: "keeps line breaks", in: "line one\r\nline two", maxLen: 100, want: "line one\nline two"},
		{name: "drops control characters", in: "box\x00 3\x1b of 5", maxLen: 100, want: "box 3 of 5"},
		{name: "cuts on rune boundary", in: "größe", maxLen: 3, want: "grö"},
		{name: "no trailing space after cut", in: "ab cd", maxLen: 3, want: "ab"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeString(tc.in, tc.maxLen))
		})
	}
}

func TestSanitizeLineFlattensWhitespace(t *testing.T) {
	assert.Equal(t, "ORD 42", SanitizeLine("ORD\t42\n", 64))
	assert.Equal(t, "ORD-42", SanitizeLine(" ORD-42\r", 64))
}
