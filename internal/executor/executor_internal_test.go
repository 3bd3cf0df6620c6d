package executor

import (
	"testing"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

func TestCoerceNumeric(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"42", int64(42)},
		{"3.14", 3.14},
		{"-5", int64(-5)},
		{"007-not-a-number", "007-not-a-number"},
		{"007", "007"},
		{"0", int64(0)},
		{"0.5", 0.5},
		{"", ""},
		{42, 42},
		{nil, nil},
	}
	for _, c := range cases {
		got := coerceNumeric(c.in)
		if got != c.want {
			t.Errorf("coerceNumeric(%#v) = %#v, want %#v", c.in, got, c.want)
		}
	}
}

func TestNormalizeRows_LowercasesKeys(t *testing.T) {
	rows := []domain.Row{{"Product": "Widget", "Revenue": "19.99"}}
	got := normalizeRows(rows)
	if got[0]["product"] != "Widget" {
		t.Errorf("expected lowercased key, got %+v", got[0])
	}
	if got[0]["revenue"] != 19.99 {
		t.Errorf("expected revenue coerced to float64, got %#v", got[0]["revenue"])
	}
}
