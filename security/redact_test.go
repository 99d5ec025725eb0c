package security

import (
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"password value masked",
			"login failed: password=hunter2",
			"login failed: password=[REDACTED]",
		},
		{
			"token with colon",
			"invalid token: abc.def.ghi",
			"invalid token: [REDACTED]",
		},
		{
			"database name masked",
			`cannot reach database: "erp_prod"`,
			"cannot reach database: [REDACTED]",
		},
		{
			"case insensitive",
			"SECRET=topsecret",
			"SECRET=[REDACTED]",
		},
		{
			"plain text untouched",
			"endpoint not found",
			"endpoint not found",
		},
		{
			"empty input",
			"",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redact(tt.input); got != tt.want {
				t.Errorf("Redact(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedact_NeverLeaksValue(t *testing.T) {
	msg := "connection=tcp://user:pw@odoo:8069 refused, key: abc123"
	got := Redact(msg)

	for _, leaked := range []string{"tcp://user:pw@odoo:8069", "abc123"} {
		if strings.Contains(got, leaked) {
			t.Errorf("Redact leaked %q in %q", leaked, got)
		}
	}
}

func TestContainsSensitive(t *testing.T) {
	if !ContainsSensitive("the DATABASE is down") {
		t.Error("should detect keyword regardless of case")
	}
	if ContainsSensitive("upstream unreachable") {
		t.Error("should not flag benign text")
	}
}
