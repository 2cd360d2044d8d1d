package contract

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/relay/internal/domain"
	"github.com/shaiso/relay/internal/telemetry"
)

func newTestVerifier() *Verifier {
	return NewVerifier(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func serviceWithOutput(typ, format string) *domain.Service {
	return &domain.Service{
		Name:    "svc",
		Program: "true",
		Output:  &domain.Contract{Type: typ, Format: format},
	}
}

func TestVerify_TypeMatrix(t *testing.T) {
	payloads := map[string]string{
		"number":  `{"data": 42}`,
		"float":   `{"data": 4.2}`,
		"string":  `{"data": "42"}`,
		"boolean": `{"data": true}`,
		"object":  `{"data": {"a": 1}}`,
		"array":   `{"data": [1, 2]}`,
		"null":    `{"data": null}`,
	}

	tests := []struct {
		typ    string
		accept []string
	}{
		{"number", []string{"number", "float"}},
		{"string", []string{"string"}},
		{"boolean", []string{"boolean"}},
		{"object", []string{"object"}},
		{"dictionary", []string{"object"}},
		{"array", []string{"array"}},
	}

	v := newTestVerifier()

	for _, tt := range tests {
		accepted := make(map[string]bool)
		for _, a := range tt.accept {
			accepted[a] = true
		}

		for name, payload := range payloads {
			svc := serviceWithOutput(tt.typ, "")
			res := v.Verify(svc, domain.DirectionOutbound, []byte(payload))

			if res.OK != accepted[name] {
				t.Errorf("type=%s payload=%s: expected OK=%v, got %v (%s)",
					tt.typ, name, accepted[name], res.OK, res.Reason)
			}
			if !res.OK && res.Reason != ReasonTypeMismatch {
				t.Errorf("type=%s payload=%s: expected type_mismatch, got %s", tt.typ, name, res.Reason)
			}
		}
	}
}

func TestVerify_NumberRejectsNumericString(t *testing.T) {
	v := newTestVerifier()
	svc := serviceWithOutput("number", "")

	if v.Check(svc, domain.DirectionOutbound, []byte(`{"data": "5"}`)) {
		t.Error("number contract should reject the string \"5\"")
	}
	if !v.Check(svc, domain.DirectionOutbound, []byte(`{"data": 5}`)) {
		t.Error("number contract should accept 5")
	}
}

func TestVerify_Time(t *testing.T) {
	tests := []struct {
		name   string
		format string
		value  string
		ok     bool
	}{
		{"default format valid", "", `"2024-01-01 10:20:30"`, true},
		{"default format garbage", "", `"yesterday"`, false},
		{"default format date only", "", `"2024-01-01"`, false},
		{"explicit format valid", "%Y-%m-%d", `"2024-01-01"`, true},
		{"explicit format other layout", "%Y-%m-%d", `"01/01/2024"`, false},
		{"explicit slash format", "%d/%m/%Y", `"01/01/2024"`, true},
		{"not a string", "%Y", `2024`, false},
		{"impossible day", "", `"2024-02-30 10:00:00"`, false},
		{"leap day", "", `"2024-02-29 10:00:00"`, true},
		{"leap day in common year", "%Y-%m-%d", `"2023-02-29"`, false},
		{"day 31 in 30-day month", "%d/%m/%Y", `"31/04/2024"`, false},
		{"unpadded fields", "%Y-%m-%d", `"2024-2-5"`, true},
		{"month name", "%d %b %Y", `"30 Feb 2024"`, false},
		{"month name valid", "%d %b %Y", `"28 feb 2024"`, true},
		{"composite format", "%F", `"2024-06-31"`, false},
	}

	v := newTestVerifier()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := serviceWithOutput("time", tt.format)
			res := v.Verify(svc, domain.DirectionOutbound, []byte(`{"data": `+tt.value+`}`))

			if res.OK != tt.ok {
				t.Errorf("expected OK=%v, got %v (%s)", tt.ok, res.OK, res.Reason)
			}
			if !res.OK && res.Reason != ReasonInvalidTime {
				t.Errorf("expected invalid_time, got %s", res.Reason)
			}
		})
	}
}

func TestVerify_NoContractAlwaysPasses(t *testing.T) {
	v := newTestVerifier()

	services := []*domain.Service{
		{Name: "nil-contract"},
		{Name: "empty-type", Output: &domain.Contract{Format: "%Y"}},
	}
	payloads := []string{`{"data": 1}`, `not json`, ``, `[1,2]`, `{"other": 1}`}

	for _, svc := range services {
		for _, p := range payloads {
			res := v.Verify(svc, domain.DirectionOutbound, []byte(p))
			if !res.OK {
				t.Errorf("%s with %q: unconfigured contract should pass", svc.Name, p)
			}
			if res.Reason != ReasonNoContract {
				t.Errorf("expected no_contract, got %s", res.Reason)
			}
		}
	}
}

func TestVerify_UnsupportedTypeAlwaysFails(t *testing.T) {
	v := newTestVerifier()
	svc := serviceWithOutput("datetime", "")

	for _, p := range []string{`{"data": 1}`, `{"data": "2024-01-01"}`, `garbage`} {
		res := v.Verify(svc, domain.DirectionOutbound, []byte(p))
		if res.OK {
			t.Errorf("unsupported type should fail for %q", p)
		}
		if res.Reason != ReasonUnsupportedType {
			t.Errorf("expected unsupported_type, got %s", res.Reason)
		}
	}
}

func TestVerify_DuplicateDataKeyLastWins(t *testing.T) {
	v := newTestVerifier()
	svc := serviceWithOutput("number", "")

	if !v.Check(svc, domain.DirectionOutbound, []byte(`{"data": "x", "data": 1}`)) {
		t.Error("last data value is a number, check should pass")
	}
	if v.Check(svc, domain.DirectionOutbound, []byte(`{"data": 1, "data": "x"}`)) {
		t.Error("last data value is a string, check should fail")
	}
}

func TestVerify_MalformedPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		reason  Reason
	}{
		{"invalid json", []byte(`{"data": `), ReasonMalformedPayload},
		{"invalid utf8", []byte{'{', '"', 'd', '"', ':', '"', 0xff, '"', '}'}, ReasonMalformedPayload},
		{"top-level array", []byte(`[{"data": 1}]`), ReasonMalformedPayload},
		{"empty", []byte(``), ReasonMalformedPayload},
		{"missing data", []byte(`{"value": 1}`), ReasonMissingData},
	}

	v := newTestVerifier()
	svc := serviceWithOutput("number", "")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Verify(svc, domain.DirectionOutbound, tt.payload)
			if res.OK {
				t.Fatal("expected failure")
			}
			if res.Reason != tt.reason {
				t.Errorf("expected %s, got %s", tt.reason, res.Reason)
			}
		})
	}
}

func TestVerify_UsesDirection(t *testing.T) {
	v := newTestVerifier()
	svc := &domain.Service{
		Name:   "svc",
		Input:  &domain.Contract{Type: "string"},
		Output: &domain.Contract{Type: "number"},
	}
	payload := []byte(`{"data": "text"}`)

	if !v.Check(svc, domain.DirectionInbound, payload) {
		t.Error("inbound contract is string, should pass")
	}
	if v.Check(svc, domain.DirectionOutbound, payload) {
		t.Error("outbound contract is number, should fail")
	}
}

func TestVerify_CountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	v := NewVerifier(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)

	svc := serviceWithOutput("number", "")
	v.Verify(svc, domain.DirectionOutbound, []byte(`{"data": "x"}`))
	v.Verify(svc, domain.DirectionOutbound, []byte(`{"data": 1}`))

	count, err := testutil.GatherAndCount(reg, "relay_contract_failures_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 failure series, got %d", count)
	}
}

func TestChecksCoverSupportedTypes(t *testing.T) {
	for _, dt := range domain.SupportedDataTypes() {
		if _, ok := checks[dt]; !ok {
			t.Errorf("no check registered for %s", dt)
		}
	}
}
