package errmodel

import (
	"errors"
	"strings"
	"testing"
)

func TestNewAndFrom(t *testing.T) {
	e := Validation("missing", "field missing", map[string]any{"field": "session_id"})
	if e.Category != CategoryValidation || e.Code != "missing" {
		t.Fatalf("unexpected: %#v", e)
	}
	if got := From(e); got != e {
		t.Fatalf("From should return same error instance")
	}
}

func TestFrom_WrapsUnknownAsSystem(t *testing.T) {
	e := From(errors.New("boom"))
	if e.Category != CategorySystem || e.Code != "internal" {
		t.Fatalf("unexpected: %#v", e)
	}
}

func TestCategoryHelpers(t *testing.T) {
	if !IsCategory(Provider("timeout", "provider timed out", nil, nil), CategoryProvider) {
		t.Fatal("provider category not detected")
	}
	if !IsCategory(Parse("bad_json", "unparseable reflection", nil), CategoryParse) {
		t.Fatal("parse category not detected")
	}
	if IsCategory(Tool("exec_failed", "tool blew up", nil, nil), CategoryMemory) {
		t.Fatal("tool error misclassified as memory")
	}
}

func TestMessageTruncation(t *testing.T) {
	long := strings.Repeat("x", 1024)
	e := Memory("append_failed", long, map[string]any{"detail": long}, nil)
	if len(e.Message) > 512 {
		t.Fatalf("message not truncated: %d", len(e.Message))
	}
	if s, ok := e.Context["detail"].(string); !ok || len(s) > 256 {
		t.Fatalf("context not truncated: %#v", e.Context["detail"])
	}
}

func TestCauseChain(t *testing.T) {
	root := errors.New("connection refused")
	e := Provider("call_failed", "completion call failed", nil, root)
	if len(e.Causes) != 1 || e.Causes[0].Message != "connection refused" {
		t.Fatalf("cause not captured: %#v", e.Causes)
	}
}
