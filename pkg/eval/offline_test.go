package eval

import (
	"testing"
	"testing/fstest"
)

func TestEvaluatePromptFixtures(t *testing.T) {
	fsys := fstest.MapFS{
		"cases/a.json": {Data: []byte(`{"name":"a","prompt":"Hello {{.name}}","vars":{"name":"Ada"},"expect":{"contains":["Hello Ada"]}}`)},
		"cases/b.json": {Data: []byte(`{"name":"b","prompt":"API key: {{.key}}","vars":{"key":"***"},"expect":{"not_contains":["sk-"]}}`)},
	}
	score, total, passed, details, err := EvaluatePromptFixtures(fsys, "cases")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || passed != 2 || score != 1 {
		t.Fatalf("score=%v total=%d passed=%d details=%v", score, total, passed, details)
	}

	// Missing variable should fail the case, not the evaluation.
	fsysFail := fstest.MapFS{
		"cases/x.json": {Data: []byte(`{"name":"x","prompt":"Hello {{.name}}"}`)},
	}
	score2, total2, passed2, _, err := EvaluatePromptFixtures(fsysFail, "cases")
	if err != nil {
		t.Fatal(err)
	}
	if total2 != 1 || passed2 != 0 || score2 != 0 {
		t.Fatalf("expected failure: score=%v total=%d passed=%d", score2, total2, passed2)
	}
}

func TestEvaluatePromptFixturesExpectationMiss(t *testing.T) {
	fsys := fstest.MapFS{
		"cases/a.json": {Data: []byte(`{"name":"a","prompt":"plain text","expect":{"contains":["absent"]}}`)},
	}
	score, total, passed, details, err := EvaluatePromptFixtures(fsys, "cases")
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || passed != 0 || score != 0 {
		t.Fatalf("score=%v total=%d passed=%d", score, total, passed)
	}
	if len(details) != 1 {
		t.Fatalf("details=%v", details)
	}
}
