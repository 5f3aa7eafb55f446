package log

import (
	"strings"
	"testing"
	"time"
)

type captureOutput struct {
	lines []string
}

func (o *captureOutput) Write(_ *Entry, formatted []byte) error {
	o.lines = append(o.lines, string(formatted))
	return nil
}
func (o *captureOutput) Close() error { return nil }

func TestLevelGating(t *testing.T) {
	out := &captureOutput{}
	logger := NewLogger(WithLevel(WarnLevel), WithOutput(out))
	logger.Info("dropped")
	logger.Warn("kept")
	if len(out.lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(out.lines))
	}
	if !strings.Contains(out.lines[0], "kept") {
		t.Fatalf("unexpected line: %q", out.lines[0])
	}
}

func TestWithFieldsCarried(t *testing.T) {
	out := &captureOutput{}
	logger := NewLogger(WithOutput(out)).With(Component("gateway"), Str("node_id", "n1"))
	logger.Info("started", Int("port", 8080))
	if len(out.lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(out.lines))
	}
	line := out.lines[0]
	for _, want := range []string{"component=gateway", "node_id=n1", "port=8080", "started"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONFormatter{}
	b, err := f.Format(&Entry{
		Level:     InfoLevel,
		Message:   "hello",
		Fields:    Fields{"k": "v"},
		Timestamp: time.Unix(0, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"msg":"hello"`, `"level":"INFO"`, `"k":"v"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("json %q missing %q", s, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DebugLevel,
		"INFO":  InfoLevel,
		"warn":  WarnLevel,
		"error": ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %v want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
