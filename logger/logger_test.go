package logger

import (
	"bytes"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func captureOutput(t *testing.T, level LogLevel) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(nopWriter{})
		SetLevel(prev)
	})
	return &buf
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace": TRACE,
		"DEBUG": DEBUG,
		"Info":  INFO,
		"warn":  WARN,
		"error": ERROR,
		"bogus": INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, INFO)

	Debug("abcd1234 Peripheral", "hidden %d", 1)
	Info("abcd1234 Peripheral", "shown %d", 2)
	Error("", "also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message should be filtered at INFO: %s", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("info message missing: %s", out)
	}
	if !strings.Contains(out, "device=\"abcd1234 Peripheral\"") {
		t.Errorf("prefix should be carried as device field: %s", out)
	}
	if !strings.Contains(out, "also shown") {
		t.Errorf("error message missing: %s", out)
	}
}

func TestSetLevelRoundTrip(t *testing.T) {
	captureOutput(t, TRACE)
	for _, lv := range []LogLevel{TRACE, DEBUG, INFO, WARN, ERROR} {
		SetLevel(lv)
		if GetLevel() != lv {
			t.Errorf("GetLevel() = %d after SetLevel(%d)", GetLevel(), lv)
		}
	}
}

func TestToJSON_ProtoMessage(t *testing.T) {
	s, err := structpb.NewStruct(map[string]interface{}{"state": "advertising"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	out := ToJSON(s)
	if !strings.Contains(out, "\"state\"") || !strings.Contains(out, "advertising") {
		t.Errorf("unexpected proto JSON: %s", out)
	}
}

func TestToJSON_PlainStruct(t *testing.T) {
	out := ToJSON(struct {
		Name string `json:"name"`
	}{Name: "MyDevice"})
	if !strings.Contains(out, "\"name\": \"MyDevice\"") {
		t.Errorf("unexpected JSON: %s", out)
	}
}

func TestDebugJSON_SkippedAboveDebug(t *testing.T) {
	buf := captureOutput(t, WARN)
	DebugJSON("p", "snapshot", map[string]int{"a": 1})
	if buf.Len() != 0 {
		t.Errorf("DebugJSON should not log at WARN: %s", buf.String())
	}
}
