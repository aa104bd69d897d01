package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestSetLogLevel(t *testing.T) {
	defer SetLogLevel(Info)
	tests := []struct {
		in   string
		want string
	}{
		{"", "info"},
		{"t", "trace"},
		{"debug", "debug"},
		{"ERROR", "error"},
		{"protocol", "trace"},
		{"fatal", "fatal"},
		{"nonsense", "info"},
	}
	for i, test := range tests {
		SetLogLevel(test.in)
		if got := GetLogLevel(); got != test.want {
			t.Errorf("SetLogLevel #%d (%q): got %v want %v", i, test.in, got, test.want)
		}
	}
}

func TestPrinterThreshold(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriter(&buf)
	defer SetLogWriter(os.Stderr)
	defer SetLogLevel(Info)
	_, e, _, i, d, _ := GetLogPrinterSet("pkg/log")
	SetLogLevel(Info)
	i.Ln("visible", 1)
	d.Ln("hidden")
	out := buf.String()
	if !strings.Contains(out, "visible 1") {
		t.Errorf("info line missing from output %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line printed at info level: %q", out)
	}
	buf.Reset()
	SetLogLevel(Off)
	if !e.Chk(errors.New("boom")) {
		t.Errorf("Chk returned false for a non-nil error with logging off")
	}
	if buf.Len() != 0 {
		t.Errorf("printed while level is off: %q", buf.String())
	}
	if e.Chk(nil) {
		t.Errorf("Chk returned true for nil")
	}
}

func TestEnabled(t *testing.T) {
	defer SetLogLevel(Info)
	SetLogLevel(Debug)
	if !Enabled(Info) || !Enabled(Debug) {
		t.Errorf("info and debug should be enabled at debug")
	}
	if Enabled(Trace) {
		t.Errorf("trace should not be enabled at debug")
	}
}
