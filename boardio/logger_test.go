package boardio

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogVerbose)
	l.SetOutput(&buf)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Verbose("v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}

	wantPrefixes := []string{"[ERR]", "[WRN]", "[INF]", "[VRB]"}
	for i, prefix := range wantPrefixes {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d %q missing prefix %q", i, lines[i], prefix)
		}
	}
}

func TestLogger_QuietStillReportsFailures(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogQuiet)
	l.SetOutput(&buf)

	l.Info("hidden")
	l.Verbose("hidden")
	l.Error("connect failed")
	l.Warn("pin skipped")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("quiet logger printed informational output:\n%s", out)
	}
	if !strings.Contains(out, "connect failed") || !strings.Contains(out, "pin skipped") {
		t.Errorf("quiet logger dropped failure diagnostics:\n%s", out)
	}
}
