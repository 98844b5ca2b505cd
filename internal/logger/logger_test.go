package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestLoggerLevelsAndPrefix(t *testing.T) {
	var buf bytes.Buffer

	l := New(log.New(&buf, "", 0))
	l.With("booking").With("promo").LogInfo("applied %s", "SAVE10")
	l.LogDebugf("hidden")
	l.WithDebug(true).LogDebugf("visible %d", 1)
	l.LogErrorf("boom")

	out := buf.String()

	for _, want := range []string{
		"[Info] booking.promo: applied SAVE10",
		"[Debug]: visible 1",
		"[Error]: boom",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}

	if strings.Contains(out, "hidden") {
		t.Errorf("debug line printed while debug disabled: %q", out)
	}
}
