package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSetupLevels(t *testing.T) {
	prev := L()
	t.Cleanup(func() {
		mu.Lock()
		global = prev
		mu.Unlock()
	})
	var b bytes.Buffer
	l := Setup(Config{Writer: &b})
	l.Debug("hidden")
	l.Info("stage.done", "stage", "cut")
	out := b.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
	if !strings.Contains(out, "stage=cut") {
		t.Errorf("missing attribute in %q", out)
	}
	if L() != l {
		t.Error("L does not return the installed logger")
	}

	b.Reset()
	Setup(Config{Writer: &b, Debug: true, JSON: true}).Debug("visible", "n", 3)
	var rec map[string]any
	if err := json.Unmarshal(b.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON record %q: %v", b.String(), err)
	}
	if rec["msg"] != "visible" || rec["n"] != float64(3) {
		t.Errorf("unexpected record %v", rec)
	}
	if _, ok := rec["source"]; !ok {
		t.Error("debug logger should add source")
	}
}
