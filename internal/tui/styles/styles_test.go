package styles

import "testing"

func TestSeverityColors_CoversClosedSet(t *testing.T) {
	for _, sev := range []string{"Critical", "High", "Medium", "Low", "Info"} {
		if _, ok := SeverityColors[sev]; !ok {
			t.Errorf("missing severity color for %q", sev)
		}
	}
}

func TestErrorTextRenders(t *testing.T) {
	out := ErrorText.Render("boom")
	if out == "" {
		t.Error("expected non-empty render")
	}
}
