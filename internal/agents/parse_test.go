package agents

import (
	"strings"
	"testing"
)

func TestParseFindingsPlainArray(t *testing.T) {
	raw := `[{"file_path": "src/app.go", "symbol": "Run", "category": "Complexity", "severity": "High", "description": "too deep", "confidence": 0.9}]`

	findings, err := ParseFindings(raw)
	if err != nil {
		t.Fatalf("ParseFindings: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.FilePath != "src/app.go" || f.Symbol != "Run" {
		t.Errorf("location = (%q, %q), want (src/app.go, Run)", f.FilePath, f.Symbol)
	}
	if f.Severity != "High" || f.Category != "Complexity" {
		t.Errorf("classification = (%q, %q), want (High, Complexity)", f.Severity, f.Category)
	}
}

func TestParseFindingsFencedResponse(t *testing.T) {
	raw := "```json\n[{\"file_path\": \"a.py\", \"description\": \"issue\", \"severity\": \"Low\", \"confidence\": 0.5}]\n```"

	findings, err := ParseFindings(raw)
	if err != nil {
		t.Fatalf("ParseFindings: %v", err)
	}
	if len(findings) != 1 || findings[0].FilePath != "a.py" {
		t.Fatalf("got %+v, want one finding for a.py", findings)
	}
}

func TestParseFindingsProseAroundArray(t *testing.T) {
	raw := "Review results [v2]:\n\n[{\"file_path\": \"b.cs\", \"description\": \"x\", \"confidence\": 0.6}]\n\nLet me know if you need more detail."

	findings, err := ParseFindings(raw)
	if err != nil {
		t.Fatalf("ParseFindings: %v", err)
	}
	if len(findings) != 1 || findings[0].FilePath != "b.cs" {
		t.Fatalf("got %+v, want one finding for b.cs", findings)
	}
}

func TestParseFindingsNormalizesEnums(t *testing.T) {
	raw := `[
		{"file_path": "a.go", "description": "x", "severity": "BLOCKER", "category": "style", "confidence": 0.8},
		{"file_path": "b.go", "description": "y", "severity": "high", "category": "security", "confidence": 0.8}
	]`

	findings, err := ParseFindings(raw)
	if err != nil {
		t.Fatalf("ParseFindings: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(findings))
	}
	if findings[0].Severity != "Info" {
		t.Errorf("unknown severity normalized to %q, want Info", findings[0].Severity)
	}
	if findings[0].Category != "CodeQuality" {
		t.Errorf("unknown category normalized to %q, want CodeQuality", findings[0].Category)
	}
	if findings[1].Severity != "High" || findings[1].Category != "Security" {
		t.Errorf("got (%q, %q), want canonical (High, Security)", findings[1].Severity, findings[1].Category)
	}
}

func TestParseFindingsClampsConfidence(t *testing.T) {
	raw := `[
		{"file_path": "a.go", "description": "x", "confidence": 1.7},
		{"file_path": "b.go", "description": "y", "confidence": -0.4}
	]`

	findings, err := ParseFindings(raw)
	if err != nil {
		t.Fatalf("ParseFindings: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(findings))
	}
	if findings[0].Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", findings[0].Confidence)
	}
	if findings[1].Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", findings[1].Confidence)
	}
}

func TestParseFindingsDropsLowConfidenceOrphans(t *testing.T) {
	raw := `[
		{"description": "vague concern", "confidence": 0.1},
		{"description": "strong concern", "confidence": 0.9}
	]`

	findings, err := ParseFindings(raw)
	if err != nil {
		t.Fatalf("ParseFindings: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].Description != "strong concern" {
		t.Errorf("kept %q, want the high-confidence finding", findings[0].Description)
	}
}

func TestParseFindingsSkipsUndecodableElements(t *testing.T) {
	raw := `[{"file_path": "a.go", "description": "x", "confidence": 0.8}, 42, "nope"]`

	findings, err := ParseFindings(raw)
	if err != nil {
		t.Fatalf("ParseFindings: %v", err)
	}
	if len(findings) != 1 || findings[0].FilePath != "a.go" {
		t.Fatalf("got %+v, want only the valid element", findings)
	}
}

func TestParseFindingsEmptyArray(t *testing.T) {
	findings, err := ParseFindings("[]")
	if err != nil {
		t.Fatalf("ParseFindings: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("got %d findings, want 0", len(findings))
	}
}

func TestParseFindingsNoArray(t *testing.T) {
	_, err := ParseFindings("I found no issues worth reporting.")
	if err == nil {
		t.Fatal("expected an error for a response without a JSON array")
	}
	if !strings.Contains(err.Error(), "no JSON array") {
		t.Errorf("error = %q, want it to mention the missing array", err)
	}
}

func TestParseFindingsBracketsInsideStrings(t *testing.T) {
	raw := `[{"file_path": "src/[id].tsx", "description": "dynamic route [id] unvalidated", "confidence": 0.7}]`

	findings, err := ParseFindings(raw)
	if err != nil {
		t.Fatalf("ParseFindings: %v", err)
	}
	if len(findings) != 1 || findings[0].FilePath != "src/[id].tsx" {
		t.Fatalf("got %+v, want the bracketed path preserved", findings)
	}
}
