package chunker

import "testing"

func TestScanUnitsBraceLanguage(t *testing.T) {
	source := "use std::fmt;\n" +
		"\n" +
		"pub fn render(x: i32) -> String {\n" +
		"    format!(\"{}\", x)\n" +
		"}\n" +
		"\n" +
		"struct Point {\n" +
		"    x: i32,\n" +
		"}\n"

	units := scanUnits(source)
	if len(units) != 2 {
		t.Fatalf("unit count = %d, want 2", len(units))
	}

	if units[0].kind != SemanticMethod || units[0].name != "render" {
		t.Errorf("unit 0 = %s %q, want method render", units[0].kind, units[0].name)
	}
	if units[0].startLine != 3 || units[0].endLine != 5 {
		t.Errorf("unit 0 range = %d..%d, want 3..5", units[0].startLine, units[0].endLine)
	}

	if units[1].kind != SemanticStruct || units[1].name != "Point" {
		t.Errorf("unit 1 = %s %q, want struct Point", units[1].kind, units[1].name)
	}
	if units[1].startLine != 7 || units[1].endLine != 9 {
		t.Errorf("unit 1 range = %d..%d, want 7..9", units[1].startLine, units[1].endLine)
	}
}

func TestScanUnitsIndentLanguage(t *testing.T) {
	source := "class Loader\n" +
		"  def load(path)\n" +
		"    File.read(path)\n" +
		"  end\n" +
		"end\n" +
		"\n" +
		"def helper\n" +
		"  42\n" +
		"end\n"

	units := scanUnits(source)
	if len(units) != 2 {
		t.Fatalf("unit count = %d, want 2", len(units))
	}

	if units[0].kind != SemanticClass || units[0].name != "Loader" {
		t.Errorf("unit 0 = %s %q, want class Loader", units[0].kind, units[0].name)
	}
	if units[0].startLine != 1 || units[0].endLine != 5 {
		t.Errorf("unit 0 range = %d..%d, want 1..5", units[0].startLine, units[0].endLine)
	}

	if units[1].kind != SemanticMethod || units[1].name != "helper" {
		t.Errorf("unit 1 = %s %q, want method helper", units[1].kind, units[1].name)
	}
	if units[1].startLine != 7 || units[1].endLine != 9 {
		t.Errorf("unit 1 range = %d..%d, want 7..9", units[1].startLine, units[1].endLine)
	}
}

func TestScanUnitsNoDeclarations(t *testing.T) {
	if units := scanUnits("just prose\nacross lines\n"); len(units) != 0 {
		t.Errorf("unit count = %d, want 0", len(units))
	}
}

func TestUnitOpener(t *testing.T) {
	tests := []struct {
		line     string
		wantKind string
		wantName string
		wantOK   bool
	}{
		{"static int helper(int x) {", SemanticMethod, "helper", true},
		{"pub fn do_thing<T>(x: T) {", SemanticMethod, "do_thing", true},
		{"class Foo(Base):", SemanticClass, "Foo", true},
		{"defmodule App.Worker do", SemanticClass, "App.Worker", true},
		{"if (x > 0) {", "", "", false},
		{"foreach (var x in xs) {", "", "", false},
		{"return call(a, b);", "", "", false},
		{"x = 1", "", "", false},
	}

	for _, tt := range tests {
		kind, name, ok := unitOpener(tt.line)
		if ok != tt.wantOK || kind != tt.wantKind || name != tt.wantName {
			t.Errorf("unitOpener(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.line, kind, name, ok, tt.wantKind, tt.wantName, tt.wantOK)
		}
	}
}

func TestDeclarationName(t *testing.T) {
	tests := []struct {
		rest string
		want string
	}{
		{"Foo(Base):", "Foo"},
		{"do_thing<T>(x: T)", "do_thing"},
		{"Widget {", "Widget"},
		{"Point", "Point"},
	}
	for _, tt := range tests {
		if got := declarationName(tt.rest); got != tt.want {
			t.Errorf("declarationName(%q) = %q, want %q", tt.rest, got, tt.want)
		}
	}
}
