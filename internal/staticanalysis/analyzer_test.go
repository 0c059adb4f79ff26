package staticanalysis

import "testing"

const sampleGo = `// Package sample does things.
package sample

import "fmt"

type Widget struct {
	Name string
}

type Renderer interface {
	Render() string
}

func (w *Widget) Render() string {
	if w.Name == "" {
		return "unnamed"
	}
	for i := 0; i < 3; i++ {
		fmt.Println(i)
	}
	return w.Name
}

func New(name string) *Widget {
	return &Widget{Name: name}
}
`

func TestAnalyzeGo(t *testing.T) {
	s := Analyze("pkg/widget.go", sampleGo)

	if s.Language != "go" {
		t.Errorf("language = %q, want go", s.Language)
	}
	if s.TypeCount != 2 {
		t.Errorf("type count = %d, want 2", s.TypeCount)
	}
	if s.MethodCount != 2 {
		t.Errorf("method count = %d, want 2", s.MethodCount)
	}
	// One if plus one for: two decision points.
	if s.Complexity != 2 {
		t.Errorf("complexity = %d, want 2", s.Complexity)
	}
	if s.LOC == 0 || s.LOC >= s.TotalLines {
		t.Errorf("LOC = %d, total = %d; LOC must be positive and below total", s.LOC, s.TotalLines)
	}
}

const sampleCSharp = `using System;

namespace App
{
    public class OrderService
    {
        public void Process(Order order)
        {
            if (order == null) throw new ArgumentNullException();
            foreach (var line in order.Lines)
            {
                if (line.Quantity > 0 && line.Price > 0)
                {
                    Console.WriteLine(line);
                }
            }
        }
    }
}
`

func TestAnalyzeCSharp(t *testing.T) {
	s := Analyze("src/OrderService.cs", sampleCSharp)

	if s.Language != "csharp" {
		t.Errorf("language = %q, want csharp", s.Language)
	}
	if s.TypeCount != 1 {
		t.Errorf("type count = %d, want 1", s.TypeCount)
	}
	if s.MethodCount != 1 {
		t.Errorf("method count = %d, want 1 (Process)", s.MethodCount)
	}
	if s.Complexity < 4 {
		t.Errorf("complexity = %d, want at least 4 (two if, one foreach, one &&)", s.Complexity)
	}
}

const samplePython = `import os

class Loader:
    def load(self, path):
        if not os.path.exists(path):
            return None
        return open(path).read()

async def fetch(url):
    return None
`

func TestAnalyzePython(t *testing.T) {
	s := Analyze("loader.py", samplePython)

	if s.Language != "python" {
		t.Errorf("language = %q, want python", s.Language)
	}
	if s.TypeCount != 1 {
		t.Errorf("type count = %d, want 1", s.TypeCount)
	}
	if s.MethodCount != 2 {
		t.Errorf("method count = %d, want 2 (def load, async def fetch)", s.MethodCount)
	}
}

func TestAnalyzeCommentsAndBlanks(t *testing.T) {
	content := "// comment\n\n/* block\nstill block\n*/\ncode()\n"
	s := Analyze("a.js", content)

	if s.TotalLines != 6 {
		t.Errorf("total lines = %d, want 6", s.TotalLines)
	}
	if s.LOC != 1 {
		t.Errorf("LOC = %d, want 1 (only code())", s.LOC)
	}
}

func TestAnalyzeEmptyFile(t *testing.T) {
	s := Analyze("empty.go", "")
	if s.TotalLines != 0 || s.LOC != 0 || s.Complexity != 0 {
		t.Errorf("empty file produced non-zero metrics: %+v", s)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.go", "go"},
		{"a.CS", "csharp"},
		{"src/x.tsx", "typescript"},
		{"script.py", "python"},
		{"unknown.zzz", "text"},
		{"Makefile", "text"},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.path); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
