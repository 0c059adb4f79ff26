// Package staticanalysis computes per-file metrics without any model calls.
// The metrics feed the cluster builder and the rule-based phase of the code
// quality agent.
package staticanalysis

import (
	"bufio"
	"path/filepath"
	"strings"
)

// FileSummary is the metric set for one analyzable file.
type FileSummary struct {
	Path        string
	Language    string
	LOC         int
	TotalLines  int
	Complexity  int
	TypeCount   int
	MethodCount int

	// Embedding is an optional centroid vector attached by the pipeline
	// for similarity-based clustering.
	Embedding []float32

	// IsHighRisk is carried over from the file router's risk tagging.
	IsHighRisk bool
}

// Analyze computes metrics for a single file's content.
func Analyze(relPath, content string) FileSummary {
	summary := FileSummary{
		Path:     relPath,
		Language: DetectLanguage(relPath),
	}

	inBlockComment := false
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		summary.TotalLines++

		if line == "" {
			continue
		}
		if inBlockComment {
			if strings.Contains(line, "*/") {
				inBlockComment = false
			}
			continue
		}
		if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "/*") {
			if !strings.Contains(line, "*/") {
				inBlockComment = true
			}
			continue
		}

		summary.LOC++
		summary.Complexity += branchCount(line)
		if isTypeDeclaration(line) {
			summary.TypeCount++
		}
		if isMethodDeclaration(line, summary.Language) {
			summary.MethodCount++
		}
	}

	return summary
}

// branchKeywords are decision points counted toward cyclomatic complexity.
var branchKeywords = []string{
	"if ", "if(", "else if", "elif ", "for ", "for(", "foreach", "while ",
	"while(", "case ", "catch ", "catch(", "&&", "||", "?.",
}

// branchCount approximates the number of decision points on a line.
func branchCount(line string) int {
	count := 0
	for _, kw := range branchKeywords {
		count += strings.Count(line, kw)
	}
	return count
}

// typePrefixes mark lines that open a type declaration across the supported
// languages.
var typePrefixes = []string{
	"class ", "interface ", "struct ", "record ", "enum ", "trait ",
	"type ", "public class ", "public interface ", "public struct ",
	"public record ", "public enum ", "internal class ", "private class ",
	"abstract class ", "sealed class ", "export class ", "export interface ",
	"final class ",
}

func isTypeDeclaration(line string) bool {
	for _, p := range typePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// isMethodDeclaration reports whether a line looks like it opens a function
// or method. The check is language-aware only where the syntax is
// unambiguous; elsewhere a parenthesized-brace heuristic applies.
func isMethodDeclaration(line, language string) bool {
	switch language {
	case "go":
		return strings.HasPrefix(line, "func ")
	case "python":
		return strings.HasPrefix(line, "def ") || strings.HasPrefix(line, "async def ")
	case "rust":
		return strings.HasPrefix(line, "fn ") || strings.HasPrefix(line, "pub fn ") ||
			strings.HasPrefix(line, "async fn ") || strings.HasPrefix(line, "pub async fn ")
	case "javascript", "typescript":
		if strings.HasPrefix(line, "function ") || strings.HasPrefix(line, "async function ") {
			return true
		}
		return strings.Contains(line, "=>") && strings.Contains(line, "(")
	}

	// C-family fallback: a parameter list that is not a control-flow
	// statement, closed by a brace either on the same line or, for
	// modifier-prefixed declarations, on the next (Allman style).
	if !strings.Contains(line, "(") || !strings.Contains(line, ")") {
		return false
	}
	for _, kw := range []string{"if ", "if(", "for ", "for(", "foreach", "while ", "while(", "switch ", "switch(", "catch ", "catch(", "else", "using ", "lock ", "return ", "new ", "throw "} {
		if strings.HasPrefix(line, kw) {
			return false
		}
	}
	if strings.HasSuffix(line, "{") {
		return true
	}
	if strings.HasSuffix(line, ")") {
		for _, m := range []string{"public ", "private ", "protected ", "internal ", "static ", "override ", "virtual ", "async "} {
			if strings.HasPrefix(line, m) {
				return true
			}
		}
	}
	return false
}

// extLanguages maps file extensions to language names.
var extLanguages = map[string]string{
	".cs":     "csharp",
	".ts":     "typescript",
	".tsx":    "typescript",
	".js":     "javascript",
	".jsx":    "javascript",
	".py":     "python",
	".java":   "java",
	".go":     "go",
	".rs":     "rust",
	".cpp":    "cpp",
	".c":      "c",
	".h":      "c",
	".hpp":    "cpp",
	".rb":     "ruby",
	".php":    "php",
	".swift":  "swift",
	".kt":     "kotlin",
	".scala":  "scala",
	".vue":    "vue",
	".svelte": "svelte",
	".razor":  "razor",
	".cshtml": "razor",
	".fs":     "fsharp",
	".fsx":    "fsharp",
	".vb":     "vb",
	".lua":    "lua",
	".r":      "r",
	".jl":     "julia",
	".dart":   "dart",
	".elm":    "elm",
	".clj":    "clojure",
	".ex":     "elixir",
	".exs":    "elixir",
	".erl":    "erlang",
	".hrl":    "erlang",
	".json":   "json",
	".yaml":   "yaml",
	".yml":    "yaml",
	".xml":    "xml",
	".toml":   "toml",
}

// DetectLanguage returns the language name for a path, or "text" when the
// extension is unknown.
func DetectLanguage(path string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "text"
}
