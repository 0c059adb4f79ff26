package chunker

import "strings"

// semanticUnit is an extracted declaration span before token sizing.
type semanticUnit struct {
	kind      string
	name      string
	startLine int // 1-based, inclusive
	endLine   int
	text      string
}

// classOpeners and funcOpeners match declaration keywords for languages
// without a registered grammar. Prefixes sharing a stem are ordered longest
// first so the longer form wins.
var classOpeners = []struct{ prefix, kind string }{
	{"class ", SemanticClass},
	{"struct ", SemanticStruct},
	{"interface ", SemanticInterface},
	{"module ", SemanticClass},
	{"trait ", SemanticInterface},
	{"impl ", SemanticClass},
	{"object ", SemanticClass},
	{"defmodule ", SemanticClass},
}

var funcOpeners = []string{
	"pub fn ",
	"fn ",
	"defp ",
	"def ",
	"func ",
	"local function ",
	"function ",
	"fun ",
	"sub ",
}

// scanUnits extracts class- and function-shaped blocks from a source file
// with no registered grammar. Brace-delimited blocks are tracked by depth;
// otherwise a block runs while lines stay indented past the opener.
func scanUnits(content string) []semanticUnit {
	lines := strings.Split(content, "\n")
	braces := strings.Contains(content, "{")

	var units []semanticUnit
	for i := 0; i < len(lines); {
		kind, name, ok := unitOpener(lines[i])
		if !ok {
			i++
			continue
		}
		var end int
		if braces {
			end = braceBlockEnd(lines, i)
		} else {
			end = indentBlockEnd(lines, i)
		}
		units = append(units, semanticUnit{
			kind:      kind,
			name:      name,
			startLine: i + 1,
			endLine:   end + 1,
			text:      strings.Join(lines[i:end+1], "\n"),
		})
		i = end + 1
	}
	return units
}

// unitOpener reports whether a line opens a declaration block.
func unitOpener(line string) (kind, name string, ok bool) {
	trimmed := strings.TrimSpace(line)
	for _, o := range classOpeners {
		if strings.HasPrefix(trimmed, o.prefix) {
			return o.kind, declarationName(trimmed[len(o.prefix):]), true
		}
	}
	for _, p := range funcOpeners {
		if strings.HasPrefix(trimmed, p) {
			return SemanticMethod, declarationName(trimmed[len(p):]), true
		}
	}

	// C-style: a parameter list closed by an opening brace on a line that
	// is not control flow.
	if strings.Contains(trimmed, "(") && strings.Contains(trimmed, ")") && strings.HasSuffix(trimmed, "{") {
		for _, kw := range []string{"if", "for", "foreach", "while", "switch", "catch", "do", "else", "return"} {
			if trimmed == kw || strings.HasPrefix(trimmed, kw+" ") || strings.HasPrefix(trimmed, kw+"(") {
				return "", "", false
			}
		}
		head := trimmed[:strings.Index(trimmed, "(")]
		fields := strings.Fields(head)
		if len(fields) == 0 {
			return "", "", false
		}
		name = strings.TrimLeft(fields[len(fields)-1], "*&")
		if name == "" {
			return "", "", false
		}
		return SemanticMethod, name, true
	}
	return "", "", false
}

// declarationName cuts the identifier out of the text following a
// declaration keyword.
func declarationName(rest string) string {
	end := len(rest)
	for i, r := range rest {
		if r == ' ' || r == '\t' || r == '(' || r == '{' || r == ':' || r == '<' || r == ';' {
			end = i
			break
		}
	}
	return strings.TrimSpace(rest[:end])
}

// braceBlockEnd returns the index of the line on which the block opened at
// start closes. An opener that never produces a brace within a few lines
// collapses to the opener line alone.
func braceBlockEnd(lines []string, start int) int {
	depth := 0
	opened := false
	for j := start; j < len(lines); j++ {
		for _, r := range lines[j] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		if opened && depth <= 0 {
			return j
		}
		if !opened && j-start >= 3 {
			return start
		}
	}
	return len(lines) - 1
}

// indentBlockEnd returns the last line of an indentation-delimited block.
// A trailing "end" at the opener's level is included so Ruby-style blocks
// stay whole.
func indentBlockEnd(lines []string, start int) int {
	base := indentWidth(lines[start])
	last := start
	for j := start + 1; j < len(lines); j++ {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" {
			continue
		}
		if indentWidth(lines[j]) > base {
			last = j
			continue
		}
		if trimmed == "end" {
			return j
		}
		break
	}
	return last
}

func indentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}
