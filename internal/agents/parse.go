package agents

import (
	"encoding/json"
	"fmt"

	"github.com/archlens/archlens/internal/review"
)

// minOrphanConfidence is the confidence floor for findings that name
// neither a file nor a symbol.
const minOrphanConfidence = 0.3

// ParseFindings extracts the outermost JSON array from a model response
// and decodes it into normalized findings. The scan tolerates prose and
// code fences around the array; elements that fail to decode are
// skipped. Severity and category are resolved to the closed enums, and
// findings naming neither a file nor a symbol are dropped below the
// confidence floor.
func ParseFindings(raw string) ([]review.Finding, error) {
	arr, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &elements); err != nil {
		return nil, fmt.Errorf("response array does not decode; %w", err)
	}

	findings := make([]review.Finding, 0, len(elements))
	for _, el := range elements {
		var f review.Finding
		if err := json.Unmarshal(el, &f); err != nil {
			continue
		}

		f.Severity = string(review.NormalizeSeverity(f.Severity))
		f.Category = string(review.NormalizeCategory(f.Category))
		if f.Confidence < 0 {
			f.Confidence = 0
		}
		if f.Confidence > 1 {
			f.Confidence = 1
		}

		if f.FilePath == "" && f.Symbol == "" && f.Confidence < minOrphanConfidence {
			continue
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// extractJSONArray returns the first balanced top-level [...] block in
// raw that decodes as JSON. Bracket depth is tracked outside string
// literals so paths and prose containing brackets do not break the scan.
func extractJSONArray(raw string) (string, error) {
	for start := 0; start < len(raw); start++ {
		if raw[start] != '[' {
			continue
		}

		end, ok := matchBracket(raw, start)
		if !ok {
			continue
		}
		candidate := raw[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no JSON array found in response of %d bytes", len(raw))
}

// matchBracket returns the index of the ']' closing the '[' at start.
func matchBracket(raw string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
