package agents

// findingsSchemaPrompt is appended to every model prompt so responses
// parse with ParseFindings regardless of which agent asked.
const findingsSchemaPrompt = `Respond with only a JSON array of finding objects. No prose before or after. Each object has these fields:
  "file_path": string, repository-relative path ("" if not file specific)
  "symbol": string, affected type or function ("" if none)
  "line_start": integer, first affected line (0 if unknown)
  "line_end": integer, last affected line (0 if unknown)
  "category": one of "Architecture", "Security", "Performance", "Maintainability", "CodeQuality", "Testing", "Documentation", "BestPractice", "Complexity", "Structure", "Other"
  "severity": one of "Critical", "High", "Medium", "Low", "Info"
  "description": string, one sentence stating the issue
  "explanation": string, why it matters and what the impact is
  "suggested_fix": string, concrete remediation ("" if none)
  "confidence": number between 0.0 and 1.0

Return [] if there is nothing to report.`
