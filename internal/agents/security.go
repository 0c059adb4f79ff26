package agents

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/archlens/archlens/internal/llm"
	"github.com/archlens/archlens/internal/review"
)

// vulnPattern is one entry in the static vulnerability catalog.
type vulnPattern struct {
	name        string
	severity    review.Severity
	rx          *regexp.Regexp
	description string
	explanation string
	confidence  float64
}

// vulnCatalog is scanned line by line against every source file. The
// patterns favor precision over recall; the targeted model pass covers
// the subtler cases.
var vulnCatalog = []vulnPattern{
	{
		name:        "sql_injection",
		severity:    review.SeverityHigh,
		rx:          regexp.MustCompile(`(?i)\b(select|insert|update|delete)\b[^\n]{0,120}(["']\s*\+\s*\w|\+\s*["']|%s|\$\{|\{\d\})`),
		description: "Possible SQL injection: query text built by string concatenation",
		explanation: "User input concatenated into SQL can change the statement. Use parameterized queries.",
		confidence:  0.7,
	},
	{
		name:        "hardcoded_secret",
		severity:    review.SeverityHigh,
		rx:          regexp.MustCompile(`(?i)\b(password|passwd|secret|api[_-]?key|access[_-]?token|private[_-]?key)\b\s*[:=]\s*["'][^"'\s]{6,}["']`),
		description: "Possible hardcoded credential",
		explanation: "Secrets in source end up in version control and build artifacts. Load them from the environment or a secret store.",
		confidence:  0.65,
	},
	{
		name:        "weak_crypto",
		severity:    review.SeverityMedium,
		rx:          regexp.MustCompile(`(?i)\b(md5|sha1)\s*[.(]|\bDES\b|\bRC4\b|MODE_ECB|/ECB/`),
		description: "Weak cryptographic primitive in use",
		explanation: "MD5, SHA-1, DES, RC4 and ECB mode are broken for security purposes. Use SHA-256+ and an AEAD cipher.",
		confidence:  0.7,
	},
	{
		name:        "insecure_randomness",
		severity:    review.SeverityMedium,
		rx:          regexp.MustCompile(`(?i)(math/rand|Math\.random\(\)|random\.random\(\)|new Random\(\))[^\n]{0,80}(token|secret|password|key|nonce|session)|(?i)(token|secret|password|key|nonce|session)[^\n]{0,80}(math/rand|Math\.random\(\)|random\.random\(\)|new Random\(\))`),
		description: "Non-cryptographic randomness used for a security value",
		explanation: "Predictable random sources make tokens guessable. Use the platform's CSPRNG.",
		confidence:  0.6,
	},
	{
		name:        "path_traversal",
		severity:    review.SeverityHigh,
		rx:          regexp.MustCompile(`(?i)(open|readfile|read_file|include|require|sendfile|createreadstream)\s*\([^)]{0,80}\+[^)]{0,80}\)|\.\./\.\./`),
		description: "Possible path traversal: file path built from variables",
		explanation: "Unvalidated path components can escape the intended directory. Normalize and verify the prefix before use.",
		confidence:  0.5,
	},
	{
		name:        "command_injection",
		severity:    review.SeverityHigh,
		rx:          regexp.MustCompile(`(?i)\b(exec|execSync|system|popen|shell_exec|spawn|eval)\s*\([^)]{0,100}(\+\s*\w|%s|\$\{|f["'])`),
		description: "Possible command injection: shell command built from variables",
		explanation: "Interpolating input into shell commands lets attackers run arbitrary programs. Pass arguments as a vector, not a string.",
		confidence:  0.65,
	},
	{
		name:        "xss",
		severity:    review.SeverityMedium,
		rx:          regexp.MustCompile(`(?i)\.innerHTML\s*=|document\.write\s*\(|dangerouslySetInnerHTML|v-html=|\|\s*safe\s*\}\}`),
		description: "Possible cross-site scripting sink",
		explanation: "Writing unescaped data into the DOM executes attacker markup. Use text APIs or framework escaping.",
		confidence:  0.6,
	},
	{
		name:        "insecure_deserialization",
		severity:    review.SeverityHigh,
		rx:          regexp.MustCompile(`(?i)pickle\.loads?\s*\(|yaml\.load\s*\([^)]*\)|unserialize\s*\(|ObjectInputStream|BinaryFormatter|Marshal\.load`),
		description: "Insecure deserialization of untrusted data",
		explanation: "These deserializers can instantiate arbitrary types. Use a safe loader or a schema-bound format.",
		confidence:  0.7,
	},
	{
		name:        "debug_code",
		severity:    review.SeverityLow,
		rx:          regexp.MustCompile(`(?i)\bdebug\s*=\s*true\b|\bDEBUG\s*=\s*True\b|console\.log\s*\(|printStackTrace\s*\(|var_dump\s*\(|\bdebugger;`),
		description: "Debug code left in place",
		explanation: "Debug output can leak internals in production. Route diagnostics through the logger and strip debug flags.",
		confidence:  0.5,
	},
	{
		name:        "tls_verification_disabled",
		severity:    review.SeverityHigh,
		rx:          regexp.MustCompile(`(?i)InsecureSkipVerify\s*:\s*true|verify\s*=\s*False|rejectUnauthorized\s*:\s*false|CURLOPT_SSL_VERIFYPEER\s*,\s*(false|0)|NODE_TLS_REJECT_UNAUTHORIZED`),
		description: "TLS certificate verification disabled",
		explanation: "Skipping certificate checks allows man-in-the-middle interception. Trust the real CA chain instead.",
		confidence:  0.85,
	},
	{
		name:        "exposed_endpoint",
		severity:    review.SeverityMedium,
		rx:          regexp.MustCompile(`(?i)(handle|route|get|post|map)\w*\s*\(\s*["'][^"']*(admin|debug|internal|console)[^"']*["']`),
		description: "Administrative or debug endpoint registered",
		explanation: "Admin and debug routes need authentication and should not ship exposed by default.",
		confidence:  0.5,
	},
}

// sensitiveNames match files that should not be committed at all.
var sensitiveNames = []string{"id_rsa", "id_dsa", "id_ecdsa", "id_ed25519", ".env", "secrets.json", ".npmrc", ".netrc"}

// sensitiveExts match key material by extension.
var sensitiveExts = map[string]bool{".pem": true, ".key": true, ".pfx": true, ".p12": true, ".jks": true}

// configSecretRx flags secret-looking assignments in configuration files.
var configSecretRx = regexp.MustCompile(`(?i)\b(password|passwd|secret|api[_-]?key|token|connectionstring)\b["']?\s*[:=]\s*["']?([^"'\s,}{]+)`)

// placeholderValueRx matches values that are clearly not real secrets.
var placeholderValueRx = regexp.MustCompile(`^(\$\{.*\}|\$\(.*\)|<.*>|%.*%|\{\{.*\}\}|(?i)(changeme|placeholder|example|your[_-].*|xxx+|\*{3,}|null|true|false|none))$`)

// securityKeywordRx selects files for the targeted model pass.
var securityKeywordRx = regexp.MustCompile(`(?i)(auth|login|password|security|crypto|token|session|oauth|jwt|acl|permission)`)

// SecurityAgent scans for known vulnerability patterns, committed
// secrets, and risky configuration, then runs a targeted model pass
// over authentication and crypto related files.
type SecurityAgent struct {
	provider  llm.ChatProvider
	retriever Retriever
	logger    *slog.Logger

	// maxTargetedFiles caps the files included in the model pass.
	maxTargetedFiles int
}

// SecurityOption configures the security agent.
type SecurityOption func(*SecurityAgent)

// WithSecurityRetriever adds similarity-retrieved context to the
// targeted model pass.
func WithSecurityRetriever(r Retriever) SecurityOption {
	return func(a *SecurityAgent) {
		a.retriever = r
	}
}

// NewSecurityAgent creates a security agent. A nil or unavailable
// provider limits the agent to its pattern-based phases.
func NewSecurityAgent(provider llm.ChatProvider, logger *slog.Logger, opts ...SecurityOption) *SecurityAgent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &SecurityAgent{provider: provider, logger: logger, maxTargetedFiles: 4}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the agent's stable identifier used in reports.
func (a *SecurityAgent) Name() string {
	return "security"
}

// Analyze inspects the tree rooted at workingDir.
func (a *SecurityAgent) Analyze(ctx context.Context, projectID, workingDir string) ([]review.Finding, error) {
	files, err := walkFiles(workingDir)
	if err != nil {
		return nil, fmt.Errorf("security agent walk failed; %w", err)
	}

	var findings []review.Finding
	var targeted []projectFile

	for _, f := range files {
		if ctx.Err() != nil {
			return findings, ctx.Err()
		}

		if finding, ok := sensitiveFileFinding(f); ok {
			findings = append(findings, finding)
			continue
		}

		if f.IsSource {
			content, ok := readCapped(f.AbsPath, maxScanBytes)
			if ok {
				findings = append(findings, scanSource(f.RelPath, content)...)
			}
			if securityKeywordRx.MatchString(f.RelPath) && len(targeted) < a.maxTargetedFiles {
				targeted = append(targeted, f)
			}
			continue
		}

		if f.IsConfig {
			content, ok := readCapped(f.AbsPath, maxScanBytes)
			if ok {
				findings = append(findings, scanConfigSecrets(f.RelPath, content)...)
			}
		}
	}

	if a.provider != nil && a.provider.Available() && len(targeted) > 0 {
		modelFindings, err := a.targetedPass(ctx, projectID, workingDir, targeted)
		if err != nil {
			a.logger.Warn("targeted security pass failed", "error", err)
		} else {
			findings = append(findings, modelFindings...)
		}
	}

	a.logger.Debug("security agent finished",
		"project_id", projectID,
		"files", len(files),
		"findings", len(findings))
	return findings, nil
}

// scanSource applies the vulnerability catalog line by line.
func scanSource(relPath, content string) []review.Finding {
	var findings []review.Finding
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if len(line) > 2000 {
			continue
		}
		for _, p := range vulnCatalog {
			if !p.rx.MatchString(line) {
				continue
			}
			findings = append(findings, review.Finding{
				FilePath:    relPath,
				LineStart:   i + 1,
				LineEnd:     i + 1,
				Category:    string(review.CategorySecurity),
				Severity:    string(p.severity),
				Description: p.description,
				Explanation: p.explanation,
				Confidence:  p.confidence,
			})
		}
	}
	return findings
}

// sensitiveFileFinding flags committed key material and secret stores.
func sensitiveFileFinding(f projectFile) (review.Finding, bool) {
	lower := strings.ToLower(f.Name)
	match := sensitiveExts[f.Ext]
	if !match {
		for _, name := range sensitiveNames {
			if lower == name {
				match = true
				break
			}
		}
	}
	if !match && strings.HasPrefix(lower, "appsettings.") && strings.HasSuffix(lower, ".json") && lower != "appsettings.json" {
		match = true
	}
	if !match {
		return review.Finding{}, false
	}

	return review.Finding{
		FilePath:    f.RelPath,
		Category:    string(review.CategorySecurity),
		Severity:    string(review.SeverityHigh),
		Description: fmt.Sprintf("Sensitive file committed to the repository: %s", path.Base(f.RelPath)),
		Explanation: "Key material and environment files belong in a secret store, not version control.",
		Confidence:  0.9,
	}, true
}

// scanConfigSecrets flags plausible secrets in configuration files,
// ignoring placeholder values.
func scanConfigSecrets(relPath, content string) []review.Finding {
	var findings []review.Finding
	for i, line := range strings.Split(content, "\n") {
		if len(line) > 2000 {
			continue
		}
		m := configSecretRx.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := strings.Trim(m[2], `"'`)
		if len(value) < 6 || placeholderValueRx.MatchString(value) {
			continue
		}
		findings = append(findings, review.Finding{
			FilePath:    relPath,
			LineStart:   i + 1,
			LineEnd:     i + 1,
			Category:    string(review.CategorySecurity),
			Severity:    string(review.SeverityMedium),
			Description: fmt.Sprintf("Configuration file sets %s to a literal value", strings.ToLower(m[1])),
			Explanation: "Configuration committed with real credentials leaks them to everyone with repository access.",
			Confidence:  0.55,
		})
	}
	return findings
}

// targetedPass sends the security-relevant files to the model in one
// combined prompt, with similarity-retrieved neighbors when a retriever
// is wired.
func (a *SecurityAgent) targetedPass(ctx context.Context, projectID, workingDir string, targeted []projectFile) ([]review.Finding, error) {
	var sb strings.Builder
	sb.WriteString("Review these security-sensitive files for vulnerabilities: authentication flaws, broken access control, injection, weak cryptography, and secret handling.\n")

	for _, f := range targeted {
		content, ok := readCapped(f.AbsPath, maxScanBytes)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\nFile: %s\n```\n%s\n```\n", f.RelPath, truncateForPrompt(content, 8*1024))
	}

	if extra := retrievedContext(ctx, a.retriever, a.logger, projectID, workingDir, securityQuery(targeted)); extra != "" {
		sb.WriteString("\n")
		sb.WriteString(extra)
	}

	sb.WriteString("\n")
	sb.WriteString(findingsSchemaPrompt)

	raw, err := a.provider.Complete(ctx, sb.String(), "security-targeted")
	if err != nil {
		return nil, err
	}
	return ParseFindings(raw)
}

// securityQuery builds the retrieval query for the targeted pass from
// the selected paths plus the themes the pass reviews.
func securityQuery(targeted []projectFile) string {
	parts := []string{"authentication authorization session token secret cryptography"}
	for _, f := range targeted {
		parts = append(parts, f.RelPath)
	}
	return strings.Join(parts, " ")
}
