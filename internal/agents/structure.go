package agents

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/archlens/archlens/internal/review"
)

// StructureAgent inspects project layout: frameworks declared in
// manifests, architectural patterns signaled by directory names, and
// missing engineering scaffolding (tests, Docker, CI).
type StructureAgent struct {
	logger *slog.Logger
}

// NewStructureAgent creates a structure agent.
func NewStructureAgent(logger *slog.Logger) *StructureAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructureAgent{logger: logger}
}

// Name returns the agent's stable identifier used in reports.
func (a *StructureAgent) Name() string {
	return "structure"
}

// Analyze inspects the tree rooted at workingDir.
func (a *StructureAgent) Analyze(ctx context.Context, projectID, workingDir string) ([]review.Finding, error) {
	files, err := walkFiles(workingDir)
	if err != nil {
		return nil, fmt.Errorf("structure agent walk failed; %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var findings []review.Finding

	frameworks := detectFrameworks(files)
	if len(frameworks) > 0 {
		findings = append(findings, review.Finding{
			Category:    string(review.CategoryStructure),
			Severity:    string(review.SeverityInfo),
			Description: "Detected frameworks: " + strings.Join(frameworks, ", "),
			Confidence:  1.0,
		})
	}

	if pattern := detectArchitecture(files); pattern != "" {
		findings = append(findings, review.Finding{
			Category:    string(review.CategoryArchitecture),
			Severity:    string(review.SeverityInfo),
			Description: fmt.Sprintf("Project layout follows a %s structure", pattern),
			Confidence:  0.8,
		})
	}

	findings = append(findings, a.scaffoldingFindings(files)...)

	a.logger.Debug("structure agent finished",
		"project_id", projectID,
		"files", len(files),
		"findings", len(findings))
	return findings, nil
}

// scaffoldingFindings flags missing tests, container support, and CI.
func (a *StructureAgent) scaffoldingFindings(files []projectFile) []review.Finding {
	hasTests := false
	hasDocker := false
	hasCI := false
	hasSource := false

	for _, f := range files {
		if f.IsSource {
			hasSource = true
		}
		if isTestPath(f.RelPath) {
			hasTests = true
		}
		lower := strings.ToLower(f.Name)
		if lower == "dockerfile" || strings.HasPrefix(lower, "dockerfile.") ||
			lower == "docker-compose.yml" || lower == "docker-compose.yaml" {
			hasDocker = true
		}
		if isCIPath(f.RelPath) {
			hasCI = true
		}
	}

	var findings []review.Finding
	if hasSource && !hasTests {
		findings = append(findings, review.Finding{
			Category:    string(review.CategoryTesting),
			Severity:    string(review.SeverityMedium),
			Description: "No test files found in the project",
			Explanation: "Automated tests catch regressions before they ship. Add a test suite alongside the source tree.",
			Confidence:  0.9,
		})
	}
	if hasSource && !hasDocker {
		findings = append(findings, review.Finding{
			Category:    string(review.CategoryBestPractice),
			Severity:    string(review.SeverityInfo),
			Description: "No Dockerfile or compose file found",
			Explanation: "Container definitions make builds reproducible across environments.",
			Confidence:  0.8,
		})
	}
	if hasSource && !hasCI {
		findings = append(findings, review.Finding{
			Category:    string(review.CategoryBestPractice),
			Severity:    string(review.SeverityLow),
			Description: "No continuous integration configuration found",
			Explanation: "A CI pipeline runs the build and tests on every change.",
			Confidence:  0.8,
		})
	}
	return findings
}

// isTestPath reports whether the path names a test file or lives in a
// test directory.
func isTestPath(relPath string) bool {
	lower := strings.ToLower(relPath)
	for _, seg := range strings.Split(path.Dir(lower), "/") {
		switch seg {
		case "test", "tests", "__tests__", "spec", "specs", "testing":
			return true
		}
	}

	base := path.Base(lower)
	return strings.Contains(base, "_test.") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasSuffix(base, "test.cs") ||
		strings.HasSuffix(base, "tests.cs") ||
		strings.HasSuffix(base, "test.java") ||
		strings.HasPrefix(base, "test_")
}

// isCIPath reports whether the path belongs to a CI configuration.
func isCIPath(relPath string) bool {
	if strings.HasPrefix(relPath, ".github/workflows/") ||
		strings.HasPrefix(relPath, ".circleci/") {
		return true
	}
	switch path.Base(relPath) {
	case ".gitlab-ci.yml", "azure-pipelines.yml", "Jenkinsfile", ".travis.yml":
		return true
	}
	return false
}

// detectArchitecture matches the directory tree against known layout
// signatures. The most specific match wins.
func detectArchitecture(files []projectFile) string {
	segments := make(map[string]bool)
	for _, f := range files {
		for _, seg := range strings.Split(path.Dir(strings.ToLower(f.RelPath)), "/") {
			segments[seg] = true
		}
	}
	hasAny := func(names ...string) bool {
		for _, n := range names {
			if segments[n] {
				return true
			}
		}
		return false
	}

	switch {
	case hasAny("domain", "entities") && hasAny("usecases", "usecase", "application") &&
		hasAny("infrastructure", "adapters", "interfaces"):
		return "Clean Architecture"
	case segments["models"] && segments["views"] && segments["controllers"]:
		return "MVC"
	case segments["services"] && hasAny("api", "handlers", "controllers", "endpoints"):
		return "Service-Oriented"
	}
	return ""
}

// detectFrameworks reads the manifests present in the tree and returns
// the frameworks they declare, sorted and deduplicated.
func detectFrameworks(files []projectFile) []string {
	found := make(map[string]bool)

	for _, f := range files {
		switch {
		case f.Name == "package.json":
			content, ok := readCapped(f.AbsPath, maxScanBytes)
			if ok {
				for _, fw := range frameworksFromPackageJSON(content) {
					found[fw] = true
				}
			}
		case f.Name == "pyproject.toml":
			content, ok := readCapped(f.AbsPath, maxScanBytes)
			if ok {
				for _, fw := range frameworksFromPyproject(content) {
					found[fw] = true
				}
			}
		case f.Name == "Cargo.toml":
			content, ok := readCapped(f.AbsPath, maxScanBytes)
			if ok {
				for _, fw := range frameworksFromCargo(content) {
					found[fw] = true
				}
			}
		case f.Ext == ".csproj":
			content, ok := readCapped(f.AbsPath, maxScanBytes)
			if ok {
				for _, fw := range frameworksFromCsproj(content) {
					found[fw] = true
				}
			}
		case f.Name == "go.mod":
			content, ok := readCapped(f.AbsPath, maxScanBytes)
			if ok {
				for _, fw := range frameworksFromGoMod(content) {
					found[fw] = true
				}
			}
		}
	}

	out := make([]string, 0, len(found))
	for fw := range found {
		out = append(out, fw)
	}
	sort.Strings(out)
	return out
}

// jsFrameworks maps npm package names to framework labels.
var jsFrameworks = map[string]string{
	"react":         "React",
	"vue":           "Vue",
	"@angular/core": "Angular",
	"express":       "Express",
	"next":          "Next.js",
	"svelte":        "Svelte",
	"@nestjs/core":  "NestJS",
	"fastify":       "Fastify",
}

func frameworksFromPackageJSON(content string) []string {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &manifest); err != nil {
		return nil
	}

	var out []string
	for pkg, label := range jsFrameworks {
		if _, ok := manifest.Dependencies[pkg]; ok {
			out = append(out, label)
			continue
		}
		if _, ok := manifest.DevDependencies[pkg]; ok {
			out = append(out, label)
		}
	}
	return out
}

// pyFrameworks maps Python distribution names to framework labels.
var pyFrameworks = map[string]string{
	"django":  "Django",
	"flask":   "Flask",
	"fastapi": "FastAPI",
	"tornado": "Tornado",
}

func frameworksFromPyproject(content string) []string {
	var manifest struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal([]byte(content), &manifest); err != nil {
		return nil
	}

	deps := make(map[string]bool)
	for _, d := range manifest.Project.Dependencies {
		name := strings.ToLower(d)
		for _, sep := range []string{">", "<", "=", "~", "!", "[", " ", ";"} {
			if idx := strings.Index(name, sep); idx > 0 {
				name = name[:idx]
			}
		}
		deps[strings.TrimSpace(name)] = true
	}
	for d := range manifest.Tool.Poetry.Dependencies {
		deps[strings.ToLower(d)] = true
	}

	var out []string
	for dist, label := range pyFrameworks {
		if deps[dist] {
			out = append(out, label)
		}
	}
	return out
}

// rustFrameworks maps crate names to framework labels.
var rustFrameworks = map[string]string{
	"actix-web": "Actix Web",
	"rocket":    "Rocket",
	"axum":      "Axum",
	"warp":      "Warp",
}

func frameworksFromCargo(content string) []string {
	var manifest struct {
		Dependencies map[string]any `toml:"dependencies"`
	}
	if err := toml.Unmarshal([]byte(content), &manifest); err != nil {
		return nil
	}

	var out []string
	for crate, label := range rustFrameworks {
		if _, ok := manifest.Dependencies[crate]; ok {
			out = append(out, label)
		}
	}
	return out
}

func frameworksFromCsproj(content string) []string {
	var manifest struct {
		ItemGroups []struct {
			PackageReferences []struct {
				Include string `xml:"Include,attr"`
			} `xml:"PackageReference"`
		} `xml:"ItemGroup"`
	}
	if err := xml.Unmarshal([]byte(content), &manifest); err != nil {
		return nil
	}

	found := make(map[string]bool)
	for _, group := range manifest.ItemGroups {
		for _, ref := range group.PackageReferences {
			switch {
			case strings.HasPrefix(ref.Include, "Microsoft.AspNetCore"):
				found["ASP.NET Core"] = true
			case strings.HasPrefix(ref.Include, "Microsoft.EntityFrameworkCore"):
				found["Entity Framework Core"] = true
			case ref.Include == "Newtonsoft.Json":
				found["Newtonsoft.Json"] = true
			}
		}
	}

	out := make([]string, 0, len(found))
	for fw := range found {
		out = append(out, fw)
	}
	return out
}

// goFrameworks maps module path fragments to framework labels.
var goFrameworks = map[string]string{
	"github.com/gin-gonic/gin": "Gin",
	"github.com/labstack/echo": "Echo",
	"github.com/go-chi/chi":    "chi",
	"github.com/gofiber/fiber": "Fiber",
	"github.com/gorilla/mux":   "Gorilla Mux",
	"github.com/spf13/cobra":   "Cobra",
}

func frameworksFromGoMod(content string) []string {
	found := make(map[string]bool)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "require ")
		for modPath, label := range goFrameworks {
			if strings.HasPrefix(line, modPath+" ") || strings.HasPrefix(line, modPath+"/") {
				found[label] = true
			}
		}
	}

	out := make([]string, 0, len(found))
	for fw := range found {
		out = append(out, fw)
	}
	return out
}
