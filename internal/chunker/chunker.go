package chunker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/archlens/archlens/internal/metrics"
	"github.com/archlens/archlens/internal/staticanalysis"
	"github.com/archlens/archlens/internal/tokenizer"
)

// Config bounds chunk sizing.
type Config struct {
	// MaxChunkTokens caps a single chunk; larger units split into a
	// sliding window with OverlapTokens of carryover between windows.
	MaxChunkTokens int

	// MinChunkTokens is the preferred floor. Units below it still emit
	// one chunk so every non-empty file yields at least one.
	MinChunkTokens int

	OverlapTokens int

	// ParseBudget bounds tree-sitter parsing per file; past it the file
	// is chunked by sliding window alone.
	ParseBudget time.Duration
}

// DefaultConfig returns the production chunking bounds.
func DefaultConfig() Config {
	return Config{
		MaxChunkTokens: 1600,
		MinChunkTokens: 50,
		OverlapTokens:  100,
		ParseBudget:    30 * time.Second,
	}
}

// Chunker slices source files into semantic chunks.
type Chunker struct {
	cfg    Config
	count  func(string) int
	logger *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithTokenCounter overrides the token counting function. Tests use this
// to stay independent of the real encoding.
func WithTokenCounter(count func(string) int) Option {
	return func(c *Chunker) { c.count = count }
}

// WithLogger sets the chunker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) { c.logger = logger }
}

// New creates a Chunker. Token counts come from the shared tokenizer
// unless overridden; zero config fields fall back to defaults.
func New(cfg Config, opts ...Option) *Chunker {
	def := DefaultConfig()
	if cfg.MaxChunkTokens <= 0 {
		cfg.MaxChunkTokens = def.MaxChunkTokens
	}
	if cfg.MinChunkTokens <= 0 {
		cfg.MinChunkTokens = def.MinChunkTokens
	}
	if cfg.OverlapTokens <= 0 {
		cfg.OverlapTokens = def.OverlapTokens
	}
	if cfg.ParseBudget <= 0 {
		cfg.ParseBudget = def.ParseBudget
	}

	c := &Chunker{
		cfg:    cfg,
		count:  func(text string) int { return tokenizer.Shared().Count(text) },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChunkFile splits one file into ordered chunks. Indexes are contiguous
// from zero, TotalChunks matches the returned length, and any file with
// non-whitespace content yields at least one chunk. Whitespace-only
// content yields none.
func (c *Chunker) ChunkFile(ctx context.Context, projectID, relPath, content string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	start := time.Now()
	defer func() {
		metrics.ChunkingDuration.Observe(time.Since(start).Seconds())
	}()

	units := c.extractUnits(ctx, relPath, content)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("chunking canceled for %s; %w", relPath, err)
	}
	if len(units) == 0 {
		units = []semanticUnit{wholeFileUnit(relPath, content, SemanticTopLevel)}
	}

	var chunks []Chunk
	for _, u := range units {
		chunks = append(chunks, c.sizeUnit(u)...)
	}

	language := staticanalysis.DetectLanguage(relPath)
	base := filepath.Base(relPath)
	total := len(chunks)
	for i := range chunks {
		if chunks[i].SemanticType == "" {
			chunks[i].SemanticType = SemanticFile
		}
		if chunks[i].SemanticName == "" {
			chunks[i].SemanticName = base
		}
		chunks[i].ProjectID = projectID
		chunks[i].FilePath = relPath
		chunks[i].Language = language
		chunks[i].ChunkIndex = i
		chunks[i].TotalChunks = total
		chunks[i].TextHash = HashText(chunks[i].Text)
		chunks[i].ChunkHash = ComputeChunkHash(projectID, relPath, chunks[i].StartLine, chunks[i].EndLine, chunks[i].Text)
	}

	metrics.ChunksProducedTotal.WithLabelValues(language).Add(float64(total))
	return chunks, nil
}

// extractUnits picks the extraction path for a file: tree-sitter when the
// extension has a grammar, the brace/indent scan otherwise. Parser
// failures and budget overruns degrade to a single whole-file unit that
// the sliding window then splits.
func (c *Chunker) extractUnits(ctx context.Context, relPath, content string) []semanticUnit {
	strat := strategyForPath(relPath)
	if strat == nil {
		return scanUnits(content)
	}

	parseCtx, cancel := context.WithTimeout(ctx, c.cfg.ParseBudget)
	defer cancel()

	parser := sitter.NewParser()
	parser.SetLanguage(strat.sitterLang)
	source := []byte(content)

	tree, err := parser.ParseCtx(parseCtx, nil, source)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		metrics.ChunkerFallbacksTotal.Inc()
		c.logger.Warn("parse failed, falling back to sliding window",
			"path", relPath,
			"language", strat.language,
			"error", err,
		)
		return []semanticUnit{wholeFileUnit(relPath, content, SemanticFile)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		metrics.ChunkerFallbacksTotal.Inc()
		return []semanticUnit{wholeFileUnit(relPath, content, SemanticFile)}
	}
	if root.HasError() {
		c.logger.Debug("source contains parse errors", "path", relPath)
	}

	var units []semanticUnit
	c.collectUnits(root, source, strat, "", &units)
	return units
}

// collectUnits walks named children depth-first, emitting type and member
// units. A type that fits the token cap is kept whole and not descended
// into; an oversized type is broken into its members, with member names
// qualified by the enclosing type. An oversized type with no extractable
// members is emitted whole and left to the sliding window.
func (c *Chunker) collectUnits(node *sitter.Node, source []byte, strat *strategy, enclosing string, units *[]semanticUnit) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		kind, isType, ok := strat.unitKind(child)
		if !ok {
			c.collectUnits(child, source, strat, enclosing, units)
			continue
		}

		text := string(source[child.StartByte():child.EndByte()])
		if strings.TrimSpace(text) == "" {
			continue
		}
		name := declaredName(child, source)

		if isType && c.count(text) > c.cfg.MaxChunkTokens {
			before := len(*units)
			c.collectUnits(child, source, strat, qualifyName(enclosing, name), units)
			if len(*units) > before {
				continue
			}
		}

		*units = append(*units, semanticUnit{
			kind:      kind,
			name:      qualifyName(enclosing, name),
			startLine: int(child.StartPoint().Row) + 1,
			endLine:   int(child.EndPoint().Row) + 1,
			text:      text,
		})
	}
}

func qualifyName(enclosing, name string) string {
	if enclosing == "" || name == "" {
		return name
	}
	return enclosing + "." + name
}

// sizeUnit turns one semantic unit into chunks. Units within the cap emit
// one chunk regardless of the minimum so the unit boundary survives.
func (c *Chunker) sizeUnit(u semanticUnit) []Chunk {
	tokens := c.count(u.text)
	if tokens <= c.cfg.MaxChunkTokens {
		return []Chunk{{
			StartLine:    u.startLine,
			EndLine:      u.endLine,
			SemanticType: u.kind,
			SemanticName: u.name,
			TokenCount:   tokens,
			Text:         u.text,
		}}
	}
	return c.slideWindows(u)
}

// slideWindows splits an oversized unit into line-accumulated windows. A
// window closes when the next line would push it past the cap; the next
// window rewinds far enough to carry roughly OverlapTokens of context
// without losing forward progress.
func (c *Chunker) slideWindows(u semanticUnit) []Chunk {
	lines := strings.Split(u.text, "\n")
	lineTokens := make([]int, len(lines))
	for i, line := range lines {
		lineTokens[i] = c.count(line)
	}

	var out []Chunk
	emit := func(start, end int) {
		text := strings.Join(lines[start:end+1], "\n")
		out = append(out, Chunk{
			StartLine:    u.startLine + start,
			EndLine:      u.startLine + end,
			SemanticType: u.kind,
			SemanticName: u.name,
			TokenCount:   c.count(text),
			Text:         text,
		})
	}

	start := 0
	tokens := 0
	for i := range lines {
		if tokens > 0 && tokens+lineTokens[i] > c.cfg.MaxChunkTokens {
			emit(start, i-1)

			back := i
			carried := 0
			for back > start && carried+lineTokens[back-1] <= c.cfg.OverlapTokens {
				back--
				carried += lineTokens[back]
			}
			start = back
			tokens = carried
		}
		tokens += lineTokens[i]
	}
	emit(start, len(lines)-1)
	return out
}

func wholeFileUnit(relPath, content, kind string) semanticUnit {
	return semanticUnit{
		kind:      kind,
		name:      filepath.Base(relPath),
		startLine: 1,
		endLine:   strings.Count(content, "\n") + 1,
		text:      content,
	}
}
