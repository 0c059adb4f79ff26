// Package agents implements the four analysis agents: structure, code
// quality, security, and architecture advisor.
//
// Each agent inspects the extracted project tree independently and emits
// findings in the shared review model. Agents that consult a chat
// provider degrade to their local phases when no provider is available,
// so a run without an API key still produces rule-based results.
package agents

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/archlens/archlens/internal/review"
	"github.com/archlens/archlens/internal/router"
)

// Agent inspects an extracted project tree and reports findings.
type Agent interface {
	// Name returns the agent's stable identifier used in reports.
	Name() string

	// Analyze inspects the tree rooted at workingDir.
	Analyze(ctx context.Context, projectID, workingDir string) ([]review.Finding, error)
}

// maxScanBytes caps how much of a single file the agents read for local
// scanning. Files larger than this are analyzed through the retrieval
// pipeline instead.
const maxScanBytes = 1 << 20

// projectFile is one regular file discovered in the project tree.
type projectFile struct {
	RelPath  string
	AbsPath  string
	Name     string
	Ext      string
	Size     int64
	IsSource bool
	IsConfig bool
}

// walkFiles lists every regular file under workingDir, pruning the
// directories the router always excludes. Unlike the routing walk it
// keeps non-source files, so agents can inspect manifests, credentials,
// and build scripts.
func walkFiles(workingDir string) ([]projectFile, error) {
	var files []projectFile

	err := filepath.WalkDir(workingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != workingDir && router.ExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s; %w", path, err)
		}
		rel, err := filepath.Rel(workingDir, path)
		if err != nil {
			return fmt.Errorf("relativizing %s; %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		name := filepath.Base(rel)
		ext := router.NormalizeExt(rel)
		files = append(files, projectFile{
			RelPath:  rel,
			AbsPath:  path,
			Name:     name,
			Ext:      ext,
			Size:     info.Size(),
			IsSource: router.SourceExt(ext),
			IsConfig: router.ConfigFile(name, ext),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s; %w", workingDir, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// readCapped returns the file content, or ok=false when the file exceeds
// the scan cap or cannot be read.
func readCapped(absPath string, limit int64) (string, bool) {
	info, err := os.Stat(absPath)
	if err != nil || info.Size() > limit {
		return "", false
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", false
	}
	return string(content), true
}

// truncateForPrompt cuts content to at most n bytes on a line boundary.
func truncateForPrompt(content string, n int) string {
	if len(content) <= n {
		return content
	}
	cut := content[:n]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "\n... (truncated)"
}
