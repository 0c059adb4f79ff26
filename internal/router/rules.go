package router

import (
	"path/filepath"
	"strings"
)

// excludedDirs are path segments that exclude a file wherever they appear.
var excludedDirs = map[string]struct{}{
	"node_modules": {}, "bin": {}, "obj": {}, ".git": {}, ".vs": {},
	".idea": {}, ".vscode": {}, "packages": {}, "dist": {}, "build": {},
	"__pycache__": {}, ".venv": {}, "venv": {}, "coverage": {},
	".nyc_output": {}, "TestResults": {}, ".nuget": {}, "vendor": {},
	".gradle": {}, "target": {}, "out": {}, ".next": {}, ".cache": {},
}

// binaryExts are extensions never analyzed regardless of size.
var binaryExts = map[string]struct{}{
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {}, ".o": {},
	".obj": {}, ".a": {}, ".lib": {}, ".pdb": {}, ".class": {}, ".jar": {},
	".war": {}, ".pyc": {}, ".pyo": {}, ".wasm": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {},
	".webp": {}, ".tiff": {}, ".svg": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".rar": {}, ".7z": {},
	".bz2": {}, ".xz": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wav": {}, ".flac": {},
	".mkv": {}, ".ogg": {},
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {}, ".eot": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {},
	".db": {}, ".sqlite": {}, ".sqlite3": {}, ".mdf": {}, ".ldf": {},
	".iso": {}, ".img": {}, ".dat": {},
}

// sourceExts are extensions treated as analyzable source code.
var sourceExts = map[string]struct{}{
	".cs": {}, ".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {}, ".py": {},
	".java": {}, ".go": {}, ".rs": {}, ".cpp": {}, ".c": {}, ".h": {},
	".hpp": {}, ".rb": {}, ".php": {}, ".swift": {}, ".kt": {},
	".scala": {}, ".vue": {}, ".svelte": {}, ".razor": {}, ".cshtml": {},
	".fs": {}, ".fsx": {}, ".vb": {}, ".lua": {}, ".r": {}, ".jl": {},
	".dart": {}, ".elm": {}, ".clj": {}, ".ex": {}, ".exs": {}, ".erl": {},
	".hrl": {},
}

// configExts are extensions treated as configuration files.
var configExts = map[string]struct{}{
	".json": {}, ".yaml": {}, ".yml": {}, ".xml": {}, ".config": {},
	".toml": {},
}

// configNames are exact file names treated as configuration files.
var configNames = map[string]struct{}{
	"Dockerfile": {}, ".env": {}, "Makefile": {}, "CMakeLists.txt": {},
}

// hasExcludedSegment reports whether any segment of the slash-separated
// relative path is an excluded directory name.
func hasExcludedSegment(relPath string) bool {
	for _, seg := range strings.Split(relPath, "/") {
		if _, ok := excludedDirs[seg]; ok {
			return true
		}
	}
	return false
}

// isExcludedDir reports whether a directory name excludes its subtree.
func isExcludedDir(name string) bool {
	_, ok := excludedDirs[name]
	return ok
}

func isBinaryExt(ext string) bool {
	_, ok := binaryExts[ext]
	return ok
}

func isSourceExt(ext string) bool {
	_, ok := sourceExts[ext]
	return ok
}

func isConfigFile(name, ext string) bool {
	if _, ok := configExts[ext]; ok {
		return true
	}
	_, ok := configNames[name]
	return ok
}

// normalizeExt returns the lowercase extension of path, including the dot.
func normalizeExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// ExcludedDir reports whether a directory name excludes its subtree from
// analysis walks. Exported for consumers that walk the tree themselves.
func ExcludedDir(name string) bool {
	return isExcludedDir(name)
}

// SourceExt reports whether the lowercase extension is analyzable source.
func SourceExt(ext string) bool {
	return isSourceExt(ext)
}

// ConfigFile reports whether the file name or extension marks a
// configuration file.
func ConfigFile(name, ext string) bool {
	return isConfigFile(name, ext)
}

// NormalizeExt returns the lowercase extension of path, including the dot.
func NormalizeExt(path string) string {
	return normalizeExt(path)
}
