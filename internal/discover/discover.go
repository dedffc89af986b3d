package discover

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pathtrace/flowgraph/internal/lang"
)

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".cache": true, ".git": true, ".hg": true, ".idea": true,
	".next": true, ".nuxt": true, ".nyc_output": true,
	".pnpm-store": true, ".svn": true, ".tmp": true, ".turbo": true,
	".vercel": true, ".vscode": true, ".yarn": true,
	"bower_components": true, "build": true, "coverage": true,
	"dist": true, "node_modules": true, "out": true,
	"public": true, "storybook-static": true, "tmp": true, "vendor": true,
}

// IGNORE_SUFFIXES are file suffixes to skip.
var IGNORE_SUFFIXES = map[string]bool{
	".tmp": true, "~": true, ".min.js": true, ".d.ts": true,
	".map": true, ".snap": true,
}

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to repo root
	Language lang.Language // detected language
}

// Options configures file discovery.
type Options struct {
	IgnoreFile    string   // path to .flowgraphignore file (optional)
	ExtraPatterns []string // additional glob patterns from project config
	IncludeVendor bool     // keep node_modules/vendor files (classified external)
}

// shouldSkipDir returns true if the directory should be skipped during discovery.
func shouldSkipDir(name, rel string, opts *Options, extraIgnore []string) bool {
	if IGNORE_PATTERNS[name] {
		if opts != nil && opts.IncludeVendor && (name == "node_modules" || name == "vendor") {
			return false
		}
		return true
	}
	for _, pattern := range extraIgnore {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// Discover walks a source tree and returns all analyzable files.
// Unreadable subtrees are skipped, not fatal: analysis is best-effort.
func Discover(ctx context.Context, rootPath string, opts *Options) ([]FileInfo, error) {
	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Load .flowgraphignore patterns if present
	var extraIgnore []string
	if opts != nil && opts.IgnoreFile != "" {
		extraIgnore, _ = loadIgnoreFile(opts.IgnoreFile)
	} else {
		ignPath := filepath.Join(rootPath, ".flowgraphignore")
		extraIgnore, _ = loadIgnoreFile(ignPath)
	}
	if opts != nil {
		extraIgnore = append(extraIgnore, opts.ExtraPatterns...)
	}

	var files []FileInfo

	err = filepath.Walk(rootPath, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(rootPath, path)

		if info.IsDir() {
			if path != rootPath && shouldSkipDir(info.Name(), rel, opts, extraIgnore) {
				return filepath.SkipDir
			}
			return nil
		}

		for suffix := range IGNORE_SUFFIXES {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}

		ext := filepath.Ext(path)
		if l, ok := lang.LanguageForExtension(ext); ok {
			files = append(files, FileInfo{
				Path:     path,
				RelPath:  filepath.ToSlash(rel),
				Language: l,
			})
		}
		return nil
	})

	return files, err
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
