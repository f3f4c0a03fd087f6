// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"path"
	"strings"

	"github.com/nexus-agents/dev-nexus/internal/glob"
)

// Limits on the material sent to the model.
const (
	MaxFiles     = 10
	MaxDiffChars = 2000
)

// skipDirs are path segments whose subtrees carry no analyzable signal.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// skipGlobs matches generated and lock files by base name at any depth.
var skipGlobs = []string{
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"go.sum",
	"Cargo.lock",
	"poetry.lock",
	"*.min.js",
	"*.min.css",
	"*.map",
	"*.pyc",
	".DS_Store",
}

// FilterFiles drops generated, vendored, and lock files, truncates
// oversized diffs, and caps the file count. Input order is preserved.
func FilterFiles(files []ChangedFile) []ChangedFile {
	var out []ChangedFile
	for _, f := range files {
		if len(out) == MaxFiles {
			break
		}
		if skip(f.Path) {
			continue
		}
		if len(f.Diff) > MaxDiffChars {
			f.Diff = f.Diff[:MaxDiffChars] + "\n[truncated]"
		}
		out = append(out, f)
	}
	return out
}

func skip(p string) bool {
	for _, segment := range strings.Split(p, "/") {
		if skipDirs[segment] {
			return true
		}
	}
	base := path.Base(p)
	for _, pattern := range skipGlobs {
		// Patterns above are well-formed; Match errors only on bad patterns.
		if ok, _ := glob.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
