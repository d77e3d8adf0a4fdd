package probe

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-git/go-billy/v5"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultArtifactPatterns match every name a probe creates at a mount root.
var DefaultArtifactPatterns = []string{
	"test_*",
	"ro_success_*",
	"ro_fail_*",
}

// LeakScanner reports probe artifacts left behind at a mount root.
type LeakScanner struct {
	matcher *ignore.GitIgnore
}

// NewLeakScanner compiles gitignore-style artifact patterns.
func NewLeakScanner(patterns []string) *LeakScanner {
	if len(patterns) == 0 {
		patterns = DefaultArtifactPatterns
	}
	return &LeakScanner{matcher: ignore.CompileIgnoreLines(patterns...)}
}

// Snapshot returns the artifact names currently present at the root of fs.
func (l *LeakScanner) Snapshot(fs billy.Filesystem) (map[string]bool, error) {
	entries, err := fs.ReadDir("")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("list mount root: %w", err)
	}
	out := make(map[string]bool)
	for _, e := range entries {
		if l.matcher.MatchesPath(e.Name()) {
			out[e.Name()] = true
		}
	}
	return out, nil
}

// Leaked returns the sorted artifact names present now but absent from before.
func (l *LeakScanner) Leaked(fs billy.Filesystem, before map[string]bool) ([]string, error) {
	now, err := l.Snapshot(fs)
	if err != nil {
		return nil, err
	}
	var leaked []string
	for name := range now {
		if !before[name] {
			leaked = append(leaked, name)
		}
	}
	sort.Strings(leaked)
	return leaked, nil
}
