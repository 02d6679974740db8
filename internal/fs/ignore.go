package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-wallet file listing extra patterns to leave
// out of zip backups.
const IgnoreFileName = ".mbhdignore"

// builtinRules are appended after every caller pattern, so a negation can
// never bring half-written atomic writes back into a backup.
var builtinRules = []string{tempPattern}

// excludeRule is one parsed line of an ignore list.
//
//	*.log        any file or directory named *.log, at any depth
//	/cache       only cache at the root
//	logs/*.txt   anchored, matched against the whole relative path
//	backups/     directories only
//	!keep.log    re-includes what an earlier rule excluded
type excludeRule struct {
	glob     string
	negate   bool
	anchored bool
	dirOnly  bool
}

func parseRule(line string) (excludeRule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return excludeRule{}, false
	}
	var r excludeRule
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.Contains(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return excludeRule{}, false
	}
	r.glob = line
	return r, true
}

func (r excludeRule) matches(slashPath string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	subject := path.Base(slashPath)
	if r.anchored {
		subject = slashPath
	}
	ok, err := path.Match(r.glob, subject)
	return err == nil && ok
}

// IgnoreMatcher decides which entries of a wallet directory stay out of a
// zip backup. Rules are checked in order and the last one that matches
// wins, as in a .gitignore.
type IgnoreMatcher struct {
	rules []excludeRule
}

// NewIgnoreMatcher parses raw pattern lines. Blank lines and lines starting
// with '#' are skipped, as are malformed patterns.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range append(append([]string{}, rawPatterns...), builtinRules...) {
		r, ok := parseRule(raw)
		if !ok {
			continue
		}
		if _, err := path.Match(r.glob, ""); err != nil {
			continue
		}
		m.rules = append(m.rules, r)
	}
	return m
}

// Match reports whether relativePath, relative to the directory being
// archived, is excluded. isDir selects directory-only rules.
func (m *IgnoreMatcher) Match(relativePath string, isDir bool) bool {
	if relativePath == "" || relativePath == "." {
		return false
	}
	slashPath := filepath.ToSlash(relativePath)
	excluded := false
	for _, r := range m.rules {
		if r.matches(slashPath, isDir) {
			excluded = !r.negate
		}
	}
	return excluded
}

// ParseIgnoreFile returns the lines of an ignore file, or nil when the file
// does not exist.
func ParseIgnoreFile(p string) ([]string, error) {
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
