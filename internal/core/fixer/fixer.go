// # internal/core/fixer/fixer.go
// Package fixer applies namespace fix instructions to files on disk.
package fixer

import (
	"bytes"
	"context"
	"fmt"
	"microscope/internal/core/errors"
	"microscope/internal/engine/diagnostic"
	"microscope/internal/shared/util"
	"os"
	"strings"
	"sync"
	"unicode"
)

// Rewriter edits files in place. Rewrites of the same path are serialized and
// every write replaces the file atomically.
type Rewriter struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	// DryRun leaves files untouched after verifying the fix still applies.
	DryRun bool
}

func NewRewriter() *Rewriter {
	return &Rewriter{locks: make(map[string]*sync.Mutex)}
}

func (r *Rewriter) lock(path string) func() {
	r.mu.Lock()
	l, ok := r.locks[path]
	if !ok {
		l = &sync.Mutex{}
		r.locks[path] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Apply rewrites fix.FilePath. The target line must still hold OldText
// (whitespace differences aside); otherwise the file changed since it was
// analyzed and a CodeConflict error is returned without writing.
func (r *Rewriter) Apply(ctx context.Context, fix diagnostic.Fix) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := r.lock(fix.FilePath)
	defer unlock()

	info, err := os.Stat(fix.FilePath)
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeIO, "stat file"), errors.CtxPath, fix.FilePath)
	}
	src, err := os.ReadFile(fix.FilePath)
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeIO, "read file"), errors.CtxPath, fix.FilePath)
	}

	out, err := Rewrite(src, fix)
	if err != nil {
		return errors.AddContext(err, errors.CtxPath, fix.FilePath)
	}
	if r.DryRun || bytes.Equal(out, src) {
		return nil
	}
	if err := util.WriteFileAtomic(fix.FilePath, out, info.Mode().Perm()); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeIO, "write file"), errors.CtxPath, fix.FilePath)
	}
	return nil
}

// Rewrite returns src with fix applied. Line endings of src are preserved.
func Rewrite(src []byte, fix diagnostic.Fix) ([]byte, error) {
	eol := "\n"
	if bytes.Contains(src, []byte("\r\n")) {
		eol = "\r\n"
	}
	lines := strings.Split(string(src), eol)

	idx := fix.Line - 1
	if idx < 0 || idx >= len(lines) {
		return nil, errors.AddContext(
			errors.New(errors.CodeConflict, fmt.Sprintf("line %d is out of range", fix.Line)),
			errors.CtxLine, fix.Line)
	}

	if fix.Insert {
		rest := append([]string{fix.NewText}, lines[idx+1:]...)
		lines = append(lines[:idx+1], rest...)
		return []byte(strings.Join(lines, eol)), nil
	}

	next, ok := replaceText(lines[idx], fix.OldText, fix.NewText)
	if !ok {
		return nil, errors.AddContext(
			errors.New(errors.CodeConflict, fmt.Sprintf("line %d no longer contains %q", fix.Line, fix.OldText)),
			errors.CtxLine, fix.Line)
	}
	lines[idx] = next
	return []byte(strings.Join(lines, eol)), nil
}

// replaceText swaps old for new in line. Runs of whitespace inside old may
// be written differently in the file.
func replaceText(line, old, new string) (string, bool) {
	if old == "" {
		return "", false
	}
	if i := strings.Index(line, old); i >= 0 {
		return line[:i] + new + line[i+len(old):], true
	}

	want := squash(old)
	for start := 0; start < len(line); start++ {
		if unicode.IsSpace(rune(line[start])) {
			continue
		}
		end, ok := matchSquashed(line, start, want)
		if ok {
			return line[:start] + new + line[end:], true
		}
	}
	return "", false
}

// matchSquashed reports whether line[start:end] equals want once whitespace is
// removed, returning end.
func matchSquashed(line string, start int, want string) (int, bool) {
	j := 0
	for i := start; i < len(line); i++ {
		if unicode.IsSpace(rune(line[i])) {
			continue
		}
		if j >= len(want) || line[i] != want[j] {
			return 0, false
		}
		j++
		if j == len(want) {
			return i + 1, true
		}
	}
	return 0, false
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
