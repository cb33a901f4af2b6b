// Package extension loads supplementary system-prompt text per topic.
// Extensions are externally authored markdown files named
// <topic>_extension.md; a missing file is a normal outcome, not an error.
package extension

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// Loader looks up extension text by topic identifier.
type Loader struct {
	fsys   fs.FS
	logger *slog.Logger
}

// NewLoader reads extensions from a directory on disk. The directory not
// existing yet is fine; every lookup will simply come back empty.
func NewLoader(logger *slog.Logger, dir string) *Loader {
	return NewLoaderFromFS(logger, os.DirFS(dir))
}

// NewLoaderFromFS reads extensions from an arbitrary filesystem.
// Useful for tests and embedded extension sets.
func NewLoaderFromFS(logger *slog.Logger, fsys fs.FS) *Loader {
	return &Loader{
		fsys:   fsys,
		logger: logger.With("component", "extension_loader"),
	}
}

// Load returns the extension text for a topic, or ("", false) when no
// extension exists. Read failures other than absence are logged and treated
// as absence: a broken extension file must never break a chat turn.
func (l *Loader) Load(topic string) (string, bool) {
	data, err := fs.ReadFile(l.fsys, topic+"_extension.md")
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("failed to read extension file", "topic", topic, "error", err)
		}
		return "", false
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", false
	}
	return text, true
}

// Available reports which of the given topics currently have extension text.
// Used by the status endpoint.
func (l *Loader) Available(topics []string) map[string]bool {
	out := make(map[string]bool, len(topics))
	for _, t := range topics {
		_, ok := l.Load(t)
		out[t] = ok
	}
	return out
}

// LoadAll resolves the given topics in order and returns the texts found.
// Topics without extensions are skipped silently.
func (l *Loader) LoadAll(topics []string) []string {
	var texts []string
	for _, t := range topics {
		if text, ok := l.Load(t); ok {
			texts = append(texts, text)
		} else {
			l.logger.Debug(fmt.Sprintf("no extension for topic %s", t))
		}
	}
	return texts
}
