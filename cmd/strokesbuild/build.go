package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Seezoo1225/naming-story/internal/strokes"
)

const (
	defaultBatchSize = 50
	artifactSource   = "kanjiapi.dev (Kanjidic2)"
	artifactNote     = "新字体・霊数なし。文字リスト＋ひらがな＋overrides"
)

// Counted without 霊数, matching how the dictionary treats kanji.
var hiraganaStrokes = map[string]int{
	"あ": 3, "い": 2, "う": 2, "え": 2, "お": 3, "か": 3, "き": 4, "く": 1, "け": 3, "こ": 2,
	"さ": 3, "し": 1, "す": 2, "せ": 3, "そ": 1, "た": 4, "ち": 2, "つ": 1, "て": 1, "と": 2,
	"な": 2, "に": 3, "ぬ": 2, "ね": 2, "の": 1, "は": 3, "ひ": 1, "ふ": 4, "へ": 1, "ほ": 4,
	"ま": 3, "み": 3, "む": 3, "め": 3, "も": 3, "や": 2, "ゆ": 2, "よ": 2, "ら": 2, "り": 2,
	"る": 2, "れ": 2, "ろ": 1, "わ": 2, "を": 3, "ん": 1,
	"ぁ": 2, "ぃ": 1, "ぅ": 1, "ぇ": 1, "ぉ": 2, "ゃ": 2, "ゅ": 2, "ょ": 2, "っ": 1,
}

type buildPaths struct {
	Chars     string
	Cache     string
	Out       string
	Overrides string
}

type builder struct {
	lookup    strokes.StrokeLookup
	logger    *zap.Logger
	batchSize int
	now       func() time.Time
}

type artifactMeta struct {
	Source      string         `json:"source"`
	Note        string         `json:"note"`
	Counts      map[string]int `json:"counts"`
	GeneratedAt string         `json:"generated_at"`
}

// Run resolves every listed character, saving the cache after each batch so an interrupted run
// picks up where it stopped.
func (b *builder) Run(ctx context.Context, paths buildPaths) error {
	if b.lookup == nil {
		return errors.New("strokesbuild: lookup is required")
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	batchSize := b.batchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	chars, err := readCharListFile(paths.Chars)
	if err != nil {
		return err
	}
	overrides, err := loadOverrides(paths.Overrides)
	if err != nil {
		return err
	}
	cache := loadCache(paths.Cache, logger)

	todo := make([]string, 0, len(chars))
	for _, char := range chars {
		if _, ok := cache[char]; !ok {
			todo = append(todo, char)
		}
	}
	logger.Info("resolving characters",
		zap.Int("listed", len(chars)),
		zap.Int("cached", len(chars)-len(todo)),
		zap.Int("pending", len(todo)),
	)

	var missing []string
	for start := 0; start < len(todo); start += batchSize {
		if err := ctx.Err(); err != nil {
			_ = writeJSONFile(paths.Cache, cache)
			return err
		}
		end := min(start+batchSize, len(todo))
		batch := todo[start:end]

		found, lookupErr := b.lookup.LookupStrokes(ctx, batch)
		if lookupErr != nil {
			logger.Warn("batch lookup incomplete", zap.Error(lookupErr), zap.Int("batch", len(batch)))
		}
		for _, char := range batch {
			if count, ok := found[char]; ok && count > 0 {
				cache[char] = count
				continue
			}
			missing = append(missing, char)
		}
		if err := writeJSONFile(paths.Cache, cache); err != nil {
			return err
		}
		logger.Info("batch resolved", zap.Int("done", end), zap.Int("pending", len(todo)))
	}
	if len(missing) > 0 {
		logger.Warn("characters without stroke counts", zap.Strings("chars", missing))
	}

	entries := mergeEntries(cache, overrides)
	artifact := make(map[string]any, len(entries)+1)
	for char, count := range entries {
		artifact[char] = count
	}
	artifact["meta"] = artifactMeta{
		Source: artifactSource,
		Note:   artifactNote,
		Counts: map[string]int{
			"listed":    len(chars),
			"hiragana":  len(hiraganaStrokes),
			"overrides": len(overrides),
			"total":     len(entries),
		},
		GeneratedAt: now().UTC().Format(time.RFC3339),
	}
	if err := writeJSONFile(paths.Out, artifact); err != nil {
		return err
	}
	logger.Info("artifact written", zap.String("path", paths.Out), zap.Int("entries", len(entries)))
	return nil
}

// Later sources win: resolved counts, then hiragana, then overrides.
func mergeEntries(resolved, overrides map[string]int) map[string]int {
	out := make(map[string]int, len(resolved)+len(hiraganaStrokes)+len(overrides))
	for _, src := range []map[string]int{resolved, hiraganaStrokes, overrides} {
		for char, count := range src {
			if count > 0 {
				out[char] = count
			}
		}
	}
	return out
}

func readCharListFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("strokesbuild: open char list: %w", err)
	}
	defer file.Close()
	return readCharList(file)
}

// readCharList returns the distinct characters of r in first-seen order. Lines starting with #
// are comments and whitespace is ignored.
func readCharList(r io.Reader) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, ch := range line {
			if unicode.IsSpace(ch) || ch == utf8.RuneError {
				continue
			}
			char := string(ch)
			if _, dup := seen[char]; dup {
				continue
			}
			seen[char] = struct{}{}
			out = append(out, char)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("strokesbuild: read char list: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("strokesbuild: char list is empty")
	}
	return out, nil
}

// A missing or unreadable cache starts the run from scratch.
func loadCache(path string, logger *zap.Logger) map[string]int {
	cache := make(map[string]int)
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return cache
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cache unreadable; starting fresh", zap.String("path", path), zap.Error(err))
		}
		return cache
	}
	var stored map[string]int
	if err := json.Unmarshal(data, &stored); err != nil {
		logger.Warn("cache corrupt; starting fresh", zap.String("path", path), zap.Error(err))
		return cache
	}
	for char, count := range stored {
		if count > 0 {
			cache[char] = count
		}
	}
	return cache
}

type overridesFile struct {
	Overrides map[string]int `yaml:"overrides"`
}

func loadOverrides(path string) (map[string]int, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("strokesbuild: read overrides: %w", err)
	}
	var doc overridesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("strokesbuild: decode overrides: %w", err)
	}
	for char, count := range doc.Overrides {
		if utf8.RuneCountInString(char) != 1 {
			return nil, fmt.Errorf("strokesbuild: override key %q must be a single character", char)
		}
		if count <= 0 {
			return nil, fmt.Errorf("strokesbuild: override for %q must be positive, got %d", char, count)
		}
	}
	return doc.Overrides, nil
}

// writeJSONFile replaces path atomically so an interrupted write never truncates the cache.
func writeJSONFile(path string, value any) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("strokesbuild: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("strokesbuild: create temp file: %w", err)
	}
	encoder := json.NewEncoder(tmp)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("strokesbuild: encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("strokesbuild: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("strokesbuild: replace %s: %w", path, err)
	}
	return nil
}
