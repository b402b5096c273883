// Package universe loads the list of tickers a run screens.
package universe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screener/internal/screener"
)

// ErrEmpty is returned when no tickers remain after parsing.
var ErrEmpty = errors.New("universe is empty")

// Load reads tickers from path when set, otherwise uses inline. Symbols are
// upper-cased and de-duplicated in first-seen order.
func Load(path string, inline []string, logger *zap.Logger) ([]screener.WorkItem, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		raw []string
		err error
	)
	if path != "" {
		raw, err = readFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		raw = inline
	}
	items, dups := Normalize(raw)
	if len(dups) > 0 {
		logger.Warn("duplicate tickers removed from universe",
			zap.Int("count", len(dups)),
			zap.Strings("tickers", dups),
		)
	}
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	logger.Info("universe loaded", zap.Int("tickers", len(items)), zap.String("source", sourceName(path)))
	return items, nil
}

// Parse reads one ticker per line. Blank lines and text after '#' are
// ignored; a line may also hold several comma-separated symbols.
func Parse(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, field := range strings.Split(line, ",") {
			if sym := strings.TrimSpace(field); sym != "" {
				out = append(out, sym)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan universe: %w", err)
	}
	return out, nil
}

// Normalize upper-cases symbols and drops repeats. It returns the unique
// items and the symbols that were dropped.
func Normalize(raw []string) ([]screener.WorkItem, []string) {
	seen := make(map[screener.WorkItem]struct{}, len(raw))
	items := make([]screener.WorkItem, 0, len(raw))
	var dups []string
	for _, s := range raw {
		sym := screener.WorkItem(strings.ToUpper(strings.TrimSpace(s)))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			dups = append(dups, string(sym))
			continue
		}
		seen[sym] = struct{}{}
		items = append(items, sym)
	}
	return items, dups
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Parse(f)
}

func sourceName(path string) string {
	if path == "" {
		return "config"
	}
	return path
}
