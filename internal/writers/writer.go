package writers

import (
	"io"
	"sort"
	"strings"
	"sync"

	"mongotable/internal/common"
	"mongotable/internal/table"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

// Options holds per-format settings.
type Options struct {
	Delimiter rune
	NoHeader  bool
	SheetName string
}

// Writer serializes a table to w and returns the number of rows written.
type Writer interface {
	Write(w io.Writer, t *table.Table, opts Options) (int, error)
}

// Factory creates a Writer.
type Factory func() Writer

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a writer factory for format.
func Register(format string, factory Factory) error {
	format = normalize(format)
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[format]; exists {
		return &common.ConfigError{Op: "register writer", Reason: "format " + format + " already registered"}
	}
	registry[format] = factory
	return nil
}

// MustRegister is like Register but panics on duplicates.
func MustRegister(format string, factory Factory) {
	if err := Register(format, factory); err != nil {
		panic(err)
	}
}

// Get returns a new writer for format.
func Get(format string) (Writer, error) {
	mu.RLock()
	factory, ok := registry[normalize(format)]
	mu.RUnlock()
	if !ok {
		return nil, &common.UnsupportedFormatError{Format: format, Available: List()}
	}
	return factory(), nil
}

// List returns the registered formats in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	formats := make([]string, 0, len(registry))
	for name := range registry {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}

func normalize(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}
