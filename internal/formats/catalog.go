// Package formats acquires and parses the gpsbabel format catalog.
package formats

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"gpsconv/internal/domain"
)

// ListFlag asks gpsbabel for its machine-readable format table.
const ListFlag = "-^2"

// Source says where the cached catalog came from.
type Source string

const (
	SourceBinary  Source = "binary"
	SourceBuiltin Source = "builtin"
)

// BinaryLocator resolves the gpsbabel executable.
type BinaryLocator interface {
	Locate(ctx context.Context) (string, error)
}

// Catalog lazily loads and caches the format list. Loading never fails:
// any problem degrades to the builtin list. A fallback loaded under a done
// context is returned but not cached.
type Catalog struct {
	locator     BinaryLocator
	listFormats func(ctx context.Context, binaryPath string) (string, error)
	logger      *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	loaded  bool
	formats []domain.Format
	source  Source
}

// NewCatalog creates a catalog that queries the located binary.
func NewCatalog(locator BinaryLocator, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		locator:     locator,
		listFormats: runListFormats,
		logger:      logger,
	}
}

// All returns every known format and where the list came from.
func (c *Catalog) All(ctx context.Context) ([]domain.Format, Source) {
	c.mu.Lock()
	if c.loaded {
		formats, source := c.formats, c.source
		c.mu.Unlock()
		return formats, source
	}
	c.mu.Unlock()

	type loadResult struct {
		formats []domain.Format
		source  Source
	}
	v, _, _ := c.group.Do("catalog", func() (any, error) {
		formats, source := c.load(ctx)

		// A fallback caused by the caller giving up says nothing about
		// gpsbabel, so the next caller loads again.
		if source == SourceBuiltin && ctx.Err() != nil {
			return loadResult{formats: formats, source: source}, nil
		}

		c.mu.Lock()
		c.loaded = true
		c.formats = formats
		c.source = source
		c.mu.Unlock()

		return loadResult{formats: formats, source: source}, nil
	})
	res := v.(loadResult)
	return res.formats, res.source
}

// ReadFormats lists formats gpsbabel can read, excluding the auto sentinel.
func (c *Catalog) ReadFormats(ctx context.Context) []domain.Format {
	all, _ := c.All(ctx)
	return lo.Filter(all, func(f domain.Format, _ int) bool {
		return f.SupportsRead && !f.IsAutoDetect()
	})
}

// WriteFormats lists formats gpsbabel can write. The auto sentinel never appears.
func (c *Catalog) WriteFormats(ctx context.Context) []domain.Format {
	all, _ := c.All(ctx)
	return lo.Filter(all, func(f domain.Format, _ int) bool {
		return f.SupportsWrite && !f.IsAutoDetect()
	})
}

// Lookup finds a format by id. "auto" resolves to the sentinel.
func (c *Catalog) Lookup(ctx context.Context, id string) (domain.Format, bool) {
	if id == domain.AutoDetectID {
		return domain.AutoDetect, true
	}
	all, _ := c.All(ctx)
	return lo.Find(all, func(f domain.Format) bool {
		return f.ID == id
	})
}

// Detect picks the first readable format whose extensions match path.
func (c *Catalog) Detect(ctx context.Context, path string) (domain.Format, bool) {
	return DetectFrom(c.ReadFormats(ctx), path)
}

// Invalidate forgets the cached list so the next call queries gpsbabel again.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.formats = nil
	c.source = ""
}

// DetectFrom picks the first format in list whose extensions match path.
func DetectFrom(list []domain.Format, path string) (domain.Format, bool) {
	return lo.Find(list, func(f domain.Format) bool {
		return f.MatchesPath(path)
	})
}

func (c *Catalog) load(ctx context.Context) ([]domain.Format, Source) {
	if c.locator == nil {
		return Builtin(), SourceBuiltin
	}

	binaryPath, err := c.locator.Locate(ctx)
	if err != nil {
		c.logger.Info("using built-in format list", "reason", "converter not located")
		return Builtin(), SourceBuiltin
	}

	output, err := c.listFormats(ctx, binaryPath)
	if err != nil {
		c.logger.Warn("using built-in format list", "reason", "format listing failed", "error", err)
		return Builtin(), SourceBuiltin
	}

	parsed := Parse(output)
	if len(parsed) == 0 {
		c.logger.Warn("using built-in format list", "reason", "format listing was empty")
		return Builtin(), SourceBuiltin
	}

	c.logger.Debug("format catalog loaded", "count", len(parsed), "binary", binaryPath)
	return parsed, SourceBinary
}

// runListFormats captures stdout of `gpsbabel -^2`; stderr is discarded.
func runListFormats(ctx context.Context, binaryPath string) (string, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, binaryPath, ListFlag)
	cmd.Stdout = &stdout
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

// NewCatalogForTests creates a catalog with an injectable listing function.
func NewCatalogForTests(
	locator BinaryLocator,
	listFormats func(ctx context.Context, binaryPath string) (string, error),
) *Catalog {
	c := NewCatalog(locator, nil)
	c.listFormats = listFormats
	return c
}
