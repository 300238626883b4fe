package formats

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpsconv/internal/domain"
	"gpsconv/internal/testutil"
)

// fixedLocator returns a preset path or error.
type fixedLocator struct {
	path string
	err  error
}

func (l fixedLocator) Locate(context.Context) (string, error) {
	return l.path, l.err
}

const mixedListing = "file\trwrwrw\tgpx\tgpx\tGPX XML\n" +
	"file\trw----\tgtrnctr\ttcx/crs/hst/xml\tGarmin Training Center (.tcx/.crs/.hst/.xml)\n" +
	"file\tr-r-r-\tgarmin_fit\t\tFlexible and Interoperable Data Transfer (FIT) Activity file\n" +
	"internal\t------\tnone\t\tNo read or write\n" +
	"serial\tgarmin\tgarmin\tGarmin serial/USB protocol\n" +
	"file\tkml\tkml\tGoogle Earth (Keyhole) Markup Language\r\n" +
	"too\tfew\tfields\n" +
	"\n"

// TestParseCapabilityFlagRecord checks the five-field layout.
func TestParseCapabilityFlagRecord(t *testing.T) {
	got := Parse("file\trwrwrw\tgpx\tgpx\tGPX XML")
	require.Len(t, got, 1)
	assert.Equal(t, domain.Format{
		ID:            "gpx",
		Name:          "GPX XML",
		Extensions:    []string{".gpx"},
		SupportsRead:  true,
		SupportsWrite: true,
		Description:   "GPX XML",
	}, got[0])
}

// TestParseKindTaggedRecord checks the four-field layout.
func TestParseKindTaggedRecord(t *testing.T) {
	got := Parse("file\tgpx\tgpx\tGPX XML")
	require.Len(t, got, 1)
	assert.Equal(t, "gpx", got[0].ID)
	assert.True(t, got[0].SupportsRead)
	assert.True(t, got[0].SupportsWrite)
	assert.Equal(t, []string{".gpx"}, got[0].Extensions)
	assert.Equal(t, "GPX XML", got[0].Description)
}

// TestParseMixedListing covers both layouts, drops and inference together.
func TestParseMixedListing(t *testing.T) {
	got := Parse(mixedListing)
	ids := make([]string, 0, len(got))
	for _, f := range got {
		ids = append(ids, f.ID)
	}
	require.Equal(t, []string{"gpx", "gtrnctr", "garmin_fit", "garmin", "kml"}, ids)

	assert.Equal(t, []string{".tcx", ".crs", ".hst", ".xml"}, got[1].Extensions)
	assert.False(t, got[2].SupportsWrite)
	assert.Equal(t, []string{".fit"}, got[2].Extensions)

	serial := got[3]
	assert.True(t, serial.SupportsRead)
	assert.False(t, serial.SupportsWrite)
	assert.Empty(t, serial.Extensions, "long ids are not used as extensions")

	assert.Equal(t, "Google Earth (Keyhole) Markup Language", got[4].Description)
	assert.Equal(t, []string{".kml"}, got[4].Extensions)
}

// TestParseDropsShortAndCapabilityLessRecords checks drop rules.
func TestParseDropsShortAndCapabilityLessRecords(t *testing.T) {
	assert.Empty(t, Parse("file\trw\tgpx"))
	assert.Empty(t, Parse("internal\t------\tnone\t\tNothing"))
	assert.Empty(t, Parse("internal\tnone\tnone\tkind-tagged internal"))
	assert.Empty(t, Parse(""))
}

// TestParseIsIdempotent checks re-parsing yields identical lists.
func TestParseIsIdempotent(t *testing.T) {
	assert.Equal(t, Parse(mixedListing), Parse(mixedListing))
}

// TestInferExtensions covers the table and the short-id fallback.
func TestInferExtensions(t *testing.T) {
	assert.Equal(t, []string{".nmea", ".txt"}, InferExtensions("nmea"))
	assert.Equal(t, []string{".tcx"}, InferExtensions("gtrnctr"))
	assert.Equal(t, []string{".gpsman"}, InferExtensions("gpsman"))
	assert.Equal(t, []string{".ozi"}, InferExtensions("ozi"))
	assert.Nil(t, InferExtensions("geo_x"))
	assert.Nil(t, InferExtensions("magellan"))
}

// TestBuiltinCatalog checks the fallback entries.
func TestBuiltinCatalog(t *testing.T) {
	builtin := Builtin()
	ids := []string{}
	for _, f := range builtin {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"gpx", "kml", "garmin_fit", "gtrnctr", "csv", "gdb"}, ids)
	assert.Equal(t, []string{".gpx"}, builtin[0].Extensions)

	builtin[0].Extensions[0] = ".changed"
	assert.Equal(t, ".gpx", Builtin()[0].Extensions[0])
}

// TestCatalogFallsBackWhenBinaryMissing checks locator failures degrade.
func TestCatalogFallsBackWhenBinaryMissing(t *testing.T) {
	c := NewCatalogForTests(fixedLocator{err: errors.New("not found")}, func(context.Context, string) (string, error) {
		t.Fatal("listing must not run without a binary")
		return "", nil
	})

	all, source := c.All(context.Background())
	assert.Equal(t, SourceBuiltin, source)
	assert.Equal(t, Builtin(), all)
}

// TestCatalogFallsBackOnListingErrorOrEmptyOutput checks both degraded paths.
func TestCatalogFallsBackOnListingErrorOrEmptyOutput(t *testing.T) {
	for name, list := range map[string]func(context.Context, string) (string, error){
		"error": func(context.Context, string) (string, error) { return "", errors.New("exit status 1") },
		"empty": func(context.Context, string) (string, error) { return "garbage\n", nil },
	} {
		t.Run(name, func(t *testing.T) {
			c := NewCatalogForTests(fixedLocator{path: "/bin/gpsbabel"}, list)
			all, source := c.All(context.Background())
			assert.Equal(t, SourceBuiltin, source)
			_, ok := DetectFrom(all, "track.gpx")
			assert.True(t, ok)
		})
	}
}

// TestCatalogCachesAndInvalidates checks lazy single loading.
func TestCatalogCachesAndInvalidates(t *testing.T) {
	var calls atomic.Int32
	c := NewCatalogForTests(fixedLocator{path: "/bin/gpsbabel"}, func(context.Context, string) (string, error) {
		calls.Add(1)
		return mixedListing, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.All(context.Background())
		}()
	}
	wg.Wait()
	c.ReadFormats(context.Background())
	assert.Equal(t, int32(1), calls.Load())

	c.Invalidate()
	_, source := c.All(context.Background())
	assert.Equal(t, SourceBinary, source)
	assert.Equal(t, int32(2), calls.Load())
}

// ctxLocator fails with the context error once ctx is done.
type ctxLocator struct{ path string }

func (l ctxLocator) Locate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.path, nil
}

// TestCatalogDoesNotCacheFallbackFromCancelledCaller checks a later caller
// still gets the listing after an early caller gave up.
func TestCatalogDoesNotCacheFallbackFromCancelledCaller(t *testing.T) {
	var calls atomic.Int32
	c := NewCatalogForTests(ctxLocator{path: "/bin/gpsbabel"}, func(context.Context, string) (string, error) {
		calls.Add(1)
		return mixedListing, nil
	})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, source := c.All(cancelled)
	assert.Equal(t, SourceBuiltin, source)
	assert.Equal(t, int32(0), calls.Load())

	got, source := c.All(context.Background())
	assert.Equal(t, SourceBinary, source)
	assert.Len(t, got, len(Parse(mixedListing)))
	assert.Equal(t, int32(1), calls.Load())

	_, source = c.All(context.Background())
	assert.Equal(t, SourceBinary, source)
	assert.Equal(t, int32(1), calls.Load())
}

// TestCatalogReadWriteLookupDetect checks the derived views.
func TestCatalogReadWriteLookupDetect(t *testing.T) {
	c := NewCatalogForTests(fixedLocator{path: "/bin/gpsbabel"}, func(context.Context, string) (string, error) {
		return mixedListing, nil
	})
	ctx := context.Background()

	readIDs := []string{}
	for _, f := range c.ReadFormats(ctx) {
		readIDs = append(readIDs, f.ID)
	}
	assert.Equal(t, []string{"gpx", "gtrnctr", "garmin_fit", "garmin", "kml"}, readIDs)

	writeIDs := []string{}
	for _, f := range c.WriteFormats(ctx) {
		writeIDs = append(writeIDs, f.ID)
	}
	assert.Equal(t, []string{"gpx", "gtrnctr", "kml"}, writeIDs)

	auto, ok := c.Lookup(ctx, "auto")
	require.True(t, ok)
	assert.True(t, auto.IsAutoDetect())

	_, ok = c.Lookup(ctx, "nope")
	assert.False(t, ok)

	detected, ok := c.Detect(ctx, "/data/Morning Ride.FIT")
	require.True(t, ok)
	assert.Equal(t, "garmin_fit", detected.ID)

	_, ok = c.Detect(ctx, "/data/readme")
	assert.False(t, ok)
}

// TestCatalogRunsRealListing drives a fake gpsbabel through -^2.
func TestCatalogRunsRealListing(t *testing.T) {
	bin := testutil.FakeGPSBabel(t, filepath.Join(t.TempDir(), "bin"), `
if [ "$1" = "-^2" ]; then
  printf 'file\trwrwrw\tgpx\tgpx\tGPX XML\n'
  echo "noise on stderr" >&2
  exit 0
fi
exit 1`)

	c := NewCatalog(fixedLocator{path: bin}, nil)
	all, source := c.All(context.Background())
	require.Equal(t, SourceBinary, source)
	require.Len(t, all, 1)
	assert.Equal(t, "gpx", all[0].ID)
}
