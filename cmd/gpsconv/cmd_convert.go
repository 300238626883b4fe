package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gpsconv/internal/bootstrap"
	"gpsconv/internal/domain"
	"gpsconv/internal/jobs"
)

const logPollInterval = 100 * time.Millisecond

type convertOptions struct {
	to       string
	from     string
	output   string
	simplify string
	dedupe   bool
	merge    bool
	filters  []string
}

func newConvertCommand(root *rootOptions) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <input> [output]",
		Short: "Convert a GPS file to another format",
		Long: `Convert a GPS file with gpsbabel.

The input format is detected by gpsbabel unless --from is given. When no
output path is given, the output is written next to the input using the
output format's extension.

Filters run between reading and writing, in this order: simplify, duplicate
removal, track merge, then any --filter values.`,
		Example: `  gpsconv convert ride.fit --to gpx
  gpsconv convert track.gpx out.kml --to kml --simplify 0.01k
  gpsconv convert waypoints.csv --from csv --to gpx --dedupe`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.to, "to", "t", "", "Output format id (see `gpsconv formats --write`)")
	cmd.Flags().StringVarP(&opts.from, "from", "f", domain.AutoDetectID, "Input format id, or auto")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&opts.simplify, "simplify", "", "Simplify tracks within an error distance, e.g. 0.001k")
	cmd.Flags().Lookup("simplify").NoOptDefVal = domain.DefaultSimplifyDistance
	cmd.Flags().BoolVar(&opts.dedupe, "dedupe", false, "Remove waypoints that share a location")
	cmd.Flags().BoolVar(&opts.merge, "merge", false, "Merge all tracks into one")
	cmd.Flags().StringSliceVar(&opts.filters, "filter", nil, "Extra filter: simplify[=distance], duplicates, merge")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// buildSpec turns arguments and flags into a job spec.
func (o *convertOptions) buildSpec(ctx context.Context, app *bootstrap.App, args []string) (domain.JobSpec, error) {
	input, err := filepath.Abs(args[0])
	if err != nil {
		return domain.JobSpec{}, fmt.Errorf("resolve input path: %w", err)
	}

	outputFormat, ok := app.LookupFormat(ctx, o.to)
	if !ok {
		outputFormat = domain.Format{ID: strings.TrimSpace(o.to)}
	}

	output := o.output
	if output == "" && len(args) > 1 {
		output = args[1]
	}
	return o.buildSpecWith(input, outputFormat, output)
}

// buildSpecWith fills the spec once the output format is resolved. An
// empty output is derived from input and the format's extension.
func (o *convertOptions) buildSpecWith(input string, outputFormat domain.Format, output string) (domain.JobSpec, error) {
	if output == "" {
		output = bootstrap.DefaultOutputPath(input, outputFormat)
	}
	output, err := filepath.Abs(output)
	if err != nil {
		return domain.JobSpec{}, fmt.Errorf("resolve output path: %w", err)
	}
	if output == input {
		return domain.JobSpec{}, fmt.Errorf("output path %s is the input file", output)
	}

	spec := domain.JobSpec{
		InputPath:    input,
		OutputPath:   output,
		OutputFormat: outputFormat,
	}
	if from := strings.TrimSpace(o.from); from != "" && from != domain.AutoDetectID {
		spec.InputFormat = &domain.Format{ID: from}
	}

	if o.simplify != "" {
		spec.Filters = append(spec.Filters, domain.Simplify{ErrorDistance: o.simplify})
	}
	if o.dedupe {
		spec.Filters = append(spec.Filters, domain.RemoveDuplicates{})
	}
	if o.merge {
		spec.Filters = append(spec.Filters, domain.MergeTracks{})
	}
	for _, raw := range o.filters {
		filter, err := domain.ParseFilter(raw)
		if err != nil {
			return domain.JobSpec{}, err
		}
		spec.Filters = append(spec.Filters, filter)
	}
	return spec, nil
}

func runConvert(cmd *cobra.Command, root *rootOptions, opts *convertOptions, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	spec, err := opts.buildSpec(ctx, root.app, args)
	if err != nil {
		return err
	}

	tail := newLogTail(root.app, cmd.OutOrStdout())
	tail.start()
	_, err = root.app.Convert(ctx, spec)
	tail.stop()
	return err
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// logTail prints job log events while a conversion runs.
type logTail struct {
	app  *bootstrap.App
	out  io.Writer
	seq  int64
	quit chan struct{}
	wg   sync.WaitGroup
}

func newLogTail(app *bootstrap.App, out io.Writer) *logTail {
	return &logTail{app: app, out: out, seq: app.LastEventSeq(), quit: make(chan struct{})}
}

func (t *logTail) start() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(logPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-ticker.C:
				t.flush()
			}
		}
	}()
}

// stop ends polling and prints whatever is left.
func (t *logTail) stop() {
	close(t.quit)
	t.wg.Wait()
	t.flush()
}

func (t *logTail) flush() {
	for _, event := range t.app.JobEvents(t.seq) {
		t.seq = event.Seq
		if event.Type == jobs.EventTypeLog {
			fmt.Fprintln(t.out, event.Message)
		}
	}
}
