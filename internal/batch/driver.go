package batch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lehigh-university-libraries/labelme2coco/internal/coco"
	"github.com/lehigh-university-libraries/labelme2coco/internal/config"
	"github.com/lehigh-university-libraries/labelme2coco/internal/convert"
	"github.com/lehigh-university-libraries/labelme2coco/internal/imagedata"
	"golang.org/x/sync/errgroup"
)

// InputExt is the extension of LabelMe files, matched case-insensitively.
const InputExt = ".json"

// ErrNoConvertedFiles is returned when there were inputs but none converted.
var ErrNoConvertedFiles = errors.New("no input file could be converted")

// Result is the outcome of a batch run.
type Result struct {
	Dataset *coco.Dataset
	// Inputs are the enumerated source files in processing order.
	Inputs []string
	// Failures are the files excluded from the dataset.
	Failures []*convert.FileError
}

// Converted is the number of inputs that made it into the dataset. It is
// zero for an aborted run, which has no dataset.
func (r *Result) Converted() int {
	if r.Dataset == nil {
		return 0
	}
	return len(r.Inputs) - len(r.Failures)
}

// Driver runs a conversion over a directory of LabelMe files.
type Driver struct {
	cfg    config.Config
	images convert.ImageStore
}

// NewDriver creates a driver. images is shared by all workers and must be
// safe for concurrent use when cfg.Threaded is set.
func NewDriver(cfg config.Config, images convert.ImageStore) *Driver {
	return &Driver{cfg: cfg, images: images}
}

// ListInputs returns the LabelMe files directly inside dir, sorted by name.
func ListInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var inputs []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), InputExt) {
			continue
		}
		inputs = append(inputs, filepath.Join(dir, entry.Name()))
	}
	return inputs, nil
}

// claimImages assigns every input its image id and image file name in input
// order. A later input whose id or file name is already claimed is rejected
// up front, so it never writes over the image of the file that keeps it.
func claimImages(inputs []string) (accepted []string, rejected []*convert.FileError) {
	ids := make(map[int64]string, len(inputs))
	names := make(map[string]string, len(inputs))

	for _, path := range inputs {
		id := convert.ImageID(path)
		name := imagedata.FileName(path)

		owner, taken := ids[id]
		if !taken {
			owner, taken = names[name]
		}
		if taken {
			rejected = append(rejected, &convert.FileError{
				Path: path,
				Err:  fmt.Errorf("%w %d (%s), already used by %s", convert.ErrDuplicateImageID, id, name, owner),
			})
			continue
		}

		ids[id] = path
		names[name] = path
		accepted = append(accepted, path)
	}
	return accepted, rejected
}

// Run converts every input and merges the results. Failing files are logged,
// excluded and listed in Result.Failures. With FailFast the first failure
// aborts the run. An aborted run returns its error together with a Result
// that has no dataset and lists the failure, so it can still be reported;
// errors that are not about a file (unreadable directory, cancellation)
// return a nil Result.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	inputs, err := ListInputs(d.cfg.LabelmeDir)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		slog.Warn("No labelme files found", "dir", d.cfg.LabelmeDir)
	}

	accepted, rejected := claimImages(inputs)
	var failures []*convert.FileError
	for _, fe := range rejected {
		failures = append(failures, d.fileFailure(fe))
	}
	if len(rejected) > 0 && d.cfg.FailFast {
		return &Result{Inputs: inputs, Failures: failures[:1]}, rejected[0]
	}

	// created once up front so workers never race on it
	if err := os.MkdirAll(d.cfg.ImageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	slog.Info("Starting conversion", "dir", d.cfg.LabelmeDir, "files", len(accepted), "threaded", d.cfg.Threaded)

	var result *Result
	if d.cfg.Threaded {
		result, err = d.runParallel(ctx, accepted)
	} else {
		result, err = d.runSequential(ctx, accepted)
	}
	if err != nil {
		var fe *convert.FileError
		if !errors.As(err, &fe) {
			return nil, err
		}
		return &Result{Inputs: inputs, Failures: []*convert.FileError{fe}}, err
	}

	result.Inputs = inputs
	result.Failures = inInputOrder(inputs, append(failures, result.Failures...))

	if len(inputs) > 0 && result.Converted() == 0 {
		err := fmt.Errorf("%w: %d of %d failed", ErrNoConvertedFiles, len(result.Failures), len(inputs))
		result.Dataset = nil
		return result, err
	}

	slog.Info("Conversion finished",
		"converted", result.Converted(),
		"failed", len(result.Failures),
		"images", len(result.Dataset.Images),
		"annotations", len(result.Dataset.Annotations),
		"categories", len(result.Dataset.Categories))

	return result, nil
}

func inInputOrder(inputs []string, failures []*convert.FileError) []*convert.FileError {
	position := make(map[string]int, len(inputs))
	for i, path := range inputs {
		position[path] = i
	}
	slices.SortStableFunc(failures, func(a, b *convert.FileError) int {
		return cmp.Compare(position[a.Path], position[b.Path])
	})
	return failures
}

// runSequential feeds each partial straight into one merger.
func (d *Driver) runSequential(ctx context.Context, inputs []string) (*Result, error) {
	result := &Result{Inputs: inputs}
	converter := convert.NewConverter(d.cfg.ImageDir, d.images)
	merger := convert.NewMerger()

	for i, path := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		slog.Info("Processing file", "path", path, "progress", fmt.Sprintf("%d/%d", i+1, len(inputs)))

		partial, err := converter.ConvertFile(path)
		if err == nil {
			err = merger.Add(partial)
		}
		if err != nil {
			if d.cfg.FailFast {
				return nil, err
			}
			result.Failures = append(result.Failures, d.fileFailure(err))
		}
	}

	result.Dataset = merger.Dataset()
	return result, nil
}

// runParallel fans inputs out to a fixed pool of workers, each with its own
// converter, and merges once all of them are done. Results are stored by
// input index, so the merge order (and the dataset) matches a sequential run.
func (d *Driver) runParallel(ctx context.Context, inputs []string) (*Result, error) {
	partials := make([]*convert.PartialResult, len(inputs))
	errs := make([]error, len(inputs))

	workers := min(d.cfg.WorkerCount(), max(len(inputs), 1))
	slog.Info("Processing files", "workers", workers)

	g, gctx := errgroup.WithContext(ctx)
	tasks := make(chan int)

	g.Go(func() error {
		defer close(tasks)
		for i := range inputs {
			select {
			case tasks <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			converter := convert.NewConverter(d.cfg.ImageDir, d.images)
			for i := range tasks {
				slog.Info("Processing file", "path", inputs[i], "worker", w, "progress", fmt.Sprintf("%d/%d", i+1, len(inputs)))

				partial, err := converter.ConvertFile(inputs[i])
				if err != nil {
					if d.cfg.FailFast {
						return err
					}
					errs[i] = err
					continue
				}
				partials[i] = partial
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Inputs: inputs}
	for _, err := range errs {
		if err != nil {
			result.Failures = append(result.Failures, d.fileFailure(err))
		}
	}

	dataset, rejected := convert.Merge(partials)
	if len(rejected) > 0 && d.cfg.FailFast {
		return nil, rejected[0]
	}
	for _, fe := range rejected {
		result.Failures = append(result.Failures, d.fileFailure(fe))
	}
	result.Dataset = dataset

	return result, nil
}

func (d *Driver) fileFailure(err error) *convert.FileError {
	var fe *convert.FileError
	if !errors.As(err, &fe) {
		fe = &convert.FileError{Err: err}
	}
	slog.Warn("Skipping file", "path", fe.Path, "kind", fe.Kind(), "error", fe.Err)
	return fe
}
