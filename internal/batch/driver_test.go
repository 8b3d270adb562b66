package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/labelme2coco/internal/coco"
	"github.com/lehigh-university-libraries/labelme2coco/internal/config"
	"github.com/lehigh-university-libraries/labelme2coco/internal/convert"
	"github.com/lehigh-university-libraries/labelme2coco/internal/imagedata"
	"github.com/lehigh-university-libraries/labelme2coco/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(label string) testutil.Shape {
	return testutil.Polygon(label, []float64{2, 3}, []float64{8, 3}, []float64{8, 9}, []float64{2, 9})
}

func testConfig(t *testing.T, inputDir string) config.Config {
	t.Helper()
	root := t.TempDir()
	return config.Config{
		LabelmeDir: inputDir,
		ImageDir:   filepath.Join(root, "images"),
		OutputPath: filepath.Join(root, "coco", "coco.json"),
		Workers:    4,
	}
}

func run(t *testing.T, cfg config.Config) (*Result, error) {
	t.Helper()
	return NewDriver(cfg, imagedata.NewPNGStore()).Run(context.Background())
}

func TestListInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.JSON", "notes.txt", "c.json.bak", "12.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))

	inputs, err := ListInputs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "12.json"),
		filepath.Join(dir, "a.JSON"),
		filepath.Join(dir, "b.json"),
	}, inputs)

	_, err = ListInputs(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRunTwoFileScenario(t *testing.T) {
	for _, threaded := range []bool{false, true} {
		t.Run(fmt.Sprintf("threaded=%v", threaded), func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteLabelMe(t, dir, "12.json", testutil.PNGPayload(t, 16, 12), square("cat"))
			testutil.WriteLabelMe(t, dir, "abc.json", testutil.PNGPayload(t, 8, 8), square("dog"))

			cfg := testConfig(t, dir)
			cfg.Threaded = threaded

			result, err := run(t, cfg)
			require.NoError(t, err)
			require.Empty(t, result.Failures)
			assert.Equal(t, 2, result.Converted())

			ds := result.Dataset
			assert.Equal(t, []coco.Image{
				{ID: 12, Width: 16, Height: 12, FileName: "12.png"},
				{ID: convert.HashID("abc"), Width: 8, Height: 8, FileName: "abc.png"},
			}, ds.Images)

			require.Len(t, ds.Annotations, 2)
			assert.Equal(t, 1, ds.Annotations[0].ID)
			assert.Equal(t, 2, ds.Annotations[1].ID)
			assert.Equal(t, [4]float64{2, 3, 6, 6}, ds.Annotations[0].BBox)
			assert.Equal(t, 36.0, ds.Annotations[0].Area)

			assert.Equal(t, []coco.Category{
				{ID: 1, Name: "cat", Supercategory: "none"},
				{ID: 2, Name: "dog", Supercategory: "none"},
			}, ds.Categories)
			assert.Equal(t, 1, ds.Annotations[0].CategoryID)
			assert.Equal(t, 2, ds.Annotations[1].CategoryID)

			assert.FileExists(t, filepath.Join(cfg.ImageDir, "12.png"))
			assert.FileExists(t, filepath.Join(cfg.ImageDir, "abc.png"))
		})
	}
}

// writeMany creates n files sharing a few labels in varying order.
func writeMany(t *testing.T, dir string, n int) {
	t.Helper()
	labels := []string{"car", "person", "bike", "tree"}
	payload := testutil.PNGPayload(t, 4, 4)
	for i := 0; i < n; i++ {
		shapes := []testutil.Shape{square(labels[i%len(labels)]), square(labels[(i*3+1)%len(labels)])}
		name := fmt.Sprintf("%d.json", 100+i)
		if i%5 == 0 {
			name = fmt.Sprintf("img_%d.json", i)
		}
		testutil.WriteLabelMe(t, dir, name, payload, shapes...)
	}
}

func TestRunSequentialAndParallelMatch(t *testing.T) {
	dir := t.TempDir()
	writeMany(t, dir, 25)

	seqCfg := testConfig(t, dir)
	seq, err := run(t, seqCfg)
	require.NoError(t, err)

	parCfg := testConfig(t, dir)
	parCfg.Threaded = true
	par, err := run(t, parCfg)
	require.NoError(t, err)

	seqJSON, err := json.Marshal(seq.Dataset)
	require.NoError(t, err)
	parJSON, err := json.Marshal(par.Dataset)
	require.NoError(t, err)
	assert.Equal(t, string(seqJSON), string(parJSON))

	assert.Len(t, par.Dataset.Annotations, 50)
	assert.Len(t, par.Dataset.Categories, 4)
}

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeMany(t, dir, 6)

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		cfg := testConfig(t, dir)
		result, err := run(t, cfg)
		require.NoError(t, err)
		require.NoError(t, coco.WriteFile(cfg.OutputPath, result.Dataset))

		data, err := os.ReadFile(cfg.OutputPath)
		require.NoError(t, err)
		outputs = append(outputs, data)
	}

	assert.Equal(t, outputs[0], outputs[1])
}

func TestRunSkipsAndReportsFailures(t *testing.T) {
	for _, threaded := range []bool{false, true} {
		t.Run(fmt.Sprintf("threaded=%v", threaded), func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteLabelMe(t, dir, "1.json", testutil.PNGPayload(t, 4, 4), square("cat"))
			bad := testutil.WriteLabelMe(t, dir, "2.json", "corrupt!", square("dog"))
			broken := filepath.Join(dir, "3.json")
			require.NoError(t, os.WriteFile(broken, []byte("{"), 0644))
			testutil.WriteLabelMe(t, dir, "4.json", testutil.PNGPayload(t, 4, 4), square("bird"))

			cfg := testConfig(t, dir)
			cfg.Threaded = threaded

			result, err := run(t, cfg)
			require.NoError(t, err)

			require.Len(t, result.Failures, 2)
			assert.Equal(t, bad, result.Failures[0].Path)
			assert.Equal(t, "decode", result.Failures[0].Kind())
			assert.Equal(t, broken, result.Failures[1].Path)
			assert.Equal(t, "malformed_input", result.Failures[1].Kind())
			assert.Equal(t, 2, result.Converted())

			ds := result.Dataset
			assert.Len(t, ds.Images, 2)
			assert.Equal(t, []int{1, 2}, []int{ds.Annotations[0].ID, ds.Annotations[1].ID})
			assert.Equal(t, []coco.Category{
				{ID: 1, Name: "cat", Supercategory: "none"},
				{ID: 2, Name: "bird", Supercategory: "none"},
			}, ds.Categories)
		})
	}
}

func TestRunFailFast(t *testing.T) {
	for _, threaded := range []bool{false, true} {
		t.Run(fmt.Sprintf("threaded=%v", threaded), func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteLabelMe(t, dir, "1.json", testutil.PNGPayload(t, 4, 4), square("cat"))
			testutil.WriteLabelMe(t, dir, "2.json", "corrupt!", square("dog"))

			cfg := testConfig(t, dir)
			cfg.Threaded = threaded
			cfg.FailFast = true

			result, err := run(t, cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, convert.ErrDecode)

			// aborted runs keep the failure for the report, but no dataset
			require.NotNil(t, result)
			assert.Nil(t, result.Dataset)
			assert.Equal(t, 0, result.Converted())
			require.Len(t, result.Failures, 1)
			assert.Equal(t, "decode", result.Failures[0].Kind())
		})
	}
}

func TestRunDuplicateImageIDs(t *testing.T) {
	for _, threaded := range []bool{false, true} {
		t.Run(fmt.Sprintf("threaded=%v", threaded), func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteLabelMe(t, dir, "07.json", testutil.PNGPayload(t, 4, 4), square("cat"))
			dup := testutil.WriteLabelMe(t, dir, "7.json", testutil.PNGPayload(t, 4, 4), square("dog"))

			cfg := testConfig(t, dir)
			cfg.Threaded = threaded

			result, err := run(t, cfg)
			require.NoError(t, err)
			require.Len(t, result.Failures, 1)
			assert.Equal(t, dup, result.Failures[0].Path)
			assert.ErrorIs(t, result.Failures[0], convert.ErrDuplicateImageID)
			assert.Len(t, result.Dataset.Images, 1)
			assert.Len(t, result.Dataset.Categories, 1)
			assert.FileExists(t, filepath.Join(cfg.ImageDir, "07.png"))
			assert.NoFileExists(t, filepath.Join(cfg.ImageDir, "7.png"))

			cfg.FailFast = true
			result, err = run(t, cfg)
			assert.ErrorIs(t, err, convert.ErrDuplicateImageID)
			require.NotNil(t, result)
			assert.Equal(t, dup, result.Failures[0].Path)
		})
	}
}

func TestRunDuplicateKeepsFirstImage(t *testing.T) {
	for _, threaded := range []bool{false, true} {
		t.Run(fmt.Sprintf("threaded=%v", threaded), func(t *testing.T) {
			dir := t.TempDir()
			// both map to a.png and the same hashed id; a.JSON sorts first
			testutil.WriteLabelMe(t, dir, "a.JSON", testutil.PNGPayload(t, 10, 10), square("cat"))
			dup := testutil.WriteLabelMe(t, dir, "a.json", testutil.PNGPayload(t, 30, 20), square("dog"))

			cfg := testConfig(t, dir)
			cfg.Threaded = threaded

			result, err := run(t, cfg)
			require.NoError(t, err)
			require.Len(t, result.Failures, 1)
			assert.Equal(t, dup, result.Failures[0].Path)
			assert.Equal(t, "duplicate_image_id", result.Failures[0].Kind())

			require.Len(t, result.Dataset.Images, 1)
			img := result.Dataset.Images[0]
			assert.Equal(t, "a.png", img.FileName)
			assert.Equal(t, 10, img.Width)
			assert.Equal(t, 10, img.Height)
			assert.Equal(t, []coco.Category{{ID: 1, Name: "cat", Supercategory: "none"}}, result.Dataset.Categories)

			f, err := os.Open(filepath.Join(cfg.ImageDir, "a.png"))
			require.NoError(t, err)
			defer f.Close()
			onDisk, err := png.DecodeConfig(f)
			require.NoError(t, err)
			assert.Equal(t, img.Width, onDisk.Width)
			assert.Equal(t, img.Height, onDisk.Height)

			entries, err := os.ReadDir(cfg.ImageDir)
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

func TestClaimImages(t *testing.T) {
	inputs := []string{"/in/07.json", "/in/7.json", "/in/a.JSON", "/in/a.json", "/in/b.json"}

	accepted, rejected := claimImages(inputs)
	assert.Equal(t, []string{"/in/07.json", "/in/a.JSON", "/in/b.json"}, accepted)
	require.Len(t, rejected, 2)
	assert.Equal(t, "/in/7.json", rejected[0].Path)
	assert.Equal(t, "/in/a.json", rejected[1].Path)
	for _, fe := range rejected {
		assert.ErrorIs(t, fe, convert.ErrDuplicateImageID)
	}
}

func TestRunAllFailed(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteLabelMe(t, dir, "1.json", "corrupt!", square("cat"))

	result, err := run(t, testConfig(t, dir))
	assert.ErrorIs(t, err, ErrNoConvertedFiles)
	require.NotNil(t, result)
	assert.Nil(t, result.Dataset)
	assert.Len(t, result.Failures, 1)
}

func TestRunEmptyDirectory(t *testing.T) {
	cfg := testConfig(t, t.TempDir())

	result, err := run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, coco.NewDataset(), result.Dataset)
	assert.DirExists(t, cfg.ImageDir)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeMany(t, dir, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, threaded := range []bool{false, true} {
		cfg := testConfig(t, dir)
		cfg.Threaded = threaded
		_, err := NewDriver(cfg, imagedata.NewPNGStore()).Run(ctx)
		assert.ErrorIs(t, err, context.Canceled, "threaded=%v", threaded)
	}
}
