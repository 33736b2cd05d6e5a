// Package export writes mined datasets and evaluation results to disk and
// reads datasets back for re-evaluation.
//
// Datasets are written twice: a ';'-separated CSV carrying every column and an
// ARFF file holding only the model-facing attributes. Evaluation results are a
// ';'-separated CSV, and each run leaves a YAML manifest next to its outputs.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Sentinel errors.
var (
	// ErrLocked means another run holds the output directory.
	ErrLocked = errors.New("output directory is locked by another run")
	// ErrMalformedDataset means a dataset file does not have the expected layout.
	ErrMalformedDataset = errors.New("malformed dataset file")
)

// Separator is the field separator of the dataset and results CSV files.
const Separator = ';'

const (
	lockName = ".defectlab.lock"
	dirPerm  = 0o755
)

// File name suffixes written under the output directory.
const (
	DatasetSuffix  = "_dataset.csv"
	ARFFSuffix     = "_dataset.arff"
	ResultsSuffix  = "_results.csv"
	ManifestSuffix = "_manifest.yaml"
	SnapshotSuffix = "_dataset.snap"
	ChartSuffix    = "_results.html"
)

// Paths resolves the output files of one project.
type Paths struct {
	Dir     string
	Project string
}

// Dataset returns the dataset CSV path.
func (p Paths) Dataset() string { return p.join(DatasetSuffix) }

// ARFF returns the model-ready dataset path.
func (p Paths) ARFF() string { return p.join(ARFFSuffix) }

// Results returns the evaluation CSV path.
func (p Paths) Results() string { return p.join(ResultsSuffix) }

// Manifest returns the run manifest path.
func (p Paths) Manifest() string { return p.join(ManifestSuffix) }

// Snapshot returns the dataset snapshot path.
func (p Paths) Snapshot() string { return p.join(SnapshotSuffix) }

// Chart returns the HTML chart path.
func (p Paths) Chart() string { return p.join(ChartSuffix) }

func (p Paths) join(suffix string) string {
	return filepath.Join(p.Dir, p.Project+suffix)
}

// Lock takes an exclusive, non-blocking lock on the output directory,
// creating it if needed. The returned function releases the lock.
func Lock(dir string) (func() error, error) {
	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, lockName))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output directory: %w", err)
	}

	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}

	return fl.Unlock, nil
}

// WriteFile writes path through a temporary file in the same directory and
// renames it into place once write succeeds.
func WriteFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer os.Remove(tmp.Name())

	err = write(tmp)
	if err != nil {
		tmp.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	return nil
}

// ReadFile opens path and hands it to read.
func ReadFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	err = read(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	return nil
}
