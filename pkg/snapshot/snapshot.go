// Package snapshot stores a mined dataset in a compact binary form so it can
// be evaluated again without re-mining the repository.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/export"
	"github.com/Sumatoshi-tech/defectlab/pkg/mining"
)

// FormatVersion is the current snapshot layout version.
const FormatVersion = 1

// magic opens every snapshot stream.
const magic = "DLSNAP"

// Sentinel errors.
var (
	ErrNotSnapshot     = errors.New("not a dataset snapshot")
	ErrVersionMismatch = errors.New("unsupported snapshot version")
)

// Snapshot is a persisted mining result.
type Snapshot struct {
	Version int
	RunID   string
	Created time.Time
	Dataset *dataset.Dataset
	Stats   mining.Stats
}

// New wraps a mined dataset for persistence.
func New(ds *dataset.Dataset, stats mining.Stats, runID string, created time.Time) *Snapshot {
	return &Snapshot{
		Version: FormatVersion,
		RunID:   runID,
		Created: created.UTC(),
		Dataset: ds,
		Stats:   stats,
	}
}

// Codec defines how a snapshot is serialized.
type Codec interface {
	Encode(w io.Writer, s *Snapshot) error
	Decode(r io.Reader) (*Snapshot, error)
}

// GobCodec encodes snapshots with gob.
type GobCodec struct{}

// Encode implements Codec.
func (GobCodec) Encode(w io.Writer, s *Snapshot) error {
	err := gob.NewEncoder(w).Encode(s)
	if err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}

	return nil
}

// Decode implements Codec. Snapshot path indexes are rebuilt.
func (GobCodec) Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot

	err := gob.NewDecoder(r).Decode(&s)
	if err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}

	if s.Dataset != nil {
		for _, snap := range s.Dataset.Snapshots {
			snap.Reindex()
		}
	}

	return &s, nil
}

// LZ4Codec frames another codec with a version header and LZ4 stream
// compression.
type LZ4Codec struct {
	Inner Codec
	Level lz4.CompressionLevel
}

// NewCodec returns the default snapshot codec: gob inside LZ4.
func NewCodec() *LZ4Codec {
	return &LZ4Codec{Inner: GobCodec{}, Level: lz4.Fast}
}

// Encode implements Codec.
func (c *LZ4Codec) Encode(w io.Writer, s *Snapshot) error {
	_, err := fmt.Fprintf(w, "%s%d\n", magic, FormatVersion)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	zw := lz4.NewWriter(w)

	err = zw.Apply(lz4.CompressionLevelOption(c.Level))
	if err != nil {
		return fmt.Errorf("configure lz4: %w", err)
	}

	err = c.Inner.Encode(zw, s)
	if err != nil {
		return err
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("flush lz4: %w", err)
	}

	return nil
}

// Decode implements Codec.
func (c *LZ4Codec) Decode(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)

	line, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotSnapshot, err)
	}

	var version int

	_, err = fmt.Sscanf(line, magic+"%d\n", &version)
	if err != nil {
		return nil, fmt.Errorf("%w: bad header", ErrNotSnapshot)
	}

	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersionMismatch, version)
	}

	s, err := c.Inner.Decode(lz4.NewReader(br))
	if err != nil {
		return nil, err
	}

	if s.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersionMismatch, s.Version)
	}

	return s, nil
}

// Save writes the snapshot to path with the default codec.
func Save(path string, s *Snapshot) error {
	return export.WriteFile(path, func(w io.Writer) error {
		return NewCodec().Encode(w, s)
	})
}

// Load reads a snapshot written by Save.
func Load(path string) (*Snapshot, error) {
	var s *Snapshot

	err := export.ReadFile(path, func(r io.Reader) error {
		var decodeErr error

		s, decodeErr = NewCodec().Decode(r)

		return decodeErr
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}
