package export

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/mining"
)

// Manifest records what a mining run produced and what it dropped on the way.
type Manifest struct {
	Project  string            `yaml:"project"`
	RunID    string            `yaml:"run_id,omitempty"`
	Version  string            `yaml:"version,omitempty"`
	Created  time.Time         `yaml:"created"`
	Releases []ManifestRelease `yaml:"releases"`
	Classes  int               `yaml:"classes"`
	Buggy    int               `yaml:"buggy"`
	Tickets  TicketCounts      `yaml:"tickets"`
	Stats    mining.Stats      `yaml:"stats"`
	Files    map[string]string `yaml:"files,omitempty"`
}

// ManifestRelease is one release kept in the dataset.
type ManifestRelease struct {
	Ordinal  int       `yaml:"ordinal"`
	Name     string    `yaml:"name"`
	Date     time.Time `yaml:"date"`
	CommitID string    `yaml:"commit,omitempty"`
	Classes  int       `yaml:"classes"`
	Buggy    int       `yaml:"buggy"`
}

// TicketCounts summarizes ticket survival across the mining phases.
type TicketCounts struct {
	Fetched   int `yaml:"fetched"`
	Matched   int `yaml:"matched"`
	Estimated int `yaml:"estimated"`
	Dropped   int `yaml:"dropped"`
}

// NewManifest summarizes a mined dataset and its run statistics.
func NewManifest(ds *dataset.Dataset, stats mining.Stats, created time.Time) *Manifest {
	m := &Manifest{
		Project:  ds.Project,
		Created:  created.UTC(),
		Releases: make([]ManifestRelease, 0, ds.NumReleases()),
		Stats:    stats,
		Tickets: TicketCounts{
			Fetched:   stats.TicketsFetched,
			Matched:   len(ds.Tickets),
			Estimated: stats.TicketsEstimated,
			Dropped:   stats.TicketsOutOfSpan + stats.TicketsUnmatched,
		},
	}

	for i, rel := range ds.Releases {
		mr := ManifestRelease{
			Ordinal:  rel.Ordinal,
			Name:     rel.Name,
			Date:     rel.Date.UTC(),
			CommitID: rel.CommitID,
		}

		if i < len(ds.Snapshots) && ds.Snapshots[i] != nil {
			for _, buggy := range ds.Snapshots[i].Labels() {
				mr.Classes++

				if buggy {
					mr.Buggy++
				}
			}
		}

		m.Classes += mr.Classes
		m.Buggy += mr.Buggy
		m.Releases = append(m.Releases, mr)
	}

	return m
}

// Write encodes the manifest as YAML.
func (m *Manifest) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	return enc.Close()
}

// ReadManifest decodes a YAML manifest.
func ReadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest

	err := yaml.NewDecoder(r).Decode(&m)
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return &m, nil
}
