package dataset

// Feature indices of Row.Features, in export column order.
const (
	FeatureSize = iota
	FeatureLocTouched
	FeatureAvgLocAdded
	FeatureLocAdded
	FeatureMaxLocAdded
	FeatureChurn
	FeatureMaxChurn
	FeatureAvgChurn
	FeatureRevisions
	FeatureBugFixes
	FeatureAuthors
	FeatureAge

	NumFeatures
)

// FeatureNames are the export column names of the numeric features.
var FeatureNames = [NumFeatures]string{
	"size",
	"locTouched",
	"avgLocAdded",
	"locAdded",
	"maxLocAdded",
	"churnSize",
	"maxChurnSize",
	"avgChurnSize",
	"revisions",
	"bugFixes",
	"distinctAuthors",
	"age",
}

// Row is the flat, model-facing view of one class record.
type Row struct {
	Ordinal     int
	ReleaseName string
	Path        string
	Features    [NumFeatures]float64
	Buggy       bool
}

// NewRow flattens a class of the given release.
func NewRow(rel Release, c *Class) Row {
	m := &c.Metrics

	return Row{
		Ordinal:     rel.Ordinal,
		ReleaseName: rel.Name,
		Path:        c.Path,
		Buggy:       c.Buggy,
		Features: [NumFeatures]float64{
			FeatureSize:        float64(m.Size),
			FeatureLocTouched:  float64(m.LocTouched),
			FeatureAvgLocAdded: m.AvgLocAdded(),
			FeatureLocAdded:    float64(m.LocAdded),
			FeatureMaxLocAdded: float64(m.MaxLocAdded),
			FeatureChurn:       float64(m.Churn),
			FeatureMaxChurn:    float64(m.MaxChurn),
			FeatureAvgChurn:    m.AvgChurn(),
			FeatureRevisions:   float64(m.Revisions),
			FeatureBugFixes:    float64(m.BugFixes),
			FeatureAuthors:     float64(m.DistinctAuthors()),
			FeatureAge:         float64(m.Age),
		},
	}
}

// Rows flattens every snapshot in release order.
func (d *Dataset) Rows() []Row {
	rows := make([]Row, 0, d.NumClasses())

	for i, snap := range d.Snapshots {
		rel := d.Releases[i]

		for j := range snap.Classes {
			rows = append(rows, NewRow(rel, &snap.Classes[j]))
		}
	}

	return rows
}
