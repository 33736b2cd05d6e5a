package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
)

const (
	colOrdinal = iota
	colRelease
	colPath
	colFirstFeature

	colBuggy      = colFirstFeature + dataset.NumFeatures
	datasetFields = colBuggy + 1
)

// DatasetHeader returns the dataset CSV header in column order.
func DatasetHeader() []string {
	header := make([]string, 0, datasetFields)
	header = append(header, "releaseOrdinal", "releaseName", "path")
	header = append(header, dataset.FeatureNames[:]...)

	return append(header, "buggy")
}

// WriteDataset writes rows as a ';'-separated CSV with a header line.
func WriteDataset(w io.Writer, rows []dataset.Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator

	err := cw.Write(DatasetHeader())
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, datasetFields)

	for _, r := range rows {
		record[colOrdinal] = strconv.Itoa(r.Ordinal)
		record[colRelease] = r.ReleaseName
		record[colPath] = r.Path

		for i, v := range r.Features {
			record[colFirstFeature+i] = formatFeature(v)
		}

		record[colBuggy] = strconv.FormatBool(r.Buggy)

		err = cw.Write(record)
		if err != nil {
			return fmt.Errorf("write row %s: %w", r.Path, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// ReadDataset parses a dataset CSV written by WriteDataset.
func ReadDataset(r io.Reader) ([]dataset.Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.FieldsPerRecord = datasetFields
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrMalformedDataset)
		}

		return nil, fmt.Errorf("%w: %w", ErrMalformedDataset, err)
	}

	for i, name := range DatasetHeader() {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrMalformedDataset, i+1, header[i], name)
		}
	}

	var rows []dataset.Row

	for line := 2; ; line++ {
		record, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedDataset, readErr)
		}

		row, parseErr := parseRow(record)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedDataset, line, parseErr)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func parseRow(record []string) (dataset.Row, error) {
	ordinal, err := strconv.Atoi(record[colOrdinal])
	if err != nil {
		return dataset.Row{}, fmt.Errorf("release ordinal: %w", err)
	}

	row := dataset.Row{
		Ordinal:     ordinal,
		ReleaseName: record[colRelease],
		Path:        record[colPath],
	}

	for i := range dataset.NumFeatures {
		row.Features[i], err = strconv.ParseFloat(record[colFirstFeature+i], 64)
		if err != nil {
			return dataset.Row{}, fmt.Errorf("%s: %w", dataset.FeatureNames[i], err)
		}
	}

	row.Buggy, err = strconv.ParseBool(record[colBuggy])
	if err != nil {
		return dataset.Row{}, fmt.Errorf("buggy: %w", err)
	}

	return row, nil
}

// WriteARFF writes the model-facing attributes of rows: the release ordinal,
// the numeric features and the nominal buggy class.
func WriteARFF(w io.Writer, relation string, rows []dataset.Row) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "@relation %s\n\n", arffQuote(relation))
	fmt.Fprintln(bw, "@attribute releaseOrdinal numeric")

	for _, name := range dataset.FeatureNames {
		fmt.Fprintf(bw, "@attribute %s numeric\n", name)
	}

	fmt.Fprint(bw, "@attribute buggy {false,true}\n\n@data\n")

	for _, r := range rows {
		bw.WriteString(strconv.Itoa(r.Ordinal))

		for _, v := range r.Features {
			bw.WriteByte(',')
			bw.WriteString(formatFeature(v))
		}

		bw.WriteByte(',')
		bw.WriteString(strconv.FormatBool(r.Buggy))
		bw.WriteByte('\n')
	}

	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("write arff: %w", err)
	}

	return nil
}

func arffQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t,{}'\"%") {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func formatFeature(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
