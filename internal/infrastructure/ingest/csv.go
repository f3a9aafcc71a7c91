// Package ingest reads preference tables from flat files and writes the
// clustered table back out.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// IDColumn is the optional identity column.
const IDColumn = "_id"

// ClusterColumn is the label column appended by WriteClustered.
const ClusterColumn = "cluster"

// Record is one ingested row.
type Record struct {
	// ID is the _id column when present, otherwise the 0-based data row index.
	ID     string
	Vector preference.AttributeVector
	// Metadata holds every non-clustering column (name, email, phone...) keyed
	// by normalized header.
	Metadata map[string]string
}

// Table is the result of a load.
type Table struct {
	Records []Record
	// MetadataColumns lists the carried-through columns in input order.
	MetadataColumns []string
	// Dropped counts rows skipped for a missing clustering value.
	Dropped     int
	DroppedRows []int
}

// Vectors returns the records' vectors in order.
func (t *Table) Vectors() []preference.AttributeVector {
	out := make([]preference.AttributeVector, len(t.Records))
	for i, r := range t.Records {
		out[i] = r.Vector
	}
	return out
}

// Loader reads CSV preference tables.
type Loader struct {
	logger logging.Logger
}

// NewLoader returns a Loader.
func NewLoader(logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Loader{logger: logger.Named("ingest")}
}

// LoadFile reads the CSV file at path.
func (l *Loader) LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeNotFound, "input file not found").WithDetail(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeIngestFailed, "cannot open input file").WithDetail(path)
	}
	defer f.Close()
	return l.Read(f)
}

// Read parses a CSV table. Headers are lower-cased with spaces removed and
// legacy truncated names resolved. Every clustering column must be present;
// rows with a blank clustering value are dropped and counted.
func (l *Loader) Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeNoRecords, "input has no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIngestFailed, "cannot read header")
	}

	fieldIdx := [preference.NumFields]int{-1, -1, -1}
	idIdx := -1
	var metaIdx []int
	var metaCols []string
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := preference.NormalizeColumn(strings.TrimPrefix(h, "\ufeff"))
		if seen[name] {
			return nil, errors.Newf(errors.ErrCodeValidation, "duplicate column %q after normalization", name)
		}
		seen[name] = true

		if f, ok := preference.FieldForColumn(name); ok {
			fieldIdx[f] = i
			continue
		}
		if name == IDColumn {
			idIdx = i
			continue
		}
		metaIdx = append(metaIdx, i)
		metaCols = append(metaCols, name)
	}
	var missing []string
	for f, idx := range fieldIdx {
		if idx < 0 {
			missing = append(missing, preference.Field(f).String())
		}
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeSchemaViolation, "input is missing clustering columns").
			WithDetail("missing=" + strings.Join(missing, ","))
	}

	t := &Table{MetadataColumns: metaCols}
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIngestFailed, "malformed row").WithDetail("row=" + strconv.Itoa(row))
		}

		var values [preference.NumFields]string
		complete := true
		for f, idx := range fieldIdx {
			values[f] = preference.Normalize(cell(rec, idx))
			if values[f] == "" {
				complete = false
			}
		}
		if !complete {
			t.Dropped++
			t.DroppedRows = append(t.DroppedRows, row)
			continue
		}

		id := strconv.Itoa(row)
		if idIdx >= 0 {
			if v := strings.TrimSpace(cell(rec, idIdx)); v != "" {
				id = v
			}
		}
		meta := make(map[string]string, len(metaIdx))
		for j, idx := range metaIdx {
			meta[metaCols[j]] = cell(rec, idx)
		}
		t.Records = append(t.Records, Record{ID: id, Vector: preference.FromValues(values), Metadata: meta})
	}

	if t.Dropped > 0 {
		l.logger.Warn("dropped rows with missing clustering values",
			logging.Int("dropped", t.Dropped),
			logging.Int("kept", len(t.Records)))
	}
	l.logger.Info("table loaded",
		logging.Int("records", len(t.Records)),
		logging.Bool("has_id", idIdx >= 0),
		logging.Strings("metadata_columns", metaCols))
	return t, nil
}

func cell(rec []string, idx int) string {
	if idx < len(rec) {
		return rec[idx]
	}
	return ""
}

// WriteClustered writes id, the clustering columns, the metadata columns and
// the group label of every record. p must cover records one-to-one.
func WriteClustered(w io.Writer, t *Table, p *cluster.Partition) error {
	if p.Len() != len(t.Records) {
		return errors.Newf(errors.ErrCodeInternal, "partition covers %d records, table has %d", p.Len(), len(t.Records))
	}
	cw := csv.NewWriter(w)

	header := append([]string{IDColumn}, preference.Columns()...)
	header = append(header, t.MetadataColumns...)
	header = append(header, ClusterColumn)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrCodeIngestFailed, "cannot write header")
	}

	for i, r := range t.Records {
		row := make([]string, 0, len(header))
		row = append(row, r.ID)
		for _, f := range preference.Schema() {
			row = append(row, r.Vector.Value(f))
		}
		for _, c := range t.MetadataColumns {
			row = append(row, r.Metadata[c])
		}
		row = append(row, p.Label(i).String())
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, errors.ErrCodeIngestFailed, "cannot write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeIngestFailed, "cannot flush output")
	}
	return nil
}

// WriteClusteredFile is WriteClustered to a new file at path.
func WriteClusteredFile(path string, t *Table, p *cluster.Partition) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIngestFailed, "cannot create output file").WithDetail(path)
	}
	if err := WriteClustered(f, t, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

//Personal.AI order the ending
