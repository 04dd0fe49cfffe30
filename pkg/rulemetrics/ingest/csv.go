package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/pca"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
)

const (
	ColumnBody       = "Body"
	ColumnHead       = "Head"
	ColumnPCAValid   = "PCA_valid"
	ColumnPCAInvalid = "PCA_invalid"
	ColumnError      = "Error"
)

// ReadRules reads a rule table with a header row. Body and Head are required;
// every other column is carried as a static field in header order.
func ReadRules(r io.Reader) ([]rule.Descriptor, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("rules table is empty: %w", internalerr.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	bodyCol, headCol := -1, -1
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		switch header[i] {
		case ColumnBody:
			bodyCol = i
		case ColumnHead:
			headCol = i
		}
	}
	if bodyCol < 0 || headCol < 0 {
		return nil, fmt.Errorf("rules table needs %s and %s columns: %w", ColumnBody, ColumnHead, internalerr.ErrInvalidInput)
	}

	var rules []rule.Descriptor
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) != len(header) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %d fields, header has %d: %w", line, len(row), len(header), internalerr.ErrInvalidInput)
		}

		d := rule.Descriptor{Body: row[bodyCol], Head: row[headCol]}
		for i, name := range header {
			if i == bodyCol || i == headCol {
				continue
			}
			d.Static = append(d.Static, rule.Field{Name: name, Value: row[i]})
		}
		rules = append(rules, d)
	}
	return rules, nil
}

// Mode selects which score pair a report carries.
type Mode string

const (
	ModeRaw        Mode = "raw"
	ModeNormalized Mode = "normalized"
)

// ParseMode accepts "raw" or "normalized".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRaw:
		return ModeRaw, nil
	case ModeNormalized:
		return ModeNormalized, nil
	}
	return "", fmt.Errorf("mode %q: %w", s, internalerr.ErrInvalidInput)
}

// Scores picks the score pair of rec for m.
func (m Mode) Scores(rec rulemetrics.Record) pca.Scores {
	if m == ModeNormalized {
		return rec.Normalized
	}
	return rec.Raw
}

// WriteReport writes one row per record: Body, Head, the static columns of
// the first record, the two scores for mode, and the failure if any. Failed
// rules leave the score cells empty.
func WriteReport(w io.Writer, records []rulemetrics.Record, mode Mode) error {
	var static []string
	if len(records) > 0 {
		for _, f := range records[0].Descriptor.Static {
			static = append(static, f.Name)
		}
	}

	cw := csv.NewWriter(w)
	header := append([]string{ColumnBody, ColumnHead}, static...)
	header = append(header, ColumnPCAValid, ColumnPCAInvalid, ColumnError)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := make([]string, 0, len(header))
		row = append(row, rec.Descriptor.Body, rec.Descriptor.Head)
		for _, name := range static {
			row = append(row, staticValue(rec.Descriptor, name))
		}
		if rec.OK() {
			s := mode.Scores(rec)
			row = append(row, formatScore(s.Valid), formatScore(s.Invalid), "")
		} else {
			row = append(row, "", "", rec.Failure.Error())
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func staticValue(d rule.Descriptor, name string) string {
	for _, f := range d.Static {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
