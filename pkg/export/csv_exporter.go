package export

import (
	"bytes"
	"fmt"

	"github.com/gocarina/gocsv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter renders slices of csv-tagged structs.
type CSVExporter struct {
	bom bool
}

// NewCSVExporter builds a CSV exporter. With bom set, output starts with a UTF-8 byte order mark
// so spreadsheet tools detect the encoding of non-ASCII course names.
func NewCSVExporter(bom bool) *CSVExporter {
	return &CSVExporter{bom: bom}
}

// Render encodes rows, a pointer to a slice of structs, with a header line derived from csv tags.
func (e *CSVExporter) Render(rows interface{}) ([]byte, error) {
	body, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	if !e.bom {
		return body, nil
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(utf8BOM)+len(body)))
	buf.Write(utf8BOM)
	buf.Write(body)
	return buf.Bytes(), nil
}
