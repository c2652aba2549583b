package gtfs

import (
	"encoding/csv"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// parseCSV decodes a whole CSV stream into a slice of T.
func parseCSV[T any](r io.Reader) ([]T, error) {
	reader := newCSVReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	fieldMap := buildFieldMap[T](stripBOM(header))

	var results []T
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		results = append(results, decodeRecord[T](record, fieldMap))
	}
	return results, nil
}

// CSVStreamer yields one record at a time. Used for stop_times.txt, which is
// too large to hold as raw rows.
type CSVStreamer struct {
	rc       io.ReadCloser
	reader   *csv.Reader
	fieldMap []fieldMapping
}

type fieldMapping struct {
	csvIndex   int
	fieldIndex int
}

// OpenCSVStream reads the header of rc and prepares to decode rows into T.
// The streamer takes ownership of rc.
func OpenCSVStream[T any](rc io.ReadCloser) (*CSVStreamer, error) {
	reader := newCSVReader(rc)

	header, err := reader.Read()
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}

	return &CSVStreamer{
		rc:       rc,
		reader:   reader,
		fieldMap: buildFieldMap[T](stripBOM(header)),
	}, nil
}

// Next reads the next record into out, which must be a pointer to the T the
// stream was opened with. Returns io.EOF when done.
func (s *CSVStreamer) Next(out any) error {
	record, err := s.reader.Read()
	if err != nil {
		return err
	}
	v := reflect.ValueOf(out).Elem()
	v.SetZero()
	for _, fm := range s.fieldMap {
		if fm.csvIndex < len(record) {
			v.Field(fm.fieldIndex).SetString(record[fm.csvIndex])
		}
	}
	return nil
}

// Close releases the underlying reader.
func (s *CSVStreamer) Close() error {
	return s.rc.Close()
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	return reader
}

func stripBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\xef\xbb\xbf")
	}
	return header
}

// buildFieldMap maps CSV column positions to struct field positions via the
// csv struct tag. Unknown columns are ignored; missing ones stay empty.
func buildFieldMap[T any](header []string) []fieldMapping {
	var t T
	typ := reflect.TypeOf(t)

	tagToField := make(map[string]int)
	for i := 0; i < typ.NumField(); i++ {
		if tag := typ.Field(i).Tag.Get("csv"); tag != "" {
			tagToField[tag] = i
		}
	}

	var mappings []fieldMapping
	for csvIdx, colName := range header {
		if fieldIdx, ok := tagToField[strings.TrimSpace(colName)]; ok {
			mappings = append(mappings, fieldMapping{csvIndex: csvIdx, fieldIndex: fieldIdx})
		}
	}
	return mappings
}

func decodeRecord[T any](record []string, fieldMap []fieldMapping) T {
	var t T
	v := reflect.ValueOf(&t).Elem()
	for _, fm := range fieldMap {
		if fm.csvIndex < len(record) {
			v.Field(fm.fieldIndex).SetString(record[fm.csvIndex])
		}
	}
	return t
}
