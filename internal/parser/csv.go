package parser

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV turns every data row into one section. The first record is the
// header; a row's content is a JSON object mapping field name to value, with
// keys in header order. Empty or header-only input yields no sections.
func ParseCSV(content []byte) ([]RawSection, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []RawSection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var sections []RawSection
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(sections)+1, err)
		}

		body, err := encodeRow(header, record)
		if err != nil {
			return nil, fmt.Errorf("encode csv row %d: %w", len(sections)+1, err)
		}
		n := len(sections) + 1
		sections = append(sections, RawSection{
			Index:   n,
			Heading: fmt.Sprintf("Row %d", n),
			Content: body,
		})
	}
	if sections == nil {
		sections = []RawSection{}
	}
	return sections, nil
}

// encodeRow serializes a row as a JSON object whose keys keep header order.
// Fields beyond the header are keyed "_<column>"; a repeated header name keeps
// its first position and takes the last value.
func encodeRow(header, record []string) (string, error) {
	keys := make([]string, 0, len(record))
	values := make(map[string]string, len(record))
	for i, v := range record {
		key := "_" + strconv.Itoa(i)
		if i < len(header) {
			key = header[i]
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = v
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return "", err
		}
		vb, err := json.Marshal(values[k])
		if err != nil {
			return "", err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}
