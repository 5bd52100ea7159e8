package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/schaubda/psdatahelper/pkg/psdata"
)

// Static errors for err113 compliance.
var ErrUnexpectedBodyShape = errors.New("unexpected response body shape")

// orderedField is a single key/value pair from a JSON object, preserving the
// document order that encoding/json's map decoding would lose. Object values
// decode to []orderedField, arrays to []interface{}, and scalars to string,
// json.Number, bool, or nil.
type orderedField struct {
	Name  string
	Value interface{}
}

// decodeObject reads one JSON object from the decoder, which must be
// positioned at its opening brace.
func decodeObject(dec *json.Decoder) ([]orderedField, error) {
	open, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading object start: %w", err)
	}

	if delim, ok := open.(json.Delim); !ok || delim != '{' {
		return nil, ErrUnexpectedBodyShape
	}

	return decodeObjectFields(dec)
}

// decodeObjectFields reads key/value pairs up to and including the closing
// brace, which the caller's decoder has already passed the opening brace of.
func decodeObjectFields(dec *json.Decoder) ([]orderedField, error) {
	var fields []orderedField

	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading object key: %w", err)
		}

		key, ok := keyToken.(string)
		if !ok {
			return nil, ErrUnexpectedBodyShape
		}

		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		fields = append(fields, orderedField{Name: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading object end: %w", err)
	}

	return fields, nil
}

func decodeArrayValues(dec *json.Decoder) ([]interface{}, error) {
	values := []interface{}{}

	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading array end: %w", err)
	}

	return values, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	token, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading value: %w", err)
	}

	if delim, ok := token.(json.Delim); ok {
		switch delim {
		case '{':
			return decodeObjectFields(dec)
		case '[':
			return decodeArrayValues(dec)
		default:
			return nil, ErrUnexpectedBodyShape
		}
	}

	return token, nil
}

// decodeMode selects how fields inside a record's "tables" envelope are
// named. A PowerQuery may join several tables, so its results carry the
// table name on every field; table reads target a single table and keep
// bare field names.
type decodeMode int

const (
	decodeTableRead decodeMode = iota
	decodeQueryResult
)

// decodeRecords parses a response body into a record set, preserving the
// order in which fields appear in the document. Table reads come back as
// {"record":[{"id":1,"tables":{"students":{...}}},...]}, single-record reads
// as a bare {"tables":{...}} object, and query runs as {"record":[{...}]}
// with flat rows.
func decodeRecords(body []byte, mode decodeMode) (*psdata.RecordSet, error) {
	recordSet := psdata.NewRecordSet()

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return recordSet, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	top, err := decodeObject(dec)
	if err != nil {
		return nil, err
	}

	records, found := findRecordList(top)
	if !found {
		// No record list means the body itself is a single record.
		appendRecord(recordSet, top, mode)

		return recordSet, nil
	}

	for _, entry := range records {
		fields, ok := entry.([]orderedField)
		if !ok {
			return nil, ErrUnexpectedBodyShape
		}

		appendRecord(recordSet, fields, mode)
	}

	return recordSet, nil
}

func findRecordList(top []orderedField) ([]interface{}, bool) {
	for _, field := range top {
		if field.Name != "record" {
			continue
		}

		if list, ok := field.Value.([]interface{}); ok {
			return list, true
		}
	}

	return nil, false
}

// appendRecord flattens one record into a row. In query mode every field of
// a "tables" envelope is prefixed with its table name; table reads spread
// the fields unprefixed. Scalar fields outside the envelope, such as the
// record id, pass through as is.
func appendRecord(recordSet *psdata.RecordSet, fields []orderedField, mode decodeMode) {
	row := make(psdata.Row)

	add := func(name string, value interface{}) {
		recordSet.AddColumn(name)
		row[name] = value
	}

	for _, field := range fields {
		if field.Name == "tables" {
			tables, ok := field.Value.([]orderedField)
			if !ok {
				continue
			}

			for _, table := range tables {
				columns, ok := table.Value.([]orderedField)
				if !ok {
					continue
				}

				for _, column := range columns {
					if isScalar(column.Value) {
						name := column.Name
						if mode == decodeQueryResult {
							name = table.Name + "." + column.Name
						}

						add(name, column.Value)
					}
				}
			}

			continue
		}

		if isScalar(field.Value) {
			add(field.Name, field.Value)
		}
	}

	recordSet.Append(row)
}

func isScalar(value interface{}) bool {
	switch value.(type) {
	case string, json.Number, bool, nil:
		return true
	default:
		return false
	}
}

// encodeRow builds the request body for an insert or update. Absent and nil
// values are dropped so the server does not null out untouched columns;
// present empty strings go through, clearing the column. dropColumn names the
// id column on updates, which travels in the URL rather than the body.
func encodeRow(table string, row psdata.Row, dropColumn string) map[string]interface{} {
	fields := make(map[string]interface{}, len(row))

	for column, value := range row {
		if value == nil {
			continue
		}

		if column == dropColumn {
			continue
		}

		if column == psdata.ColumnResponseStatusCode || column == psdata.ColumnResponseText {
			continue
		}

		fields[column] = value
	}

	return map[string]interface{}{
		"tables": map[string]interface{}{
			table: fields,
		},
	}
}

// decodeCount parses a /count response of the form {"count":N}.
func decodeCount(body []byte) (int, error) {
	var parsed struct {
		Count int `json:"count"`
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("parsing count response: %w", err)
	}

	return parsed.Count, nil
}
