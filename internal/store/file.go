package store

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/0dayfall/webfinger"
	"github.com/buger/jsonparser"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed jrd.schema.json
var jrdSchema string

const jrdSchemaURL = "resource://jrd.schema.json"

var recordsValidator = jsonschema.MustCompileString(jrdSchemaURL, jrdSchema)

// LoadFile reads a JSON array of JRD documents into a MemoryStore.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	records, err := ParseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return NewMemoryStore(records...), nil
}

// ParseRecords validates data against the records schema and decodes every document in it.
func ParseRecords(data []byte) ([]webfinger.Response, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if err := recordsValidator.Validate(parsed); err != nil {
		return nil, fmt.Errorf("failed to validate records: %w", err)
	}

	var (
		records []webfinger.Response
		failed  error
	)
	_, err := jsonparser.ArrayEach(data, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		if failed != nil {
			return
		}
		resp, err := webfinger.ParseResponse(value)
		if err != nil {
			failed = fmt.Errorf("record %d: %w", len(records), err)
			return
		}
		records = append(records, resp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk records: %w", err)
	}
	if failed != nil {
		return nil, failed
	}
	return records, nil
}
