package scene

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"gallery-service/internal/codec"
	"gallery-service/internal/models"
)

var (
	//go:embed schemas/compact.schema.json
	compactSchemaJSON string
	//go:embed schemas/full.schema.json
	fullSchemaJSON string

	compactSchema = jsonschema.MustCompileString("compact.schema.json", compactSchemaJSON)
	fullSchema    = jsonschema.MustCompileString("full.schema.json", fullSchemaJSON)
)

// ErrUnknownFormat means a blob parsed as JSON but matched neither scene format.
var ErrUnknownFormat = errors.New("scene config matches no known format")

// Format identifies which wire format a stored blob uses.
type Format int

const (
	FormatUnknown Format = iota
	FormatCompact
	FormatFull
)

func (f Format) String() string {
	switch f {
	case FormatCompact:
		return "compact"
	case FormatFull:
		return "full"
	}
	return "unknown"
}

// Decoded is a stored blob resolved to exactly one format. Compact is set for
// FormatCompact and Full for FormatFull.
type Decoded struct {
	Format  Format
	Compact *models.CompactSceneConfig
	Full    *models.SceneConfig
}

// Config returns the decoded blob as a SceneConfig, decompressing compact blobs.
func (d Decoded) Config() *models.SceneConfig {
	switch d.Format {
	case FormatCompact:
		return codec.Decompress(d.Compact)
	case FormatFull:
		return d.Full
	}
	return nil
}

// ValidateCompactSceneConfig reports whether raw (a json.Unmarshal result) has the compact shape.
func ValidateCompactSceneConfig(raw any) bool {
	return compactSchema.Validate(raw) == nil
}

// ValidateSceneConfig reports whether raw (a json.Unmarshal result) has the full shape.
func ValidateSceneConfig(raw any) bool {
	return fullSchema.Validate(raw) == nil
}

// DetectFormat checks data against the compact schema first and the full schema second,
// then decodes it into the matching struct.
func DetectFormat(data []byte) (Decoded, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Decoded{}, fmt.Errorf("parse scene config: %w", err)
	}

	switch {
	case ValidateCompactSceneConfig(raw):
		var c models.CompactSceneConfig
		if err := json.Unmarshal(data, &c); err != nil {
			return Decoded{}, fmt.Errorf("decode compact scene config: %w", err)
		}
		return Decoded{Format: FormatCompact, Compact: &c}, nil
	case ValidateSceneConfig(raw):
		var full models.SceneConfig
		if err := json.Unmarshal(data, &full); err != nil {
			return Decoded{}, fmt.Errorf("decode scene config: %w", err)
		}
		return Decoded{Format: FormatFull, Full: &full}, nil
	}
	return Decoded{}, ErrUnknownFormat
}
