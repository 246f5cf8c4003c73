package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// metadataSchemaJSON constrains the register frame's metadata object:
// hostname and project are required strings, status (if present) must be
// one of the declared enum values, callback_url (if present) must be a
// string. Anything else is a ProtocolError rather than a silently-accepted
// zero value.
const metadataSchemaJSON = `{
	"type": "object",
	"properties": {
		"hostname": {"type": "string", "minLength": 1},
		"project": {"type": "string", "minLength": 1},
		"status": {"type": "string", "enum": ["idle", "active", "busy", "disconnected"]},
		"callback_url": {"type": "string"}
	},
	"required": ["hostname", "project"],
	"additionalProperties": true
}`

var (
	metadataSchemaOnce sync.Once
	metadataSchema      *gojsonschema.Schema
	metadataSchemaErr   error
)

func loadMetadataSchema() (*gojsonschema.Schema, error) {
	metadataSchemaOnce.Do(func() {
		loader := gojsonschema.NewStringLoader(metadataSchemaJSON)
		metadataSchema, metadataSchemaErr = gojsonschema.NewSchema(loader)
	})
	return metadataSchema, metadataSchemaErr
}

// validateMetadata checks raw metadata JSON against metadataSchemaJSON
// before the Registry ever upserts it, per SPEC_FULL.md's register
// hardening note.
func validateMetadata(raw json.RawMessage) error {
	schema, err := loadMetadataSchema()
	if err != nil {
		return fmt.Errorf("load metadata schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate metadata: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid metadata: %v", msgs)
	}
	return nil
}
