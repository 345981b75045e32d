// schema.go implements the "schema" CLI surface and the eval-record
// validation spec.md §3/§7 call for: a JSON Schema document describing the
// Unit record shape, compiled once and used to validate every record this
// process reads off disk before it is trusted.
package unit

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/viperML/miq/internal/miqerr"
)

// SchemaURL is the identifier written into the schema header line of every
// eval record (spec.md §6).
const SchemaURL = "/miq/eval-schema.json"

// Schema is the hand-authored JSON Schema document for a Unit record.
// There is no Go struct-to-JSON-Schema generator in the example corpus
// (only a validator, santhosh-tekuri/jsonschema/v5), so this document is
// maintained by hand, the same way schemars would have generated it from
// the Rust struct definitions.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "$id": "` + SchemaURL + `",
  "title": "miq unit record",
  "type": "object",
  "required": ["kind", "result", "name"],
  "properties": {
    "kind": { "type": "string", "enum": ["fetch", "package"] },
    "result": { "type": "string", "minLength": 1 },
    "name": { "type": "string", "minLength": 1 }
  },
  "allOf": [
    {
      "if": { "properties": { "kind": { "const": "fetch" } } },
      "then": {
        "required": ["url"],
        "properties": {
          "url": { "type": "string", "minLength": 1 },
          "integrity": { "type": "string" },
          "executable": { "type": "boolean" }
        }
      }
    },
    {
      "if": { "properties": { "kind": { "const": "package" } } },
      "then": {
        "required": ["script"],
        "properties": {
          "version": { "type": "string" },
          "deps": { "type": "array", "items": { "type": "string" } },
          "script": { "type": "string" },
          "env": { "type": "object", "additionalProperties": { "type": "string" } }
        }
      }
    }
  ]
}`

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(SchemaURL, strings.NewReader(Schema)); err != nil {
		return nil, err
	}
	return c.Compile(SchemaURL)
})

// ValidateRecord validates a decoded TOML record against Schema, returning
// a miqerr.EvalSchema error on violation.
func ValidateRecord(record tomlRecord) error {
	schema, err := compiled()
	if err != nil {
		return miqerr.Wrap(miqerr.EvalSchema, err, "compiling unit-record schema")
	}

	// jsonschema validates generic JSON values (map[string]interface{}), so
	// round-trip the decoded record through encoding/json.
	raw, err := json.Marshal(record)
	if err != nil {
		return miqerr.Wrap(miqerr.EvalSchema, err, "re-encoding record for schema validation")
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return miqerr.Wrap(miqerr.EvalSchema, err, "decoding record for schema validation")
	}

	if err := schema.Validate(generic); err != nil {
		return miqerr.Wrap(miqerr.EvalSchema, err, "unit record failed schema validation")
	}
	return nil
}
