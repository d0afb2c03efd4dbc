package frame

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Comcast/darkroom/dmerror"
)

// schemaDocument is the Draft 2020-12 JSON Schema for a .fr.json document,
// used only when strict-schema mode is enabled (SPEC_FULL.md §4.2). It is
// intentionally loose on request/response body shape (those are
// user-defined) and strict on the envelope.
const schemaDocument = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["protocol", "request", "response"],
  "properties": {
    "protocol": {"enum": ["HTTP", "gRPC"]},
    "request": {
      "type": "object",
      "required": ["uri"],
      "properties": {
        "uri": {"type": "string"},
        "entrypoint": {"type": "string"},
        "header": {"type": "object"},
        "query": {"type": "object"},
        "form": {"type": "object"},
        "attempts": {
          "type": "object",
          "properties": {
            "times": {"type": "integer", "minimum": 0},
            "ms": {"type": "integer", "minimum": 0}
          }
        }
      }
    },
    "response": {
      "type": "object",
      "required": ["status"],
      "properties": {
        "status": {"type": "integer"},
        "validation": {"type": "object"}
      }
    },
    "cut": {
      "type": "object",
      "properties": {
        "from": {"type": "array", "items": {"type": "string"}},
        "to": {"type": "object"}
      }
    }
  }
}`

// compiledSchema is built lazily so that packages which never opt into
// strict-schema validation pay nothing for it.
var compiledSchema *jsonschema.Schema

func compileSchema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	compiler := jsonschema.NewCompiler()
	const resourceName = "darkroom://frame.schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader([]byte(schemaDocument))); err != nil {
		return nil, dmerror.Wrap(dmerror.KindFrameParse, "compiling frame schema", err)
	}
	sch, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindFrameParse, "compiling frame schema", err)
	}
	compiledSchema = sch
	return sch, nil
}

// ValidateSchema checks raw .fr.json bytes against the strict envelope
// schema, independent of and prior to the hand-rolled decode in Parse.
func ValidateSchema(data []byte) error {
	sch, err := compileSchema()
	if err != nil {
		return err
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return dmerror.Wrap(dmerror.KindFrameParse, "malformed frame JSON", err)
	}

	if err := sch.Validate(v); err != nil {
		return dmerror.Wrap(dmerror.KindFrameParse, "frame failed strict schema validation", err)
	}
	return nil
}

// ParseStrict runs ValidateSchema before Parse, per the --strict-schema /
// DARKROOM_STRICT_SCHEMA opt-in described in SPEC_FULL.md §4.2.
func ParseStrict(data []byte) (*Frame, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	return Parse(data)
}
