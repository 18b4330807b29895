package docai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extractionSchema pins the shape of the extraction envelope before any
// field is read. The model occasionally returns prose, arrays, or typed
// fields as strings; failing here keeps garbage out of the database.
const extractionSchema = `{
  "type": "object",
  "properties": {
    "invoice_date": {"type": ["string", "null"]},
    "amount": {"type": ["string", "null"]},
    "currency": {"type": ["string", "null"]},
    "vat_percent": {"type": ["number", "null"]},
    "confidence": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
    "issuer": {"$ref": "#/$defs/entity"},
    "recipient": {"$ref": "#/$defs/entity"},
    "raw": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "string"}
    },
    "boxes": {
      "type": ["object", "null"],
      "additionalProperties": {
        "type": "object",
        "properties": {
          "page": {"type": "integer", "minimum": 0},
          "x": {"type": "number"},
          "y": {"type": "number"},
          "w": {"type": "number"},
          "h": {"type": "number"}
        }
      }
    }
  },
  "$defs": {
    "entity": {
      "type": ["object", "null"],
      "properties": {
        "name": {"type": ["string", "null"]},
        "vat_id": {"type": ["string", "null"]},
        "address": {"type": ["string", "null"]},
        "iban": {"type": ["string", "null"]},
        "website": {"type": ["string", "null"]}
      }
    }
  }
}`

var compiledExtractionSchema = jsonschema.MustCompileString("extraction.json", extractionSchema)

func validateExtractionEnvelope(raw []byte) error {
	var decoded any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&decoded); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := compiledExtractionSchema.Validate(decoded); err != nil {
		return fmt.Errorf("envelope schema: %w", err)
	}
	return nil
}
