package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// runSchemaJSON is the structural contract for run documents arriving
// from the upstream results service. It pins the fields the correlator
// and exporters depend on; unknown fields pass through untouched.
const runSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "run.schema.json",
  "type": "object",
  "required": ["id", "status", "results"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "suite_id": {"type": "string"},
    "test_id": {"type": "string"},
    "status": {
      "enum": ["pending", "running", "passed", "failed", "error", "cancelled"]
    },
    "created_at": {"type": "string"},
    "started_at": {"type": "string"},
    "completed_at": {"type": "string"},
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "test_name", "status"],
        "properties": {
          "id": {"type": "string"},
          "test_name": {"type": "string"},
          "status": {"type": "string"},
          "duration_ms": {"type": "integer", "minimum": 0},
          "steps": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["action", "status"],
              "properties": {
                "action": {"type": "string"},
                "status": {"type": "string"},
                "duration_ms": {"type": "integer", "minimum": 0},
                "timestamp_ms": {"type": "integer"}
              }
            }
          },
          "network": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["method", "url"],
              "properties": {
                "method": {"type": "string"},
                "url": {"type": "string"},
                "status_code": {"type": "integer"},
                "timestamp_ms": {"type": "integer"},
                "duration_ms": {"type": "integer", "minimum": 0}
              }
            }
          },
          "console": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["level", "message"],
              "properties": {
                "level": {"type": "string"},
                "message": {"type": "string"},
                "timestamp_ms": {"type": "integer"}
              }
            }
          }
        }
      }
    }
  }
}`

var (
	runSchema   *jsonschema.Schema
	compileOnce sync.Once
	compileErr  error
)

// compileRunSchema compiles the embedded run schema once.
func compileRunSchema() error {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(runSchemaJSON)))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal run schema: %w", err)
			return
		}

		if err := compiler.AddResource("run.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add run schema resource: %w", err)
			return
		}

		runSchema, err = compiler.Compile("run.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile run schema: %w", err)
			return
		}
	})

	return compileErr
}

// ValidateRunDocument validates raw JSON data against the run schema.
func ValidateRunDocument(data []byte) error {
	if err := compileRunSchema(); err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := runSchema.Validate(v); err != nil {
		return fmt.Errorf("run validation failed: %w", err)
	}

	return nil
}
