package ai

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// resultSchema constrains the raw model output before it is decoded into a
// Result. Everything beyond "reply" is optional; rubric and guide must not
// both be present.
const resultSchema = `{
  "type": "object",
  "required": ["reply"],
  "properties": {
    "reply": {"type": "string"},
    "grade": {"type": "number"},
    "rubric": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "levels"],
        "properties": {
          "name": {"type": "string"},
          "levels": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["points"],
              "properties": {
                "points": {"type": "number"},
                "comment": {"type": "string"}
              }
            }
          }
        }
      }
    },
    "guide": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["grade"],
        "properties": {
          "grade": {"type": "number"},
          "reply": {
            "anyOf": [
              {"type": "string"},
              {"type": "array", "items": {"type": "string"}}
            ]
          }
        }
      }
    }
  },
  "not": {"required": ["rubric", "guide"]}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
)

func schema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		compiledSchema = jsonschema.MustCompileString("ai/result.json", resultSchema)
	})
	return compiledSchema
}

// DecodeResult validates and decodes the raw model JSON into a Result. A
// schema violation or JSON error yields ErrMalformedResponse.
func DecodeResult(content string) (Result, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := schema().Validate(raw); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var payload struct {
		Reply  string        `json:"reply"`
		Grade  *float64      `json:"grade"`
		Rubric RubricPayload `json:"rubric"`
		Guide  GuidePayload  `json:"guide"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return Result{
		Reply:  payload.Reply,
		Grade:  payload.Grade,
		Rubric: payload.Rubric,
		Guide:  payload.Guide,
	}, nil
}
