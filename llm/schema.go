package llm

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/drivevox/validator/errs"
)

// RubricSchema is the JSON Schema a model's reply must satisfy (spec §6.2):
// three rubric objects, an overall score, a validity flag, and suggestions.
const RubricSchema = `{
  "type": "object",
  "required": ["assessment"],
  "properties": {
    "assessment": {
      "type": "object",
      "required": [
        "semantic_correctness",
        "state_change_confirmation",
        "unambiguous_expression",
        "overall_score",
        "valid"
      ],
      "properties": {
        "semantic_correctness": {"$ref": "#/$defs/rubric"},
        "state_change_confirmation": {"$ref": "#/$defs/rubric"},
        "unambiguous_expression": {"$ref": "#/$defs/rubric"},
        "overall_score": {"type": "number", "minimum": 0, "maximum": 1},
        "valid": {"type": "boolean"},
        "suggestions": {"type": "array", "items": {"type": "string"}}
      }
    }
  },
  "$defs": {
    "rubric": {
      "type": "object",
      "required": ["score", "comment"],
      "properties": {
        "score": {"type": "number", "minimum": 0, "maximum": 1},
        "comment": {"type": "string"}
      }
    }
  }
}`

// Rubric is one scored dimension as decoded from the model's reply.
type Rubric struct {
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// Assessment is the decoded shape of a schema-valid reply.
type Assessment struct {
	SemanticCorrectness     Rubric   `json:"semantic_correctness"`
	StateChangeConfirmation Rubric   `json:"state_change_confirmation"`
	UnambiguousExpression   Rubric   `json:"unambiguous_expression"`
	OverallScore            float64  `json:"overall_score"`
	Valid                   bool     `json:"valid"`
	Suggestions             []string `json:"suggestions"`
}

type assessmentEnvelope struct {
	Assessment Assessment `json:"assessment"`
}

// compiledRubricSchema is built once; RubricSchema is a package constant so
// compilation cannot fail at runtime from caller-supplied input.
var compiledRubricSchema = mustCompile(RubricSchema)

func mustCompile(schemaJSON string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("llm: invalid rubric schema literal: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("rubric.json", doc); err != nil {
		panic(fmt.Sprintf("llm: add rubric schema resource: %v", err))
	}
	schema, err := c.Compile("rubric.json")
	if err != nil {
		panic(fmt.Sprintf("llm: compile rubric schema: %v", err))
	}
	return schema
}

// ValidateAndDecode validates raw against RubricSchema and, if valid, decodes
// it into an Assessment. A schema violation or malformed JSON surfaces as
// errs.Protocol (spec §4.7 step 5, §7).
func ValidateAndDecode(raw string) (Assessment, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Assessment{}, errs.Wrap(errs.Protocol, "decode LLM response as JSON", err)
	}
	if err := compiledRubricSchema.Validate(doc); err != nil {
		return Assessment{}, errs.Wrap(errs.Protocol, "LLM response does not match rubric schema", err)
	}
	var env assessmentEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Assessment{}, errs.Wrap(errs.Protocol, "unmarshal validated LLM response", err)
	}
	return env.Assessment, nil
}
