package openai

import "fmt"

// ArtifactResponseSchema is the JSON schema every extraction response must
// satisfy. Artifacts may carry fields beyond the required ones; those are
// kept as free-form content.
const ArtifactResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "artifacts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "kind": {
            "type": "string",
            "enum": ["learning", "topic"]
          },
          "title": {
            "type": "string",
            "minLength": 1
          },
          "summary": {
            "type": "string"
          },
          "tags": {
            "type": "array",
            "items": {"type": "string"}
          }
        },
        "required": ["title", "summary"],
        "additionalProperties": true
      }
    }
  },
  "required": ["artifacts"],
  "additionalProperties": false
}`

const outputInstructionsTemplate = `%s

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Every artifact needs a short, specific title and a one to three sentence summary.
- Only include knowledge that is stated or clearly implied by the provided material. Do not hallucinate.
- Extra properties on an artifact are allowed when they carry useful structure (for example "examples" or "steps").
- If nothing worth keeping can be found, return {"artifacts": []}.
- The JSON must parse without errors; no trailing commas and no extraneous text outside the object.`

// buildSystemPrompt combines the caller's instruction text with the output
// contract and the embedded schema.
func buildSystemPrompt(instructions string) string {
	return fmt.Sprintf(outputInstructionsTemplate, instructions, ArtifactResponseSchema)
}
