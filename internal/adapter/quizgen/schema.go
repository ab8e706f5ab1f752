package quizgen

// draftsSchema is the wire contract for the synthesizer's LLM response: a non-empty
// array of true/false or four-option multiple-choice items.
const draftsSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "oneOf": [
      {
        "type": "object",
        "required": ["question", "type", "answer"],
        "properties": {
          "question": {"type": "string", "minLength": 1},
          "type": {"const": "TF"},
          "answer": {"type": "string", "pattern": "^(?i)(true|false)$"}
        }
      },
      {
        "type": "object",
        "required": ["question", "type", "answer", "options"],
        "properties": {
          "question": {"type": "string", "minLength": 1},
          "type": {"const": "MCQ"},
          "answer": {"enum": ["a", "b", "c", "d"]},
          "options": {
            "type": "array",
            "minItems": 4,
            "maxItems": 4,
            "items": {"type": "string", "minLength": 1}
          }
        }
      }
    ]
  }
}`
