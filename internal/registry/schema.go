package registry

const scoringModelSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["categories", "scoring_mechanics"],
  "properties": {
    "model": {"type": "string"},
    "version": {"type": ["string", "number"]},
    "updated_at": {"type": "string"},
    "categories": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "max_deduction": {"type": ["integer", "null"], "minimum": 0}
        }
      }
    },
    "scoring_mechanics": {
      "type": "object",
      "required": ["score_start"],
      "properties": {
        "score_start": {"type": "integer"},
        "score_floor": {"type": "integer"},
        "score_ceiling": {"type": "integer"},
        "blocker_ceiling": {"type": "integer"},
        "aggregate_level": {"type": "string"},
        "deduct_per_occurrence": {"type": "boolean"},
        "category_caps": {
          "type": "object",
          "additionalProperties": {"type": "integer", "minimum": 0}
        }
      }
    },
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "category": {"enum": ["SPERRE_96", "VESENTLIG", "MINDRE", ""]},
          "blocks_top_score": {"type": "boolean"},
          "message": {"type": "string"}
        }
      }
    }
  }
}`
