// internal/workers/tour/generate-tour/validation.go
package generatetour

import "museum-tour-workers/internal/common/validation"

// GetInputSchema describes the job variables this worker reads. Other process variables
// may be present, so unknown top-level fields are allowed; preferences are closed.
func GetInputSchema() validation.JSONSchema {
	idList := map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "integer"},
	}
	stringList := map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}

	return validation.JSONSchema{
		"type":     "object",
		"required": []interface{}{"visitorId", "preferences"},
		"properties": map[string]interface{}{
			"requestId": map[string]interface{}{"type": "string", "maxLength": 128},
			"visitorId": map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 128},
			"preferences": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"museumId", "theme"},
				"properties": map[string]interface{}{
					"museumId": map[string]interface{}{"type": "integer", "minimum": 1},
					"theme": map[string]interface{}{
						"type":    "string",
						"pattern": "^(?i)(chronological|artist[_-]focused|cultural)$",
					},
					"requiredArtworkIds": idList,
					"preferredArtists":   stringList,
					"preferredMediums":   stringList,
					"preferredCultures":  stringList,
					"preferredPeriods":   stringList,
					"minStops":           map[string]interface{}{"type": "integer", "minimum": 0},
					"maxStops":           map[string]interface{}{"type": "integer", "minimum": 0},
				},
				"additionalProperties": false,
			},
		},
		"additionalProperties": true,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		"type":     "object",
		"required": []interface{}{"requestId", "tour"},
		"properties": map[string]interface{}{
			"requestId": map[string]interface{}{"type": "string"},
			"tour": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id", "name", "theme", "museumId", "visitorId", "stops", "createdAt"},
			},
		},
	}
}
