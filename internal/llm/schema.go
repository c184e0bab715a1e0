package llm

import "github.com/joseph-ayodele/resume-parser/constants"

// BuildResumeJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the model as the output contract and also use it locally to validate.
func BuildResumeJSONSchema() map[string]any {
	str := func() map[string]any { return map[string]any{"type": "string"} }
	strList := func() map[string]any {
		return map[string]any{"type": "array", "items": str()}
	}
	object := func(keys ...string) map[string]any {
		props := make(map[string]any, len(keys))
		for _, k := range keys {
			props[k] = str()
		}
		return map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           props,
			"required":             keys,
		}
	}

	levels := map[string]any{}
	for _, lvl := range constants.EducationLevels() {
		levels[lvl] = object("Institute", "From", "To", "Degree", "Specialization")
	}

	props := map[string]any{
		"Name": strList(),
		"PointOfCommunication": map[string]any{
			"type":  "array",
			"items": object("Email", "Linkedin", "Github"),
		},
		"PhoneNumber": strList(),
		"EducationQualification": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           levels,
			"required":             constants.EducationLevels(),
		},
		"WorkExperience": map[string]any{
			"type":  "array",
			"items": object("Organization", "FromDate", "ToDate", "Position", "Role"),
		},
		"Skills": strList(),
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required": []string{
			"Name", "PointOfCommunication", "PhoneNumber",
			"EducationQualification", "WorkExperience", "Skills",
		},
	}
}
