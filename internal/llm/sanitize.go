package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/resume-parser/constants"
)

var (
	pcKeys = []string{"Email", "Linkedin", "Github"}
	weKeys = []string{"Organization", "FromDate", "ToDate", "Position", "Role"}
	eqKeys = []string{"Institute", "From", "To", "Degree", "Specialization"}

	topLevelSynonyms = map[string]string{
		"name":                   "Name",
		"names":                  "Name",
		"pointofcommunication":   "PointOfCommunication",
		"point_of_communication": "PointOfCommunication",
		"communication":          "PointOfCommunication",
		"contact":                "PointOfCommunication",
		"phonenumber":            "PhoneNumber",
		"phonenumbers":           "PhoneNumber",
		"phone_number":           "PhoneNumber",
		"phone":                  "PhoneNumber",
		"number":                 "PhoneNumber",
		"educationqualification": "EducationQualification",
		"education":              "EducationQualification",
		"workexperience":         "WorkExperience",
		"work_experience":        "WorkExperience",
		"experience":             "WorkExperience",
		"skills":                 "Skills",
		"skill":                  "Skills",
	}
)

// SanitizeResumeJSON coerces a decoded model payload into the resume schema:
//   - renames known key synonyms and fixes key casing
//   - replaces null/blank scalars with "None" and empty string lists with ["None"]
//   - wraps single objects into lists and drops null list items
//   - maps education labels onto the four fixed levels
//   - removes unknown keys
//
// The returned notes list what was changed.
func SanitizeResumeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var in map[string]any
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var notes []string
	m := make(map[string]any, 6)
	for _, k := range orderedKeys(in, func(k string) bool { return topLevelSynonyms[strings.ToLower(k)] == k }) {
		v := in[k]
		canon, ok := topLevelSynonyms[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			notes = append(notes, k+"(unknown)")
			continue
		}
		if canon != k {
			notes = append(notes, k+"->"+canon)
		}
		if _, exists := m[canon]; !exists {
			m[canon] = v
		}
	}

	for _, k := range []string{"Name", "PhoneNumber", "Skills"} {
		m[k] = stringList(m[k], k, &notes)
	}
	m["PointOfCommunication"] = objectList(m["PointOfCommunication"], pcKeys, "PointOfCommunication", &notes)
	m["WorkExperience"] = objectList(m["WorkExperience"], weKeys, "WorkExperience", &notes)
	m["EducationQualification"] = education(m["EducationQualification"], &notes)

	out, err := json.Marshal(m)
	if err != nil {
		return nil, notes, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(notes) > 0 {
		logger.Warn("llm.extract.sanitize", "changes", notes)
	}
	return out, notes, nil
}

// scalar renders v as a string; the bool is false when v carried no value.
func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return NoneValue, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") || strings.EqualFold(s, "n/a") {
			return NoneValue, false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		b, _ := json.Marshal(t)
		return string(b), true
	}
}

func stringList(v any, key string, notes *[]string) []string {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case nil:
		*notes = append(*notes, key+"(missing)")
	default:
		items = []any{t}
		*notes = append(*notes, key+"(wrapped)")
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := scalar(it)
		if !ok && len(items) > 1 {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		out = []string{NoneValue}
	}
	return out
}

func object(v any, keys []string) (map[string]any, bool) {
	in, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	exact := make(map[string]bool, len(keys))
	for _, k := range keys {
		exact[k] = true
	}
	byLower := make(map[string]any, len(in))
	for _, k := range orderedKeys(in, func(k string) bool { return exact[k] }) {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, seen := byLower[lk]; !seen {
			byLower[lk] = in[k]
		}
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		s, _ := scalar(byLower[strings.ToLower(k)])
		out[k] = s
	}
	return out, true
}

func noneObject(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = NoneValue
	}
	return out
}

func objectList(v any, keys []string, key string, notes *[]string) []any {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		items = []any{t}
		*notes = append(*notes, key+"(wrapped)")
	case nil:
		*notes = append(*notes, key+"(missing)")
	default:
		*notes = append(*notes, key+"(type)")
	}

	out := make([]any, 0, len(items))
	for _, it := range items {
		obj, ok := object(it, keys)
		if !ok {
			*notes = append(*notes, key+"[](dropped)")
			continue
		}
		out = append(out, obj)
	}
	return out
}

func education(v any, notes *[]string) map[string]any {
	out := make(map[string]any, 4)
	if in, ok := v.(map[string]any); ok {
		isLevel := func(k string) bool {
			lvl, ok := constants.CanonicalEducationLevel(k)
			return ok && string(lvl) == k
		}
		for _, k := range orderedKeys(in, isLevel) {
			val := in[k]
			lvl, ok := constants.CanonicalEducationLevel(k)
			if !ok {
				*notes = append(*notes, "EducationQualification."+k+"(unknown)")
				continue
			}
			if _, exists := out[string(lvl)]; exists {
				continue
			}
			if obj, ok := object(val, eqKeys); ok {
				out[string(lvl)] = obj
			}
		}
	} else if v != nil {
		*notes = append(*notes, "EducationQualification(type)")
	}
	for _, lvl := range constants.EducationLevels() {
		if _, ok := out[lvl]; !ok {
			out[lvl] = noneObject(eqKeys)
		}
	}
	return out
}

// orderedKeys fixes the order colliding keys are merged in: keys already in
// canonical form first, then the rest sorted.
func orderedKeys(m map[string]any, canonical func(string) bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := canonical(keys[i]), canonical(keys[j])
		if ci != cj {
			return ci
		}
		return keys[i] < keys[j]
	})
	return keys
}
