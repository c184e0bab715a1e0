package constants

import (
	"strings"
)

// EducationLevel is a key of the EducationQualification block.
type EducationLevel string

const (
	HighSchool      EducationLevel = "HighSchool"
	HigherSecondary EducationLevel = "HigherSecondary"
	UnderGraduate   EducationLevel = "UnderGraduate"
	PostGraduate    EducationLevel = "PostGraduate"
)

var allEducationLevels = []EducationLevel{
	HighSchool,
	HigherSecondary,
	UnderGraduate,
	PostGraduate,
}

func EducationLevels() []string {
	result := make([]string, len(allEducationLevels))
	for i, lvl := range allEducationLevels {
		result[i] = string(lvl)
	}
	return result
}

// CanonicalEducationLevel maps the labels models tend to emit onto the fixed levels.
func CanonicalEducationLevel(input string) (EducationLevel, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]EducationLevel{
		"high school":      HighSchool,
		"high_school":      HighSchool,
		"secondary":        HighSchool,
		"10th":             HighSchool,
		"ssc":              HighSchool,
		"higher secondary": HigherSecondary,
		"higher_secondary": HigherSecondary,
		"12th":             HigherSecondary,
		"hsc":              HigherSecondary,
		"intermediate":     HigherSecondary,
		"undergraduate":    UnderGraduate,
		"under graduate":   UnderGraduate,
		"bachelors":        UnderGraduate,
		"bachelor":         UnderGraduate,
		"graduation":       UnderGraduate,
		"postgraduate":     PostGraduate,
		"post graduate":    PostGraduate,
		"masters":          PostGraduate,
		"master":           PostGraduate,
		"post graduation":  PostGraduate,
	}
	if lvl, ok := synonyms[normalized]; ok {
		return lvl, true
	}

	for _, lvl := range allEducationLevels {
		if normalized == strings.ToLower(string(lvl)) {
			return lvl, true
		}
	}
	return "", false
}
