package llm

import (
	"strings"
	"unicode/utf8"
)

// MaxTextChars is the most resume text, in characters, ever handed to the model.
const MaxTextChars = 2500

// TruncateText keeps the first n characters of s without splitting a rune.
func TruncateText(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// BuildSystemPrompt describes the extraction task and the None convention.
func BuildSystemPrompt() string {
	parts := []string{
		"You are an information extractor for resumes and curricula vitae (CV) given as plain text.",
		"Extract the candidate's Name, PointOfCommunication (Email, Linkedin, Github), PhoneNumber,",
		"EducationQualification (HighSchool, HigherSecondary, UnderGraduate, PostGraduate with Institute, From, To, Degree, Specialization),",
		"WorkExperience (Organization, FromDate, ToDate, Position, Role) and Skills.",
		"Return ONLY a JSON object that matches the provided JSON Schema.",
		"Never output null. If a value is not present, write the string \"None\"; if a list is empty, use [\"None\"].",
		"Copy values as they appear in the text; do not invent dates, institutes or organizations.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the resume text. Text longer than MaxTextChars is cut.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if name := strings.TrimSpace(req.FileName); name != "" {
		b.WriteString("Filename: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString("\nResume text:\n")
	b.WriteString(TruncateText(strings.TrimSpace(req.Text), MaxTextChars))
	return b.String()
}
