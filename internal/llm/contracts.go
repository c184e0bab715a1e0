package llm

import "context"

// NoneValue fills every field the model could not find.
const NoneValue = "None"

// SubEQInfo is one education level.
type SubEQInfo struct {
	Institute      string `json:"Institute"`
	From           string `json:"From"`
	To             string `json:"To"`
	Degree         string `json:"Degree"`
	Specialization string `json:"Specialization"`
}

// EQInfo groups the education levels a resume can mention.
type EQInfo struct {
	HighSchool      SubEQInfo `json:"HighSchool"`
	HigherSecondary SubEQInfo `json:"HigherSecondary"`
	UnderGraduate   SubEQInfo `json:"UnderGraduate"`
	PostGraduate    SubEQInfo `json:"PostGraduate"`
}

// PCInfo is a point of communication.
type PCInfo struct {
	Email    string `json:"Email"`
	Linkedin string `json:"Linkedin"`
	Github   string `json:"Github"`
}

// WEInfo is one work experience entry.
type WEInfo struct {
	Organization string `json:"Organization"`
	FromDate     string `json:"FromDate"`
	ToDate       string `json:"ToDate"`
	Position     string `json:"Position"`
	Role         string `json:"Role"`
}

// ResumeFields is the normalized shape we want from the LLM.
type ResumeFields struct {
	Name                   []string `json:"Name"`
	PointOfCommunication   []PCInfo `json:"PointOfCommunication"`
	PhoneNumber            []string `json:"PhoneNumber"`
	EducationQualification EQInfo   `json:"EducationQualification"`
	WorkExperience         []WEInfo `json:"WorkExperience"`
	Skills                 []string `json:"Skills"`
}

type ExtractRequest struct {
	Text     string // already truncated by the caller to MaxTextChars
	FileName string // hint only, never sent when empty
}

// FieldExtractor is the interface our pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (ResumeFields, []byte /*rawJSON*/, error)
}
