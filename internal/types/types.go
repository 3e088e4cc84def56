// Package types provides the data records passed between pipeline stages.
// Every value is constructed once by its producing stage and never mutated
// afterward; stages communicate by handing a new value downstream.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// Repository is a normalized public repository record. Identity is the URL;
// one instance exists per distinct repository.
type Repository struct {
	Name              string           `json:"name"`
	URL               string           `json:"url"`
	Description       string           `json:"description,omitempty"`
	Stars             int              `json:"stars"`
	Forks             int              `json:"forks"`
	SizeKB            int              `json:"size_kb,omitempty"`
	PrimaryLanguage   string           `json:"primary_language,omitempty"`
	LanguageBreakdown map[string]int64 `json:"language_breakdown,omitempty"`
	ReadmeExcerpt     string           `json:"readme_excerpt,omitempty"`
	LastActivity      time.Time        `json:"last_activity"`
	CommitCount       int              `json:"commit_count"`
	Archived          bool             `json:"archived,omitempty"`
	Fork              bool             `json:"fork,omitempty"`
	Importance        int              `json:"importance"`
}

// Identity returns the stable identifier used for ranking and selection.
func (r Repository) Identity() string {
	return r.URL
}

// JobDescription is the structured form of a job posting. Produced once per
// run from exactly one raw job text.
type JobDescription struct {
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	RequiredSkills []string `json:"required_skills"`
	NiceToHave     []string `json:"nice_to_have,omitempty"`
	RawText        string   `json:"raw_text,omitempty"`
}

// RankedRepository pairs a repository with its ordinal relevance rank
// (1 = most relevant) and the model's rationale for that placement.
type RankedRepository struct {
	Repository `json:"repository"`
	Rank       int    `json:"rank"`
	Rationale  string `json:"rationale"`
}

// ManualRepository is a user-supplied project that was not collected from
// the profile. A name plus either a URL or a description is required; when
// no URL exists the selection step assigns a synthetic "manual:" identity.
type ManualRepository struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// SelectionResult is the frozen output of the interactive checkpoint: the
// chosen repositories in user order plus any manual additions. It is the
// sole repository input to content generation.
type SelectionResult struct {
	Chosen        []Repository       `json:"chosen"`
	ManuallyAdded []ManualRepository `json:"manually_added,omitempty"`
}

// Identities returns the identities of every selected project, chosen
// repositories first, preserving user order.
func (s SelectionResult) Identities() []string {
	ids := make([]string, 0, len(s.Chosen)+len(s.ManuallyAdded))
	for _, r := range s.Chosen {
		ids = append(ids, r.Identity())
	}
	for _, m := range s.ManuallyAdded {
		ids = append(ids, m.ID)
	}
	return ids
}

// SkillGroup is one category of skills in the generated content.
type SkillGroup struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// ProjectEntry is one generated project section, referencing a selected
// repository by title and link.
type ProjectEntry struct {
	Title string   `json:"title"`
	Link  string   `json:"link,omitempty"`
	Items []string `json:"items"`
}

// ExperienceEntry is one generated professional experience section.
type ExperienceEntry struct {
	Company         string   `json:"company"`
	Position        string   `json:"position"`
	Location        string   `json:"location,omitempty"`
	Date            string   `json:"date,omitempty"`
	Accomplishments []string `json:"accomplishments"`
}

// EducationEntry is one generated education section.
type EducationEntry struct {
	Institution     string   `json:"institution"`
	Degree          string   `json:"degree"`
	Location        string   `json:"location,omitempty"`
	Date            string   `json:"date,omitempty"`
	Accomplishments []string `json:"accomplishments,omitempty"`
}

// ResumeContent is the structured resume produced by the content generator
// from a SelectionResult and a JobDescription.
type ResumeContent struct {
	Skills     []SkillGroup      `json:"skills_by_category"`
	Projects   []ProjectEntry    `json:"projects"`
	Experience []ExperienceEntry `json:"experience"`
	Education  []EducationEntry  `json:"education"`
}

// PersonalInfo holds the static candidate fields substituted into the
// document header. It comes from configuration, never from the model.
type PersonalInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Site     string `json:"site,omitempty"`
}

// ResumeItem is a user-maintained profile entry (education, experience or
// long-lived project) given to the generator as grounding material.
type ResumeItem struct {
	Title       string   `json:"title"`
	Date        string   `json:"date,omitempty"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Link        string   `json:"link,omitempty"`
	Items       []string `json:"items,omitempty"`
}
