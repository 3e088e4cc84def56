// Package generation turns the frozen selection and the job description
// into structured resume content. The model writes the prose; this package
// keeps it honest by stripping any project it was not given.
package generation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tbarbosa/gitcv/internal/llm"
	"github.com/tbarbosa/gitcv/internal/prompts"
	"github.com/tbarbosa/gitcv/internal/schemas"
	"github.com/tbarbosa/gitcv/internal/types"
)

// Contexts carries the user-maintained background material the generator
// may draw on. Everything here comes from configuration; the model is told
// not to invent beyond it.
type Contexts struct {
	Education  []types.ResumeItem
	Experience []types.ResumeItem

	// Optional free-text guidance appended to the corresponding sections.
	EducationContext  string
	ExperienceContext string
	SkillsContext     string

	// Language is the output language code, "en" or "pt".
	Language string
}

// GenerateResumeContent produces resume content for the selected projects.
// Projects in the response that reference anything outside sel are dropped,
// not errors; a response in which nothing matches is rejected and retried.
func GenerateResumeContent(ctx context.Context, client llm.Client, sel types.SelectionResult, job *types.JobDescription, contexts Contexts, maxRetries int, log *zap.Logger) (*types.ResumeContent, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(sel.Chosen)+len(sel.ManuallyAdded) == 0 {
		return nil, fmt.Errorf("selection is empty; nothing to write about")
	}

	prompt := prompts.MustFormat("generation.json", "generate-resume", map[string]string{
		"Language":   languageName(contexts.Language),
		"JobContext": jobContext(job),
		"Projects":   projectSummaries(sel),
		"Profile":    profileSummary(contexts),
		"Schema":     schemas.MustGet(schemas.ResumeContent),
	})

	urls, names := selectionIndex(sel)

	var content types.ResumeContent
	err := llm.GenerateValidated(ctx, client, llm.Request{
		Prompt:     prompt,
		SchemaName: schemas.ResumeContent,
		Tier:       llm.TierAdvanced,
		MaxRetries: maxRetries,
	}, &content, func() error {
		for _, p := range content.Projects {
			if matchesSelection(p, urls, names) {
				return nil
			}
		}
		return fmt.Errorf("no project in the response matches the selected projects; only write about the projects listed in the prompt")
	})
	if err != nil {
		return nil, err
	}

	kept := content.Projects[:0]
	for _, p := range content.Projects {
		if matchesSelection(p, urls, names) {
			kept = append(kept, p)
			continue
		}
		log.Warn("dropping project not in the selection",
			zap.String("title", p.Title),
			zap.String("link", p.Link))
	}
	content.Projects = kept

	log.Info("resume content generated",
		zap.Int("skill_groups", len(content.Skills)),
		zap.Int("projects", len(content.Projects)),
		zap.Int("experience", len(content.Experience)),
		zap.Int("education", len(content.Education)))
	return &content, nil
}

// selectionIndex builds the lookup sets used to decide whether a generated
// project refers to something the user actually selected.
func selectionIndex(sel types.SelectionResult) (urls map[string]bool, names map[string]bool) {
	urls = make(map[string]bool, len(sel.Chosen)+len(sel.ManuallyAdded))
	names = make(map[string]bool, len(sel.Chosen)+len(sel.ManuallyAdded))
	for _, r := range sel.Chosen {
		urls[r.URL] = true
		names[foldName(r.Name)] = true
	}
	for _, m := range sel.ManuallyAdded {
		if m.URL != "" {
			urls[m.URL] = true
		}
		names[foldName(m.Name)] = true
	}
	return urls, names
}

func matchesSelection(p types.ProjectEntry, urls, names map[string]bool) bool {
	if p.Link != "" && urls[p.Link] {
		return true
	}
	return names[foldName(p.Title)]
}

func foldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// jobContext renders the job description lines used in generation prompts.
func jobContext(job *types.JobDescription) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", orNotSpecified(job.Title))
	fmt.Fprintf(&sb, "Company: %s\n", orNotSpecified(job.Company))
	fmt.Fprintf(&sb, "Required skills: %s\n", orNotSpecified(strings.Join(job.RequiredSkills, ", ")))
	fmt.Fprintf(&sb, "Nice to have: %s", orNotSpecified(strings.Join(job.NiceToHave, ", ")))
	return sb.String()
}

func projectSummaries(sel types.SelectionResult) string {
	var sb strings.Builder
	for _, r := range sel.Chosen {
		fmt.Fprintf(&sb, "- name: %s\n  url: %s\n", r.Name, r.URL)
		if r.PrimaryLanguage != "" {
			fmt.Fprintf(&sb, "  primary language: %s\n", r.PrimaryLanguage)
		}
		if r.Description != "" {
			fmt.Fprintf(&sb, "  description: %s\n", r.Description)
		}
		if r.Stars > 0 || r.Forks > 0 {
			fmt.Fprintf(&sb, "  stars: %d, forks: %d\n", r.Stars, r.Forks)
		}
		if r.ReadmeExcerpt != "" {
			fmt.Fprintf(&sb, "  readme: %s\n", r.ReadmeExcerpt)
		}
	}
	for _, m := range sel.ManuallyAdded {
		fmt.Fprintf(&sb, "- name: %s\n", m.Name)
		if m.URL != "" {
			fmt.Fprintf(&sb, "  url: %s\n", m.URL)
		} else {
			fmt.Fprintf(&sb, "  url: none, omit the link for this project\n")
		}
		if m.Description != "" {
			fmt.Fprintf(&sb, "  description: %s\n", m.Description)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func profileSummary(contexts Contexts) string {
	var sb strings.Builder

	sb.WriteString("Experience:\n")
	sb.WriteString(itemsSummary(contexts.Experience))
	if contexts.ExperienceContext != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", contexts.ExperienceContext)
	}

	sb.WriteString("\nEducation:\n")
	sb.WriteString(itemsSummary(contexts.Education))
	if contexts.EducationContext != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", contexts.EducationContext)
	}

	if contexts.SkillsContext != "" {
		fmt.Fprintf(&sb, "\nSkills notes: %s\n", contexts.SkillsContext)
	}

	return strings.TrimRight(sb.String(), "\n")
}

func itemsSummary(items []types.ResumeItem) string {
	if len(items) == 0 {
		return "Not specified\n"
	}
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "- %s", item.Title)
		if item.Date != "" {
			fmt.Fprintf(&sb, " (%s)", item.Date)
		}
		if item.Location != "" {
			fmt.Fprintf(&sb, ", %s", item.Location)
		}
		sb.WriteString("\n")
		if item.Description != "" {
			fmt.Fprintf(&sb, "  %s\n", item.Description)
		}
		for _, line := range item.Items {
			fmt.Fprintf(&sb, "  * %s\n", line)
		}
	}
	return sb.String()
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return s
}

// languageName maps an output language code to the name the prompt uses.
func languageName(code string) string {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "pt":
		return "Portuguese (Brazil)"
	case "en", "":
		return "English"
	default:
		return code
	}
}
