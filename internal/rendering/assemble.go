package rendering

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/tbarbosa/gitcv/internal/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Length caps applied to generated content before substitution. Oversized
// content is cut, never rejected.
const (
	maxBulletsPerEntry = 6
	maxBulletRunes     = 280
	maxSkillItems      = 14
)

// TemplateData is the fully escaped input of the document template. Link
// fields stay raw because they go into \href arguments.
type TemplateData struct {
	JobLine     string
	Name        string
	ContactLine string
	Titles      SectionTitles
	Skills      []SkillLine
	Projects    []Entry
	Experience  []Entry
	Education   []Entry
}

// SkillLine is one "Category: a, b, c" line of the skills section.
type SkillLine struct {
	Category string
	Items    string
}

// Entry is one titled block in a document section.
type Entry struct {
	Title    string
	Link     string
	Right    string
	Subtitle string
	Date     string
	Bullets  []string
}

// Assemble substitutes content and personal info into the document
// template. Well-formed content always assembles; oversized sections are
// truncated rather than rejected.
func Assemble(info types.PersonalInfo, job *types.JobDescription, content *types.ResumeContent, lang Language) (string, error) {
	tmpl, err := parseTemplate()
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, buildTemplateData(info, job, content, lang)); err != nil {
		return "", &AssemblyError{Message: "executing the document template", Cause: err}
	}
	return out.String(), nil
}

// parseTemplate parses the embedded template. LaTeX is full of braces, so
// the actions use << >> delimiters.
func parseTemplate() (*template.Template, error) {
	raw, err := templateFS.ReadFile("templates/resume.tex.tmpl")
	if err != nil {
		return nil, &AssemblyError{Message: "reading the embedded template", Cause: err}
	}

	tmpl, err := template.New("resume").Delims("<<", ">>").Parse(string(raw))
	if err != nil {
		return nil, &AssemblyError{Message: "parsing the document template", Cause: err}
	}
	return tmpl, nil
}

func buildTemplateData(info types.PersonalInfo, job *types.JobDescription, content *types.ResumeContent, lang Language) *TemplateData {
	data := &TemplateData{
		Name:        EscapeLaTeX(info.FullName),
		ContactLine: contactLine(info),
		Titles:      titlesFor(lang),
	}

	if job != nil && job.Title != "" {
		line := job.Title
		if job.Company != "" {
			line += " at " + job.Company
		}
		data.JobLine = EscapeLaTeX(line)
	}

	for _, g := range content.Skills {
		items := g.Items
		if len(items) > maxSkillItems {
			items = items[:maxSkillItems]
		}
		data.Skills = append(data.Skills, SkillLine{
			Category: EscapeStyled(g.Category),
			Items:    EscapeStyled(strings.Join(items, ", ")),
		})
	}

	for _, p := range content.Projects {
		data.Projects = append(data.Projects, Entry{
			Title:   EscapeStyled(p.Title),
			Link:    p.Link,
			Bullets: bullets(p.Items),
		})
	}

	for _, e := range content.Experience {
		data.Experience = append(data.Experience, Entry{
			Title:    EscapeStyled(e.Company),
			Right:    EscapeStyled(e.Location),
			Subtitle: EscapeStyled(e.Position),
			Date:     EscapeStyled(e.Date),
			Bullets:  bullets(e.Accomplishments),
		})
	}

	for _, e := range content.Education {
		data.Education = append(data.Education, Entry{
			Title:    EscapeStyled(e.Institution),
			Right:    EscapeStyled(e.Location),
			Subtitle: EscapeStyled(e.Degree),
			Date:     EscapeStyled(e.Date),
			Bullets:  bullets(e.Accomplishments),
		})
	}

	return data
}

// contactLine joins the header segments with the \ $|$ \ separator: city
// and country, then mailto, phone, and profile links.
func contactLine(info types.PersonalInfo) string {
	var segments []string

	switch {
	case info.City != "" && info.Country != "":
		segments = append(segments, EscapeLaTeX(info.City)+", "+EscapeLaTeX(info.Country))
	case info.City != "":
		segments = append(segments, EscapeLaTeX(info.City))
	case info.Country != "":
		segments = append(segments, EscapeLaTeX(info.Country))
	}

	if info.Email != "" {
		segments = append(segments, fmt.Sprintf(`\href{mailto:%s}{%s}`, info.Email, EscapeLaTeX(info.Email)))
	}
	if info.Phone != "" {
		segments = append(segments, EscapeLaTeX(info.Phone))
	}
	for _, u := range []string{info.LinkedIn, info.GitHub, info.Site} {
		if u != "" {
			segments = append(segments, fmt.Sprintf(`\href{%s}{%s}`, u, EscapeLaTeX(stripURL(u))))
		}
	}

	return strings.Join(segments, ` \ $|$ \ `)
}

// stripURL shortens a URL for display: scheme and www. dropped, trailing
// slash removed.
func stripURL(u string) string {
	s := strings.TrimPrefix(u, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, "/")
}

// bullets caps count and length, then escapes.
func bullets(items []string) []string {
	if len(items) > maxBulletsPerEntry {
		items = items[:maxBulletsPerEntry]
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, EscapeStyled(truncate(item, maxBulletRunes)))
	}
	return out
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
