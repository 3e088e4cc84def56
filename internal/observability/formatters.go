// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/tbarbosa/gitcv/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRepositories outputs a summary of the collected repositories.
func (p *Printer) PrintRepositories(repos []types.Repository) {
	if len(repos) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total repositories: %d\n\n", len(repos)))

	count := min(len(repos), maxItemsToShow)
	for i := 0; i < count; i++ {
		repo := repos[i]
		sb.WriteString(fmt.Sprintf("• %s\n", repo.Name))

		details := []string{}
		if repo.PrimaryLanguage != "" {
			details = append(details, repo.PrimaryLanguage)
		}
		details = append(details, fmt.Sprintf("%d stars", repo.Stars))
		details = append(details, fmt.Sprintf("importance %d", repo.Importance))
		sb.WriteString(fmt.Sprintf("  %s\n", strings.Join(details, ", ")))

		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(repos) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more repositories", len(repos)-maxItemsToShow))
	}

	p.printBox("COLLECTED REPOSITORIES", sb.String())
}

// PrintJobDescription outputs a human-readable summary of the parsed job.
func (p *Printer) PrintJobDescription(job *types.JobDescription) {
	if job == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Company:  %s\n", job.Company))
	sb.WriteString(fmt.Sprintf("Role:     %s\n", job.Title))

	if len(job.RequiredSkills) > 0 {
		sb.WriteString("\nRequired skills:\n")
		count := min(len(job.RequiredSkills), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", job.RequiredSkills[i]))
		}
		if len(job.RequiredSkills) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(job.RequiredSkills)-maxItemsToShow))
		}
	}

	if len(job.NiceToHave) > 0 {
		sb.WriteString("\nNice-to-haves:\n")
		count := min(len(job.NiceToHave), 3)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", job.NiceToHave[i]))
		}
		if len(job.NiceToHave) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(job.NiceToHave)-3))
		}
	}

	p.printBox("PARSED JOB DESCRIPTION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRankedRepositories outputs the top ranked repositories with their
// rationales.
func (p *Printer) PrintRankedRepositories(ranked []types.RankedRepository) {
	if len(ranked) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total repositories ranked: %d\n\n", len(ranked)))

	count := min(len(ranked), maxItemsToShow)
	for i := 0; i < count; i++ {
		entry := ranked[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", entry.Rank, entry.Name))

		rationale := entry.Rationale
		if len(rationale) > 50 {
			rationale = rationale[:47] + "..."
		}
		if rationale != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", rationale))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(ranked) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more repositories", len(ranked)-maxItemsToShow))
	}

	p.printBox("RANKED REPOSITORIES", sb.String())
}

// PrintResumeSummary outputs section counts for the generated content.
func (p *Printer) PrintResumeSummary(content *types.ResumeContent) {
	if content == nil {
		return
	}

	var sb strings.Builder

	if len(content.Skills) > 0 {
		categories := make([]string, 0, len(content.Skills))
		for _, g := range content.Skills {
			categories = append(categories, g.Category)
		}
		line := strings.Join(categories, ", ")
		if len(line) > 40 {
			line = line[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("Skills:     %d groups (%s)\n", len(content.Skills), line))
	}

	sb.WriteString(fmt.Sprintf("Projects:   %d\n", len(content.Projects)))
	for i, project := range content.Projects {
		if i >= maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(content.Projects)-maxItemsToShow))
			break
		}
		sb.WriteString(fmt.Sprintf("  • %s\n", project.Title))
	}

	sb.WriteString(fmt.Sprintf("Experience: %d entries\n", len(content.Experience)))
	sb.WriteString(fmt.Sprintf("Education:  %d entries", len(content.Education)))

	p.printBox("GENERATED RESUME CONTENT", sb.String())
}
