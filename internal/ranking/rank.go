// Package ranking orders collected repositories by relevance to a job
// description. The order comes from the model; this package enforces that
// it is a true permutation of the input before anyone consumes it.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tbarbosa/gitcv/internal/llm"
	"github.com/tbarbosa/gitcv/internal/prompts"
	"github.com/tbarbosa/gitcv/internal/schemas"
	"github.com/tbarbosa/gitcv/internal/types"
)

// readmePromptLimit caps how much README text goes into the prompt per
// repository.
const readmePromptLimit = 300

// rankedEntry is the model's wire format for one ranking decision.
type rankedEntry struct {
	URL       string `json:"url"`
	Rank      int    `json:"rank"`
	Rationale string `json:"rationale"`
}

// rankingResponse is the model's wire format for the whole ranking.
type rankingResponse struct {
	Rankings []rankedEntry `json:"rankings"`
}

// RankRepositories asks the model to order repos by relevance to job. The
// result is a permutation of the input: every repository appears exactly
// once with a distinct rank in 1..N and a non-empty rationale. Model output
// that violates this is rejected and re-prompted rather than repaired.
func RankRepositories(ctx context.Context, client llm.Client, repos []types.Repository, job *types.JobDescription, maxRetries int, log *zap.Logger) ([]types.RankedRepository, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("no repositories to rank")
	}

	prompt := prompts.MustFormat("ranking.json", "rank-repositories", map[string]string{
		"JobContext":   jobContext(job),
		"Repositories": repoSummaries(repos),
		"Count":        fmt.Sprintf("%d", len(repos)),
		"Schema":       schemas.MustGet(schemas.RankedRepositories),
	})

	var resp rankingResponse
	err := llm.GenerateValidated(ctx, client, llm.Request{
		Prompt:     prompt,
		SchemaName: schemas.RankedRepositories,
		Tier:       llm.TierStandard,
		MaxRetries: maxRetries,
	}, &resp, func() error {
		return validatePermutation(resp.Rankings, repos)
	})
	if err != nil {
		return nil, err
	}

	byURL := make(map[string]types.Repository, len(repos))
	for _, repo := range repos {
		byURL[repo.Identity()] = repo
	}

	ranked := make([]types.RankedRepository, 0, len(resp.Rankings))
	for _, entry := range resp.Rankings {
		ranked = append(ranked, types.RankedRepository{
			Repository: byURL[entry.URL],
			Rank:       entry.Rank,
			Rationale:  strings.TrimSpace(entry.Rationale),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

	log.Info("repositories ranked", zap.Int("count", len(ranked)))
	return ranked, nil
}

// validatePermutation rejects rankings that are not a permutation of the
// input repositories with distinct ranks 1..N.
func validatePermutation(entries []rankedEntry, repos []types.Repository) error {
	known := make(map[string]bool, len(repos))
	for _, repo := range repos {
		known[repo.Identity()] = true
	}

	var problems []string
	if len(entries) != len(repos) {
		problems = append(problems, fmt.Sprintf("expected %d entries, got %d", len(repos), len(entries)))
	}

	seenURL := make(map[string]bool, len(entries))
	seenRank := make(map[int]bool, len(entries))
	for _, entry := range entries {
		switch {
		case !known[entry.URL]:
			problems = append(problems, fmt.Sprintf("entry references unknown repository url %q", entry.URL))
		case seenURL[entry.URL]:
			problems = append(problems, fmt.Sprintf("repository %q appears more than once", entry.URL))
		default:
			seenURL[entry.URL] = true
		}

		if entry.Rank < 1 || entry.Rank > len(repos) {
			problems = append(problems, fmt.Sprintf("rank %d is outside 1..%d", entry.Rank, len(repos)))
		} else if seenRank[entry.Rank] {
			problems = append(problems, fmt.Sprintf("rank %d is assigned more than once", entry.Rank))
		} else {
			seenRank[entry.Rank] = true
		}

		if strings.TrimSpace(entry.Rationale) == "" {
			problems = append(problems, fmt.Sprintf("repository %q has an empty rationale", entry.URL))
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// jobContext renders the job description lines used in ranking prompts.
func jobContext(job *types.JobDescription) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", orNotSpecified(job.Title))
	fmt.Fprintf(&sb, "Company: %s\n", orNotSpecified(job.Company))
	fmt.Fprintf(&sb, "Required skills: %s\n", orNotSpecified(strings.Join(job.RequiredSkills, ", ")))
	fmt.Fprintf(&sb, "Nice to have: %s", orNotSpecified(strings.Join(job.NiceToHave, ", ")))
	return sb.String()
}

// repoSummaries renders one compact block per repository for the prompt.
func repoSummaries(repos []types.Repository) string {
	var sb strings.Builder
	for i, repo := range repos {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- url: %s\n", repo.URL)
		fmt.Fprintf(&sb, "  name: %s\n", repo.Name)
		if repo.Description != "" {
			fmt.Fprintf(&sb, "  description: %s\n", repo.Description)
		}
		if repo.PrimaryLanguage != "" {
			fmt.Fprintf(&sb, "  primary language: %s\n", repo.PrimaryLanguage)
		}
		fmt.Fprintf(&sb, "  stars: %d, forks: %d, commits: %d\n", repo.Stars, repo.Forks, repo.CommitCount)
		if repo.ReadmeExcerpt != "" {
			fmt.Fprintf(&sb, "  readme: %s\n", truncate(repo.ReadmeExcerpt, readmePromptLimit))
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

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
