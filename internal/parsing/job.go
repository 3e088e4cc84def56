// Package parsing turns raw job posting text into a structured
// JobDescription using schema-constrained extraction.
package parsing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tbarbosa/gitcv/internal/llm"
	"github.com/tbarbosa/gitcv/internal/prompts"
	"github.com/tbarbosa/gitcv/internal/schemas"
	"github.com/tbarbosa/gitcv/internal/types"
)

// ParseJobDescription extracts a structured JobDescription from job posting
// text. Skill names are normalized and deduplicated after extraction, and
// the raw text is kept on the result for downstream prompts.
func ParseJobDescription(ctx context.Context, client llm.Client, jobText string, maxRetries int, log *zap.Logger) (*types.JobDescription, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if jobText == "" {
		return nil, fmt.Errorf("job text is empty")
	}

	prompt := prompts.MustFormat("extraction.json", "extract-job", map[string]string{
		"JobText": jobText,
		"Schema":  schemas.MustGet(schemas.JobDescription),
	})

	var job types.JobDescription
	err := llm.GenerateValidated(ctx, client, llm.Request{
		Prompt:     prompt,
		SchemaName: schemas.JobDescription,
		Tier:       llm.TierLite,
		MaxRetries: maxRetries,
	}, &job)
	if err != nil {
		return nil, err
	}

	job.RequiredSkills = NormalizeSkills(job.RequiredSkills)
	job.NiceToHave = NormalizeSkills(job.NiceToHave)
	job.RawText = jobText

	log.Info("job description extracted",
		zap.String("title", job.Title),
		zap.String("company", job.Company),
		zap.Int("required_skills", len(job.RequiredSkills)))
	return &job, nil
}
