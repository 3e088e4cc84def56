package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/tbarbosa/gitcv/internal/prompts"
	"github.com/tbarbosa/gitcv/internal/schemas"
)

// Request describes one schema-constrained generation.
type Request struct {
	Prompt     string
	SchemaName string
	Tier       ModelTier
	// MaxRetries caps validation re-prompts after the first attempt.
	// Negative means no re-prompts.
	MaxRetries int
}

// Check is a semantic validation run against the decoded output after
// schema validation passes. Its error message is fed back to the model on
// retry, so it should say what is wrong in the model's terms.
type Check func() error

// GenerateValidated runs the schema-constrained protocol shared by the
// extraction, ranking, and generation stages: ask the model for JSON,
// decode into out, validate against the named schema, then run checks.
// Each failure re-prompts with the reasons appended, up to MaxRetries,
// before surfacing an InvalidOutputError. Transport errors are returned
// as-is; the client has already applied its backoff policy to them.
func GenerateValidated(ctx context.Context, client Client, req Request, out any, checks ...Check) error {
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("output target must be a non-nil pointer, got %T", out)
	}

	maxRetries := req.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	prompt := req.Prompt
	var (
		allReasons []string
		raw        string
	)
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attempts++

		var err error
		raw, err = client.GenerateJSON(ctx, prompt, req.Tier)
		if err != nil {
			return err
		}

		// Each attempt decodes into a clean value so a bad earlier
		// attempt cannot leak fields into a later one.
		target.Elem().Set(reflect.Zero(target.Elem().Type()))

		reasons, fatal := evaluate(req.SchemaName, raw, out, checks)
		if fatal != nil {
			return fatal
		}
		if len(reasons) == 0 {
			return nil
		}

		allReasons = append(allReasons, reasons...)
		prompt = req.Prompt + "\n\n" + prompts.MustFormat("common.json", "retry-feedback", map[string]string{
			"Reasons": strings.Join(reasons, "\n"),
		})
	}

	return &InvalidOutputError{
		Schema:   req.SchemaName,
		Attempts: attempts,
		Reasons:  allReasons,
		Raw:      raw,
	}
}

// evaluate returns the retryable rejection reasons for one attempt, or a
// fatal error for failures that re-prompting cannot fix.
func evaluate(schemaName, raw string, out any, checks []Check) ([]string, error) {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return []string{"response is not valid JSON: " + err.Error()}, nil
	}

	if err := schemas.Validate(schemaName, raw); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) {
			return ve.Reasons(), nil
		}
		return nil, err
	}

	var reasons []string
	for _, check := range checks {
		if err := check(); err != nil {
			reasons = append(reasons, err.Error())
		}
	}
	return reasons, nil
}
