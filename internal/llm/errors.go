package llm

import (
	"fmt"
	"strings"
)

// TransportError reports a provider-level failure that survived the backoff
// policy. The cause keeps the provider's original error.
type TransportError struct {
	Model string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model %s transport failure: %v", e.Model, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// InvalidOutputError reports that the model kept producing output that
// failed decoding, schema validation, or a semantic check, even after
// re-prompting with the failure reasons.
type InvalidOutputError struct {
	Schema   string
	Attempts int
	Reasons  []string
	Raw      string
}

func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("invalid model output for %s after %d attempts: %s",
		e.Schema, e.Attempts, strings.Join(e.Reasons, "; "))
}
