package rendering

import "fmt"

// AssemblyError represents a failure to build the document source from the
// template and content.
type AssemblyError struct {
	Message string
	Cause   error
}

func (e *AssemblyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("assembly error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("assembly error: %s", e.Message)
}

func (e *AssemblyError) Unwrap() error {
	return e.Cause
}

// CompilationError represents a failure of the external LaTeX engine. Log
// carries the engine output for diagnosis.
type CompilationError struct {
	Message string
	Log     string
	Cause   error
}

func (e *CompilationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("compilation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("compilation error: %s", e.Message)
}

func (e *CompilationError) Unwrap() error {
	return e.Cause
}
