package oracle

import "fmt"

// ParseError reports a generation response with no parseable JSON array of
// candidates. The orchestrator records it and skips the model. A response
// that parses but yields no accepted candidates is not a ParseError; those
// models get an empty report.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse generated tests: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to parse generated tests: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// GenerationError reports an exhausted retry loop against the text
// generation backend.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("test generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
