package evalsheet

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInputNotFound indicates the input JSON file does not exist.
var ErrInputNotFound = errors.New("input file not found")

// ErrInvalidJSON indicates the input file is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// ErrTemplateNotFound indicates the template workbook does not exist.
var ErrTemplateNotFound = errors.New("template file not found")

// ErrFileNotFound indicates a workbook to read does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrNoStudents indicates a roster workbook without any valid student row.
var ErrNoStudents = errors.New("no valid students found")

// ErrGenerationFailed matches every *GenerationError.
var ErrGenerationFailed = errors.New("workbook generation failed")

// GenerationError represents a backend failure while building a workbook.
type GenerationError struct {
	Step string // "open", "metadata", "weights", "roster", "unlock", "protect", "save"
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed at %s: %v", e.Step, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// NewGenerationError creates a new GenerationError.
func NewGenerationError(step string, err error) *GenerationError {
	return &GenerationError{
		Step: step,
		Err:  err,
	}
}

// ValidationError lists the problems found in an evaluation, keyed by
// field path (for example "alumnos[0].nombre").
type ValidationError struct {
	Issues map[string][]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Issues))
	for field := range e.Issues {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Issues[field], ", ")))
	}
	return "invalid evaluation data: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	if e.Issues == nil {
		e.Issues = make(map[string][]string)
	}
	e.Issues[field] = append(e.Issues[field], message)
}
