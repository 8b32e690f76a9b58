package screening

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrIncompleteAnswers is returned when an AnswerSet misses one or more items.
	ErrIncompleteAnswers = errors.New("incomplete answers")
	// ErrInvalidAnswerValue is returned when an answer falls outside the item's domain.
	ErrInvalidAnswerValue = errors.New("invalid answer value")
	// ErrDuplicateSubmission is returned when a result already exists for (subject, test type).
	ErrDuplicateSubmission = errors.New("duplicate submission")
	// ErrUnknownTestType is returned for test keys with no questionnaire definition.
	ErrUnknownTestType = errors.New("unknown test type")
	// ErrUniqueViolation is what persistence adapters return when a uniqueness
	// constraint rejects a write.
	ErrUniqueViolation = errors.New("unique constraint violation")
)

// IncompleteAnswersError lists the items that have no answer.
type IncompleteAnswersError struct {
	Test    TestType
	Missing []int
}

func (e *IncompleteAnswersError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("%s: %s missing items [%s]", ErrIncompleteAnswers, e.Test, strings.Join(ids, ","))
}

func (e *IncompleteAnswersError) Unwrap() error { return ErrIncompleteAnswers }

// InvalidAnswerError names the offending item and raw value.
type InvalidAnswerError struct {
	Test   TestType
	ItemID int
	Value  string
	Reason string
}

func (e *InvalidAnswerError) Error() string {
	msg := fmt.Sprintf("%s: %s item %d value %q", ErrInvalidAnswerValue, e.Test, e.ItemID, e.Value)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidAnswerError) Unwrap() error { return ErrInvalidAnswerValue }

// ErrorCategory is the user-visible class of a failure.
type ErrorCategory string

const (
	CategoryIncomplete ErrorCategory = "incomplete"
	CategoryDuplicate  ErrorCategory = "duplicate"
	CategoryInvalid    ErrorCategory = "invalid"
	CategoryUnknown    ErrorCategory = "unknown"
)

// Categorize maps an error onto one of the four message categories.
// Persistence and transport failures fall into CategoryUnknown.
func Categorize(err error) ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIncompleteAnswers):
		return CategoryIncomplete
	case errors.Is(err, ErrDuplicateSubmission), errors.Is(err, ErrUniqueViolation):
		return CategoryDuplicate
	case errors.Is(err, ErrInvalidAnswerValue), errors.Is(err, ErrUnknownTestType):
		return CategoryInvalid
	}
	return CategoryUnknown
}
