// Package validator checks question records before they reach the
// evaluation pipeline.
package validator

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/errors"
)

// ValidateQuestion returns a *errors.MissingFieldError when q lacks an id or
// question text. An absent key and an empty string are both missing; any
// other value, whitespace included, is accepted verbatim. position is the
// record's index in its set, -1 if unknown.
func ValidateQuestion(q ingestion.Question, position int) error {
	if q.ID == "" {
		return &apperrors.MissingFieldError{Index: position, Field: "id"}
	}
	if q.Question == "" {
		return &apperrors.MissingFieldError{Index: position, Field: "question"}
	}
	return nil
}

// ValidateSet validates every record and rejects repeated identifiers.
func ValidateSet(questions []ingestion.Question) error {
	seen := make(map[string]int, len(questions))
	for i, q := range questions {
		if err := ValidateQuestion(q, i); err != nil {
			return err
		}
		if first, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: question id %q used by records %d and %d",
				apperrors.ErrInvalidInput, q.ID, first, i)
		}
		seen[q.ID] = i
	}
	return nil
}
