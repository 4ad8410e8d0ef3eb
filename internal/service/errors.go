package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")

	ErrAIUnavailable    = errors.New("AI analysis service not available")
	ErrQuotaExceeded    = errors.New("AI service quota exceeded")
	ErrPermissionDenied = errors.New("AI service permission denied")
	ErrTimeout          = errors.New("AI analysis timeout")
	ErrContentFiltered  = errors.New("content filtered by AI safety settings")
	ErrAnalysisFailed   = errors.New("AI analysis failed")

	ErrCollectionFailed = errors.New("collection service request failed")
)

// ErrorClassifier maps an upstream model failure onto one of the AI error kinds.
type ErrorClassifier interface {
	Classify(err error) error
}

// SubstringClassifier matches well known fragments of the provider's error
// text. Provider wording is not versioned, so anything unrecognised falls
// back to ErrAnalysisFailed.
type SubstringClassifier struct{}

func (SubstringClassifier) Classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"), strings.Contains(msg, "rate limit"):
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	case strings.Contains(msg, "permission"):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case strings.Contains(msg, "safety"):
		return fmt.Errorf("%w: %w", ErrContentFiltered, err)
	default:
		return fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
}

// isClassified reports whether err already carries a gateway error kind
// (or is the caller's own cancellation) and must not be re-classified.
func isClassified(err error) bool {
	for _, kind := range []error{
		ErrInvalidInput, ErrNotFound, ErrAIUnavailable, ErrQuotaExceeded,
		ErrPermissionDenied, ErrTimeout, ErrContentFiltered, ErrAnalysisFailed,
		context.Canceled,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
