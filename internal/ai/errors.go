package ai

import (
	"errors"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/embernet/tapestry-sub001/internal/apperrors"
)

// transientMarkers are substrings of provider errors that are worth retrying.
var transientMarkers = []string{
	"500",
	"503",
	"429",
	"Internal",
	"Overloaded",
	"UNAVAILABLE",
	"RESOURCE_EXHAUSTED",
}

// IsTransient reports whether err looks like a temporary provider failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.IsTransient(err) {
		return true
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	msg := err.Error()
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
