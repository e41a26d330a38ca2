package graph

import (
	"math"
	"strings"

	"github.com/embernet/tapestry-sub001/internal/models"
)

// goldenAngle spreads consecutive spiral positions evenly.
const goldenAngle = 2.399963229728653

const spiralSpacing = 60.0

// NormalizeTags trims and lower-cases tags, dropping empties and duplicates
// while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		n := strings.ToLower(strings.TrimSpace(t))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// ParseDirection maps a direction string to the enum. Anything unrecognized,
// including the empty string, is TO.
func ParseDirection(s string) models.Direction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return models.DirectionNone
	case "FROM":
		return models.DirectionFrom
	case "BOTH":
		return models.DirectionBoth
	default:
		return models.DirectionTo
	}
}

// spiralPosition places the n-th element on a sunflower spiral around the origin.
func spiralPosition(n int) (float64, float64) {
	r := spiralSpacing * math.Sqrt(float64(n))
	theta := float64(n) * goldenAngle
	return math.Round(r*math.Cos(theta)*100) / 100, math.Round(r*math.Sin(theta)*100) / 100
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
