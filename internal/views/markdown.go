package views

import (
	"fmt"
	"sort"
	"strings"

	"github.com/embernet/tapestry-sub001/internal/models"
)

// Markdown renders the visible graph as the text block the model reads.
func Markdown(r Result) string {
	var sb strings.Builder
	names := make(map[string]string, len(r.Elements))

	sb.WriteString("## Elements\n")
	if len(r.Elements) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, e := range r.Elements {
		names[e.ID] = e.Name
		sb.WriteString("- **" + e.Name + "**")
		if len(e.Tags) > 0 {
			sb.WriteString(" [" + strings.Join(e.Tags, ", ") + "]")
		}
		if notes := strings.TrimSpace(e.Notes); notes != "" {
			sb.WriteString(": " + strings.ReplaceAll(notes, "\n", " "))
		}
		sb.WriteString("\n")
		for _, k := range sortedKeys(e.Attributes) {
			fmt.Fprintf(&sb, "  - %s: %s\n", k, e.Attributes[k])
		}
	}

	sb.WriteString("\n## Relationships\n")
	if len(r.Relationships) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, rel := range r.Relationships {
		sb.WriteString("- " + names[rel.Source] + " " + arrow(rel) + " " + names[rel.Target])
		if len(rel.Tags) > 0 {
			sb.WriteString(" [" + strings.Join(rel.Tags, ", ") + "]")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func arrow(r models.Relationship) string {
	label := "[" + r.Label + "]"
	switch r.Direction {
	case models.DirectionNone:
		return "-" + label + "-"
	case models.DirectionFrom:
		return "<-" + label + "-"
	case models.DirectionBoth:
		return "<-" + label + "->"
	default:
		return "-" + label + "->"
	}
}

// TagSchema describes the tags in use across the visible graph together with
// the view's tag filters.
func TagSchema(view models.GraphView, r Result) string {
	counts := map[string]int{}
	for _, e := range r.Elements {
		for _, t := range e.Tags {
			counts[t]++
		}
	}
	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Active view: %s", view.Name)
	if view.Description != "" {
		sb.WriteString(" (" + view.Description + ")")
	}
	sb.WriteString("\n")
	if len(tags) == 0 {
		sb.WriteString("Tags in use: none\n")
	} else {
		parts := make([]string, len(tags))
		for i, t := range tags {
			parts[i] = fmt.Sprintf("%s (%d)", t, counts[t])
		}
		sb.WriteString("Tags in use: " + strings.Join(parts, ", ") + "\n")
	}
	if len(view.Filters.Tags.Included) > 0 {
		sb.WriteString("View shows only tags: " + strings.Join(view.Filters.Tags.Included, ", ") + "\n")
	}
	if len(view.Filters.Tags.Excluded) > 0 {
		sb.WriteString("View hides tags: " + strings.Join(view.Filters.Tags.Excluded, ", ") + "\n")
	}
	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
