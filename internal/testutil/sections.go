package testutil

import (
	"fmt"
	"strings"

	"github.com/roach88/diffable/internal/snapshot"
)

// ParseSections reads the compact fixture notation
//
//	"s1: a, b=v2, c | s2: | s3: d"
//
// Sections are separated by "|", a section is "<id>:" followed by a comma
// separated item list, and "id=content" sets an item's content. An empty
// string is an empty list.
func ParseSections(src string) ([]snapshot.Section, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	var out []snapshot.Section
	for i, part := range strings.Split(src, "|") {
		id, rest, ok := strings.Cut(part, ":")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("section %d: want \"<id>: items\", got %q", i, strings.TrimSpace(part))
		}
		sec := snapshot.Section{ID: snapshot.ID(id)}
		for _, raw := range strings.Split(rest, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			itemID, content, _ := strings.Cut(raw, "=")
			sec.Items = append(sec.Items, snapshot.Item{
				ID:      snapshot.ID(strings.TrimSpace(itemID)),
				Content: strings.TrimSpace(content),
			})
		}
		out = append(out, sec)
	}
	if err := snapshot.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// MustSections is ParseSections for literals in tests. It panics on error.
func MustSections(src string) []snapshot.Section {
	sections, err := ParseSections(src)
	if err != nil {
		panic(err)
	}
	return sections
}

// MustSnapshot parses src into a snapshot. It panics on error.
func MustSnapshot(src string) snapshot.Snapshot {
	return snapshot.MustFromSections(MustSections(src))
}

// FormatSections renders sections in the notation ParseSections reads.
func FormatSections(sections []snapshot.Section) string {
	parts := make([]string, len(sections))
	for i, sec := range sections {
		items := make([]string, len(sec.Items))
		for j, it := range sec.Items {
			if it.Content != "" {
				items[j] = fmt.Sprintf("%s=%s", it.ID, it.Content)
			} else {
				items[j] = string(it.ID)
			}
		}
		parts[i] = fmt.Sprintf("%s: %s", sec.ID, strings.Join(items, ", "))
	}
	return strings.Join(parts, " | ")
}
