// Package tags stores a set of hashtags in the trailing line of a free-text
// notes field, so that stores without native tags can carry them.
package tags

import (
	"sort"
	"strings"
	"unicode"
)

// Decode splits notes into the body and the tags held in its trailing tag
// block. The tag block is the last non-empty line, and only when every
// whitespace-separated token on it is a '#' followed by at least one
// character and at least one of them survives normalization. A single blank
// separator line before the block is dropped from the body. Notes without a
// tag block are returned unchanged.
func Decode(notes string) (string, []string) {
	lines := strings.Split(notes, "\n")

	last := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			last = i
			break
		}
	}
	if last < 0 {
		return notes, nil
	}

	tokens, ok := tagLine(lines[last])
	if !ok {
		return notes, nil
	}
	tags := NormalizeAll(tokens)
	if len(tags) == 0 {
		return notes, nil
	}

	body := lines[:last]
	if n := len(body); n > 0 && strings.TrimSpace(body[n-1]) == "" {
		body = body[:n-1]
	}
	return strings.Join(body, "\n"), tags
}

// tagLine returns the raw tag names on a line made only of hashtags.
func tagLine(line string) ([]string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || f[0] != '#' {
			return nil, false
		}
		names = append(names, f[1:])
	}
	return names, true
}

// Encode appends the tag block for tags to body. With no tags left after
// normalization the body is returned as is.
func Encode(body string, tags []string) string {
	normalized := NormalizeAll(tags)
	if len(normalized) == 0 {
		return body
	}

	var sb strings.Builder
	if body != "" {
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}
	for i, t := range normalized {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte('#')
		sb.WriteString(t)
	}
	return sb.String()
}

// Normalize lowercases and trims a tag, turns each run of whitespace or
// hyphens into one underscore and drops anything outside [a-z0-9_].
// An empty result means the tag should be dropped.
func Normalize(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))

	var sb strings.Builder
	sb.Grow(len(tag))
	sep := false
	for _, r := range tag {
		if unicode.IsSpace(r) || r == '-' {
			sep = true
			continue
		}
		if sep {
			sb.WriteByte('_')
			sep = false
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// NormalizeAll normalizes tags and returns the distinct non-empty results
// in lexicographic order.
func NormalizeAll(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// Update adds and removes individual tags on notes. Removal wins when a
// tag appears in both lists.
func Update(notes string, add, remove []string) string {
	body, current := Decode(notes)

	set := make(map[string]struct{}, len(current)+len(add))
	for _, t := range current {
		set[t] = struct{}{}
	}
	for _, t := range NormalizeAll(add) {
		set[t] = struct{}{}
	}
	for _, t := range NormalizeAll(remove) {
		delete(set, t)
	}

	next := make([]string, 0, len(set))
	for t := range set {
		next = append(next, t)
	}
	return Encode(body, next)
}
