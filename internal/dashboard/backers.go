package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"jiradash/internal/config"
	"jiradash/internal/models"
)

// BackersValue is the decoded backers custom field. Depending on the tracker
// configuration the field holds free text or a list.
type BackersValue struct {
	Present bool
	IsList  bool
	Text    string
	List    []string
}

// decodeBackers accepts null, a string, a list of strings, or a list of
// option objects carrying a value or name.
func decodeBackers(raw json.RawMessage) BackersValue {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return BackersValue{}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return BackersValue{Present: true, Text: text}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return BackersValue{}
	}
	v := BackersValue{Present: true, IsList: true, List: make([]string, 0, len(items))}
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			v.List = append(v.List, s)
			continue
		}
		var option struct {
			Value string `json:"value"`
			Name  string `json:"name"`
		}
		if err := json.Unmarshal(item, &option); err == nil {
			v.List = append(v.List, valueOr(option.Value, option.Name))
		}
	}
	return v
}

// Entries flattens the value to trimmed, non-empty entries. Stored text is
// one entry per line; commas inside a line belong to the entry.
func (v BackersValue) Entries() []string {
	if v.IsList {
		return trimEntries(v.List)
	}
	return splitLines(v.Text)
}

// splitLines splits stored text on line breaks only.
func splitLines(text string) []string {
	return trimEntries(strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r'
	}))
}

// splitEntries splits client input on newlines and commas.
func splitEntries(text string) []string {
	return trimEntries(strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	}))
}

func trimEntries(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BackerInput is backers supplied by a client: a single string, a comma or
// newline separated string, or a list of strings.
type BackerInput struct {
	values []string
}

// NewBackerInput builds an input from already split values.
func NewBackerInput(values ...string) BackerInput {
	return BackerInput{values: values}
}

func (b *BackerInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		b.values = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.values = []string{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		b.values = list
		return nil
	}
	return validationErrorf("backers must be a string or a list of strings")
}

// Entries returns the normalized entries in input order.
func (b BackerInput) Entries() []string {
	var out []string
	for _, v := range b.values {
		out = append(out, splitEntries(v)...)
	}
	return out
}

// IsEmpty reports whether the input carries no entries.
func (b BackerInput) IsEmpty() bool {
	return len(b.Entries()) == 0
}

// resolveBackersMode picks the representation used for writing. In auto mode
// it follows the existing value, defaulting to text.
func (s *Service) resolveBackersMode(existing BackersValue) string {
	switch s.cfg.Backers.Mode {
	case config.BackersText, config.BackersList:
		return s.cfg.Backers.Mode
	}
	if existing.IsList {
		return config.BackersList
	}
	return config.BackersText
}

// mergeBackers appends added after existing. Lists have set semantics; text
// keeps duplicates unless dedupeText is set.
func mergeBackers(existing, added []string, mode string, dedupeText bool) []string {
	if mode == config.BackersList || dedupeText {
		set := newOrderedSet()
		for _, v := range existing {
			set.add(v)
		}
		for _, v := range added {
			set.add(v)
		}
		return set.items
	}
	merged := make([]string, 0, len(existing)+len(added))
	merged = append(merged, existing...)
	return append(merged, added...)
}

func encodeBackers(entries []string, mode string) any {
	if mode == config.BackersList {
		return entries
	}
	return strings.Join(entries, "\n")
}

// AddBackers merges new backers into an issue's backers field and writes the
// result back.
func (s *Service) AddBackers(ctx context.Context, key string, input BackerInput) (models.BackersResult, error) {
	if input.IsEmpty() {
		return models.BackersResult{}, validationErrorf("backers must not be empty")
	}
	added := input.Entries()

	field := s.cfg.Fields.Backers
	issue, err := s.tracker.Issue(ctx, key)
	if err != nil {
		return models.BackersResult{}, err
	}

	existing := decodeBackers(issue.Fields.Custom[field])
	mode := s.resolveBackersMode(existing)
	merged := mergeBackers(existing.Entries(), added, mode, s.cfg.Backers.DedupeText)

	if err := s.writeBackers(ctx, key, field, encodeBackers(merged, mode)); err != nil {
		return models.BackersResult{}, err
	}

	s.record(ctx, models.Activity{
		Action:     models.ActionBackersAdded,
		IssueKey:   key,
		ProjectKey: projectOf(key),
		Detail:     strings.Join(added, ", "),
	})
	return models.BackersResult{Count: len(merged), Backers: merged, Added: added}, nil
}

// writeBackers sets the field through the fields payload, falling back once
// to an update/set operation. The first error is returned if both fail.
func (s *Service) writeBackers(ctx context.Context, key, field string, value any) error {
	err := s.tracker.UpdateIssue(ctx, key, map[string]any{
		"fields": map[string]any{field: value},
	})
	if err == nil {
		return nil
	}

	s.logger.Warn("backers update rejected, retrying as set operation",
		slog.String("issue", key),
		slog.String("error", err.Error()))
	alt := s.tracker.UpdateIssue(ctx, key, map[string]any{
		"update": map[string]any{field: []any{map[string]any{"set": value}}},
	})
	if alt == nil {
		return nil
	}
	return err
}

// projectOf returns the project part of an issue key such as DASH-12.
func projectOf(key string) string {
	if i := strings.LastIndex(key, "-"); i > 0 {
		return key[:i]
	}
	return ""
}
