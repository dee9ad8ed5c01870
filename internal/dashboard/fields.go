package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jiradash/internal/models"
	"jiradash/internal/tracker"
)

// CustomFieldValues returns metadata for a field and its active options.
// Fields without selectable options report an empty value list.
func (s *Service) CustomFieldValues(ctx context.Context, fieldID string) (models.CustomField, error) {
	fields, err := s.tracker.Fields(ctx)
	if err != nil {
		return models.CustomField{}, err
	}

	var field *tracker.Field
	for i := range fields {
		if fields[i].ID == fieldID {
			field = &fields[i]
			break
		}
	}
	if field == nil {
		return models.CustomField{}, fmt.Errorf("field %s: %w", fieldID, tracker.ErrNotFound)
	}

	out := models.CustomField{
		ID:     field.ID,
		Name:   field.Name,
		Custom: field.Custom,
		Values: []models.FieldValue{},
	}
	if field.Schema != nil {
		out.Type = field.Schema.Type
	}

	opts, err := s.activeOptions(ctx, fieldID)
	switch {
	case errors.Is(err, tracker.ErrUnauthorized):
		return models.CustomField{}, err
	case err != nil:
		s.logger.Debug("field has no readable options", slog.String("field", fieldID), slog.String("error", err.Error()))
	}
	for _, o := range opts {
		out.Values = append(out.Values, models.FieldValue{ID: o.ID, Value: o.Value})
	}
	return out, nil
}

// activeOptions collects the enabled options of a field across all of its
// contexts, in tracker order, without duplicates.
func (s *Service) activeOptions(ctx context.Context, fieldID string) ([]tracker.FieldOption, error) {
	contexts, err := s.tracker.FieldContexts(ctx, fieldID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var active []tracker.FieldOption
	for _, fc := range contexts {
		opts, err := s.tracker.FieldOptions(ctx, fieldID, fc.ID)
		if err != nil {
			return nil, err
		}
		for _, o := range opts {
			if o.Disabled {
				continue
			}
			if _, dup := seen[o.ID]; dup {
				continue
			}
			seen[o.ID] = struct{}{}
			active = append(active, o)
		}
	}
	return active, nil
}
