package nutrition

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/db"
)

func (s *Service) SearchIngredients(ctx context.Context, query string, limit, offset int) ([]*Ingredient, int, error) {
	return s.repo.SearchIngredients(ctx, query, limit, offset)
}

func (s *Service) GetIngredient(ctx context.Context, id uuid.UUID) (*Ingredient, error) {
	return s.repo.GetIngredient(ctx, id)
}

func validateIngredient(in *Ingredient) error {
	if in.IngredientName == "" {
		return apperr.Validation("ingredient_name is required")
	}
	for i, f := range in.fields() {
		if *f != nil && **f < 0 {
			return apperr.Validation("%s must not be negative", factColumns[i])
		}
	}
	return nil
}

func fromRequest(req IngredientRequest) *Ingredient {
	in := &Ingredient{
		IngredientName: strings.TrimSpace(req.IngredientName),
		Category:       strings.TrimSpace(req.Category),
		ServingSize:    strings.TrimSpace(req.ServingSize),
		Facts:          req.Facts,
	}
	if in.ServingSize == "" {
		in.ServingSize = defaultServingSize
	}
	return in
}

func (s *Service) CreateIngredient(ctx context.Context, req IngredientRequest) (*Ingredient, error) {
	in := fromRequest(req)
	if err := validateIngredient(in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateIngredient(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// UpdateIngredient replaces every field of the ingredient.
func (s *Service) UpdateIngredient(ctx context.Context, id uuid.UUID, req IngredientRequest) (*Ingredient, error) {
	existing, err := s.repo.GetIngredient(ctx, id)
	if err != nil {
		return nil, err
	}
	in := fromRequest(req)
	in.ID = existing.ID
	in.CreatedAt = existing.CreatedAt
	if err := validateIngredient(in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateIngredient(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *Service) DeleteIngredient(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteIngredient(ctx, id)
}

// ImportIngredients upserts rows from a CSV with a header line. Columns are
// matched by name; ingredient_name is required and nutrient columns may be
// blank. Rows without a name are skipped. Any malformed number aborts the
// whole import.
func (s *Service) ImportIngredients(ctx context.Context, r io.Reader) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.Validation("csv is empty")
		}
		return nil, apperr.Validation("read csv header: %v", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := idx["ingredient_name"]; !ok {
		return nil, apperr.Validation("csv header must include ingredient_name")
	}

	var rows []*Ingredient
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, apperr.Validation("line %d: %v", line, err)
		}
		in, err := parseIngredientRow(rec, idx)
		if err != nil {
			return nil, apperr.Validation("line %d: %v", line, err)
		}
		rows = append(rows, in)
	}

	res := &ImportResult{}
	run := func(ctx context.Context) error {
		for _, in := range rows {
			if in.IngredientName == "" {
				res.Skipped = append(res.Skipped, "(blank name)")
				continue
			}
			created, err := s.repo.UpsertIngredient(ctx, in)
			if err != nil {
				return fmt.Errorf("upsert ingredient %s: %w", in.IngredientName, err)
			}
			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
		return nil
	}
	if s.pool != nil {
		err = db.InTx(ctx, s.pool, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", len(res.Skipped)).
		Msg("ingredient import completed")
	return res, nil
}

func parseIngredientRow(rec []string, idx map[string]int) (*Ingredient, error) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	in := fromRequest(IngredientRequest{
		IngredientName: get("ingredient_name"),
		Category:       get("category"),
		ServingSize:    get("serving_size"),
	})
	for i, f := range in.fields() {
		col := factColumns[i]
		v := get(col)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid number %q", col, v)
		}
		if n < 0 {
			return nil, fmt.Errorf("%s must not be negative", col)
		}
		*f = &n
	}
	return in, nil
}
