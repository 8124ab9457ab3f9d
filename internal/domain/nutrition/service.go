package nutrition

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
)

type Service struct {
	repo   Repository
	policy rbac.Policy
	pool   *pgxpool.Pool
	logger zerolog.Logger
	now    func() time.Time
}

// NewService wires the nutrition store. pool may be nil, in which case
// ingredient imports run without a transaction.
func NewService(repo Repository, policy rbac.Policy, pool *pgxpool.Pool, logger zerolog.Logger) *Service {
	return &Service{repo: repo, policy: policy, pool: pool, logger: logger, now: time.Now}
}

// -- Meal types --

func (s *Service) MealTypes(ctx context.Context) ([]*MealType, error) {
	return s.repo.ListMealTypes(ctx, true)
}

func (s *Service) CreateMealType(ctx context.Context, req MealTypeRequest) (*MealType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := validMealTime(req.DefaultTime); err != nil {
		return nil, err
	}
	mt := &MealType{Name: name, DefaultTime: req.DefaultTime, Description: req.Description, IsActive: true}
	if req.IsActive != nil {
		mt.IsActive = *req.IsActive
	}
	if err := s.repo.CreateMealType(ctx, mt); err != nil {
		return nil, err
	}
	s.logger.Info().Str("meal_type", mt.Name).Msg("meal type created")
	return mt, nil
}

func (s *Service) UpdateMealType(ctx context.Context, id uuid.UUID, req MealTypeRequest) (*MealType, error) {
	mt, err := s.repo.GetMealType(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		mt.Name = name
	}
	if req.DefaultTime != "" {
		if err := validMealTime(req.DefaultTime); err != nil {
			return nil, err
		}
		mt.DefaultTime = req.DefaultTime
	}
	if req.Description != "" {
		mt.Description = req.Description
	}
	if req.IsActive != nil {
		mt.IsActive = *req.IsActive
	}
	if err := s.repo.UpdateMealType(ctx, mt); err != nil {
		return nil, err
	}
	return mt, nil
}

func (s *Service) DeleteMealType(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteMealType(ctx, id)
}

// -- Meals --

func validMealTime(v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(mealTimeLayout, v); err != nil {
		return apperr.Validation("time must use HH:MM format")
	}
	return nil
}

func validateMeal(m *Meal) error {
	if strings.TrimSpace(m.Name) == "" {
		return apperr.Validation("name is required")
	}
	if m.PeriodType != PeriodDaily && m.PeriodType != PeriodWeekly {
		return apperr.Validation("period_type must be daily or weekly")
	}
	if m.DayNumber != nil && (*m.DayNumber < 1 || *m.DayNumber > 7) {
		return apperr.Validation("day_number must be between 1 and 7")
	}
	return validMealTime(m.MealTime)
}

func (s *Service) newMeal(userID uuid.UUID, req MealRequest) *Meal {
	m := &Meal{
		UserID:      userID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Ingredients: req.Ingredients,
		Preparation: req.Preparation,
		MealType:    req.MealType,
		MealTime:    req.MealTime,
		PeriodType:  req.PeriodType,
		MealDate:    s.now().UTC(),
		DayNumber:   req.DayNumber,
		MealNotes:   req.MealNotes,
		WeekNotes:   req.WeekNotes,
	}
	if m.PeriodType == "" {
		m.PeriodType = PeriodDaily
	}
	if req.MealDate != nil {
		m.MealDate = req.MealDate.UTC()
	}
	return m
}

// CreateMeal logs a meal for the caller.
func (s *Service) CreateMeal(ctx context.Context, p *auth.Principal, req MealRequest) (*Meal, error) {
	m := s.newMeal(p.ID, req)
	if err := validateMeal(m); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMeal(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMealPlan adds a planned meal to another user's list. The caller
// must be able to read that user's data.
func (s *Service) CreateMealPlan(ctx context.Context, p *auth.Principal, userID uuid.UUID, req MealRequest) (*Meal, error) {
	if err := rbac.RequireUserData(ctx, s.policy, p, userID); err != nil {
		return nil, err
	}
	m := s.newMeal(userID, req)
	if err := validateMeal(m); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMeal(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("meal_id", m.ID.String()).
		Str("user_id", userID.String()).
		Str("author_id", p.ID.String()).
		Msg("meal plan created")
	return m, nil
}

func (s *Service) MyMeals(ctx context.Context, p *auth.Principal, limit, offset int) ([]*Meal, int, error) {
	return s.repo.ListMeals(ctx, &p.ID, limit, offset)
}

func (s *Service) AllMeals(ctx context.Context, limit, offset int) ([]*Meal, int, error) {
	return s.repo.ListMeals(ctx, nil, limit, offset)
}

func (s *Service) UserMeals(ctx context.Context, p *auth.Principal, userID uuid.UUID, limit, offset int) ([]*Meal, int, error) {
	if err := rbac.RequireUserData(ctx, s.policy, p, userID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListMeals(ctx, &userID, limit, offset)
}

// meal loads a meal visible to p: its owner, or holders of meals.view_all
// or meals.edit_plans.
func (s *Service) meal(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Meal, error) {
	m, err := s.repo.GetMeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID == p.ID {
		return m, nil
	}
	ok, err := rbac.HasAny(ctx, s.policy, p, rbac.PermMealsViewAll, rbac.PermMealsEditPlans)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("access to this meal denied")
	}
	return m, nil
}

func (s *Service) GetMeal(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Meal, error) {
	return s.meal(ctx, p, id)
}

func (s *Service) UpdateMeal(ctx context.Context, p *auth.Principal, id uuid.UUID, req MealUpdate) (*Meal, error) {
	m, err := s.meal(ctx, p, id)
	if err != nil {
		return nil, err
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&m.Name, req.Name)
	set(&m.Description, req.Description)
	set(&m.Ingredients, req.Ingredients)
	set(&m.Preparation, req.Preparation)
	set(&m.MealType, req.MealType)
	set(&m.MealTime, req.MealTime)
	set(&m.PeriodType, req.PeriodType)
	set(&m.MealNotes, req.MealNotes)
	set(&m.WeekNotes, req.WeekNotes)
	if req.MealDate != nil {
		m.MealDate = req.MealDate.UTC()
	}
	if req.DayNumber != nil {
		m.DayNumber = req.DayNumber
	}
	if err := validateMeal(m); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateMeal(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) DeleteMeal(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if _, err := s.meal(ctx, p, id); err != nil {
		return err
	}
	return s.repo.DeleteMeal(ctx, id)
}

// -- Nutrients --

func (s *Service) TrackNutrient(ctx context.Context, p *auth.Principal, req NutrientRequest) (*Nutrient, error) {
	name := strings.TrimSpace(req.NutrientName)
	if name == "" {
		return nil, apperr.Validation("nutrient_name is required")
	}
	if req.Amount < 0 {
		return nil, apperr.Validation("amount must not be negative")
	}
	n := &Nutrient{
		UserID:       p.ID,
		NutrientName: name,
		Amount:       req.Amount,
		Unit:         req.Unit,
		TrackedOn:    s.now().UTC(),
		Notes:        req.Notes,
	}
	if n.Unit == "" {
		n.Unit = defaultUnit
	}
	if req.TrackedOn != nil {
		n.TrackedOn = req.TrackedOn.UTC()
	}
	if err := s.repo.CreateNutrient(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) MyNutrients(ctx context.Context, p *auth.Principal, limit, offset int) ([]*Nutrient, int, error) {
	return s.repo.ListNutrients(ctx, &p.ID, limit, offset)
}

func (s *Service) AllNutrients(ctx context.Context, limit, offset int) ([]*Nutrient, int, error) {
	return s.repo.ListNutrients(ctx, nil, limit, offset)
}

func (s *Service) UserNutrients(ctx context.Context, p *auth.Principal, userID uuid.UUID, limit, offset int) ([]*Nutrient, int, error) {
	if err := rbac.RequireUserData(ctx, s.policy, p, userID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListNutrients(ctx, &userID, limit, offset)
}

func (s *Service) DeleteNutrient(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	n, err := s.repo.GetNutrient(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != p.ID {
		ok, err := s.policy.HasPermission(ctx, p, rbac.PermNutritionViewAll)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Forbidden("access to this entry denied")
		}
	}
	return s.repo.DeleteNutrient(ctx, id)
}
