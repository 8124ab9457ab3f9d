package nutrition

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	ListMealTypes(ctx context.Context, activeOnly bool) ([]*MealType, error)
	GetMealType(ctx context.Context, id uuid.UUID) (*MealType, error)
	CreateMealType(ctx context.Context, mt *MealType) error
	UpdateMealType(ctx context.Context, mt *MealType) error
	DeleteMealType(ctx context.Context, id uuid.UUID) error

	CreateMeal(ctx context.Context, m *Meal) error
	GetMeal(ctx context.Context, id uuid.UUID) (*Meal, error)
	UpdateMeal(ctx context.Context, m *Meal) error
	DeleteMeal(ctx context.Context, id uuid.UUID) error
	// ListMeals lists every user's meals when userID is nil.
	ListMeals(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*Meal, int, error)

	CreateNutrient(ctx context.Context, n *Nutrient) error
	GetNutrient(ctx context.Context, id uuid.UUID) (*Nutrient, error)
	DeleteNutrient(ctx context.Context, id uuid.UUID) error
	ListNutrients(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*Nutrient, int, error)

	SearchIngredients(ctx context.Context, query string, limit, offset int) ([]*Ingredient, int, error)
	GetIngredient(ctx context.Context, id uuid.UUID) (*Ingredient, error)
	CreateIngredient(ctx context.Context, in *Ingredient) error
	UpdateIngredient(ctx context.Context, in *Ingredient) error
	DeleteIngredient(ctx context.Context, id uuid.UUID) error
	// UpsertIngredient inserts or replaces by ingredient name and reports
	// whether a new row was created.
	UpsertIngredient(ctx context.Context, in *Ingredient) (bool, error)
}
