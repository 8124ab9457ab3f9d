package nutrition

import (
	"time"

	"github.com/google/uuid"
)

const (
	PeriodDaily  = "daily"
	PeriodWeekly = "weekly"
)

const (
	defaultUnit        = "mg"
	defaultServingSize = "100g"
	mealTimeLayout     = "15:04"
)

// MealType is an admin-managed label such as "breakfast".
type MealType struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	DefaultTime string    `db:"default_time" json:"default_time"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type MealTypeRequest struct {
	Name        string `json:"name"`
	DefaultTime string `json:"default_time"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// Meal is one planned or logged meal. Weekly plans use DayNumber 1..7.
type Meal struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Ingredients string    `db:"ingredients" json:"ingredients"`
	Preparation string    `db:"preparation" json:"preparation"`
	MealType    string    `db:"meal_type" json:"meal_type"`
	MealTime    string    `db:"meal_time" json:"meal_time"`
	PeriodType  string    `db:"period_type" json:"period_type"`
	MealDate    time.Time `db:"meal_date" json:"meal_date"`
	DayNumber   *int      `db:"day_number" json:"day_number,omitempty"`
	MealNotes   string    `db:"meal_notes" json:"meal_notes"`
	WeekNotes   string    `db:"week_notes" json:"week_notes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type MealRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Ingredients string     `json:"ingredients"`
	Preparation string     `json:"preparation"`
	MealType    string     `json:"meal_type"`
	MealTime    string     `json:"meal_time"`
	PeriodType  string     `json:"period_type"`
	MealDate    *time.Time `json:"meal_date"`
	DayNumber   *int       `json:"day_number"`
	MealNotes   string     `json:"meal_notes"`
	WeekNotes   string     `json:"week_notes"`
}

type MealUpdate struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Ingredients *string    `json:"ingredients"`
	Preparation *string    `json:"preparation"`
	MealType    *string    `json:"meal_type"`
	MealTime    *string    `json:"meal_time"`
	PeriodType  *string    `json:"period_type"`
	MealDate    *time.Time `json:"meal_date"`
	DayNumber   *int       `json:"day_number"`
	MealNotes   *string    `json:"meal_notes"`
	WeekNotes   *string    `json:"week_notes"`
}

// Nutrient is a tracked intake amount.
type Nutrient struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	NutrientName string    `db:"nutrient_name" json:"nutrient_name"`
	Amount       float64   `db:"amount" json:"amount"`
	Unit         string    `db:"unit" json:"unit"`
	TrackedOn    time.Time `db:"tracked_on" json:"tracked_on"`
	Notes        string    `db:"notes" json:"notes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type NutrientRequest struct {
	NutrientName string     `json:"nutrient_name"`
	Amount       float64    `json:"amount"`
	Unit         string     `json:"unit"`
	TrackedOn    *time.Time `json:"tracked_on"`
	Notes        string     `json:"notes"`
}

// Facts holds per-serving nutrient values. Unknown values stay nil.
type Facts struct {
	EnergyKcal    *float64 `db:"energy_kcal" json:"energy_kcal"`
	ProteinG      *float64 `db:"protein_g" json:"protein_g"`
	CarbG         *float64 `db:"carb_g" json:"carb_g"`
	FatG          *float64 `db:"fat_g" json:"fat_g"`
	FiberG        *float64 `db:"fiber_g" json:"fiber_g"`
	SugarG        *float64 `db:"sugar_g" json:"sugar_g"`
	SodiumMg      *float64 `db:"sodium_mg" json:"sodium_mg"`
	CholesterolMg *float64 `db:"cholesterol_mg" json:"cholesterol_mg"`
	CalciumMg     *float64 `db:"calcium_mg" json:"calcium_mg"`
	IronMg        *float64 `db:"iron_mg" json:"iron_mg"`
	PotassiumMg   *float64 `db:"potassium_mg" json:"potassium_mg"`
	VitaminAMcg   *float64 `db:"vitamin_a_mcg" json:"vitamin_a_mcg"`
	VitaminCMg    *float64 `db:"vitamin_c_mg" json:"vitamin_c_mg"`
	VitaminDMcg   *float64 `db:"vitamin_d_mcg" json:"vitamin_d_mcg"`
}

// factColumns lists the Facts columns in the order returned by fields.
var factColumns = []string{
	"energy_kcal", "protein_g", "carb_g", "fat_g", "fiber_g", "sugar_g", "sodium_mg",
	"cholesterol_mg", "calcium_mg", "iron_mg", "potassium_mg", "vitamin_a_mcg",
	"vitamin_c_mg", "vitamin_d_mcg",
}

func (f *Facts) fields() []**float64 {
	return []**float64{
		&f.EnergyKcal, &f.ProteinG, &f.CarbG, &f.FatG, &f.FiberG, &f.SugarG, &f.SodiumMg,
		&f.CholesterolMg, &f.CalciumMg, &f.IronMg, &f.PotassiumMg, &f.VitaminAMcg,
		&f.VitaminCMg, &f.VitaminDMcg,
	}
}

// Ingredient is a reference row in the ingredient nutrition table.
type Ingredient struct {
	ID             uuid.UUID `db:"id" json:"id"`
	IngredientName string    `db:"ingredient_name" json:"ingredient_name"`
	Category       string    `db:"category" json:"category"`
	ServingSize    string    `db:"serving_size" json:"serving_size"`
	Facts
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type IngredientRequest struct {
	IngredientName string `json:"ingredient_name"`
	Category       string `json:"category"`
	ServingSize    string `json:"serving_size"`
	Facts
}

// ImportResult counts the rows an ingredient import touched.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped,omitempty"`
}
