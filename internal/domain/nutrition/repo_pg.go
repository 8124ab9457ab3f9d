package nutrition

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func affected(err error, rows int64, resource string) error {
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.NotFound(resource)
	}
	return nil
}

// -- Meal types --

const mealTypeCols = `id, name, default_time, description, is_active, created_at`

func scanMealType(row pgx.Row) (*MealType, error) {
	var mt MealType
	if err := row.Scan(&mt.ID, &mt.Name, &mt.DefaultTime, &mt.Description, &mt.IsActive, &mt.CreatedAt); err != nil {
		return nil, db.NotFound(err, "meal type")
	}
	return &mt, nil
}

func (r *repoPG) ListMealTypes(ctx context.Context, activeOnly bool) ([]*MealType, error) {
	q := `SELECT ` + mealTypeCols + ` FROM meal_types`
	if activeOnly {
		q += ` WHERE is_active`
	}
	rows, err := r.conn(ctx).Query(ctx, q+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*MealType
	for rows.Next() {
		mt, err := scanMealType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, mt)
	}
	return items, rows.Err()
}

func (r *repoPG) GetMealType(ctx context.Context, id uuid.UUID) (*MealType, error) {
	return scanMealType(r.conn(ctx).QueryRow(ctx, `SELECT `+mealTypeCols+` FROM meal_types WHERE id = $1`, id))
}

func (r *repoPG) CreateMealType(ctx context.Context, mt *MealType) error {
	mt.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO meal_types (id, name, default_time, description, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		mt.ID, mt.Name, mt.DefaultTime, mt.Description, mt.IsActive).Scan(&mt.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Validation("meal type already exists")
	}
	return err
}

func (r *repoPG) UpdateMealType(ctx context.Context, mt *MealType) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE meal_types SET name = $2, default_time = $3, description = $4, is_active = $5
		WHERE id = $1`,
		mt.ID, mt.Name, mt.DefaultTime, mt.Description, mt.IsActive)
	if db.IsUniqueViolation(err) {
		return apperr.Validation("meal type already exists")
	}
	return affected(err, tag.RowsAffected(), "meal type")
}

func (r *repoPG) DeleteMealType(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM meal_types WHERE id = $1`, id)
	return affected(err, tag.RowsAffected(), "meal type")
}

// -- Meals --

const mealCols = `id, user_id, name, description, ingredients, preparation, meal_type, meal_time,
	period_type, meal_date, day_number, meal_notes, week_notes, created_at, updated_at`

func scanMeal(row pgx.Row) (*Meal, error) {
	var m Meal
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Description, &m.Ingredients, &m.Preparation,
		&m.MealType, &m.MealTime, &m.PeriodType, &m.MealDate, &m.DayNumber, &m.MealNotes,
		&m.WeekNotes, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err, "meal")
	}
	return &m, nil
}

func (r *repoPG) CreateMeal(ctx context.Context, m *Meal) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO meals (id, user_id, name, description, ingredients, preparation, meal_type,
			meal_time, period_type, meal_date, day_number, meal_notes, week_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		m.ID, m.UserID, m.Name, m.Description, m.Ingredients, m.Preparation, m.MealType,
		m.MealTime, m.PeriodType, m.MealDate, m.DayNumber, m.MealNotes, m.WeekNotes).
		Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetMeal(ctx context.Context, id uuid.UUID) (*Meal, error) {
	return scanMeal(r.conn(ctx).QueryRow(ctx, `SELECT `+mealCols+` FROM meals WHERE id = $1`, id))
}

func (r *repoPG) UpdateMeal(ctx context.Context, m *Meal) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE meals SET name = $2, description = $3, ingredients = $4, preparation = $5,
			meal_type = $6, meal_time = $7, period_type = $8, meal_date = $9, day_number = $10,
			meal_notes = $11, week_notes = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Name, m.Description, m.Ingredients, m.Preparation, m.MealType, m.MealTime,
		m.PeriodType, m.MealDate, m.DayNumber, m.MealNotes, m.WeekNotes).Scan(&m.UpdatedAt)
	return db.NotFound(err, "meal")
}

func (r *repoPG) DeleteMeal(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM meals WHERE id = $1`, id)
	return affected(err, tag.RowsAffected(), "meal")
}

func (r *repoPG) ListMeals(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*Meal, int, error) {
	where, args := "TRUE", []interface{}{}
	if userID != nil {
		where, args = "user_id = $1", []interface{}{*userID}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM meals WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM meals WHERE %s ORDER BY meal_date DESC LIMIT $%d OFFSET $%d`,
		mealCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

// -- Nutrients --

const nutrientCols = `id, user_id, nutrient_name, amount, unit, tracked_on, notes, created_at`

func scanNutrient(row pgx.Row) (*Nutrient, error) {
	var n Nutrient
	err := row.Scan(&n.ID, &n.UserID, &n.NutrientName, &n.Amount, &n.Unit, &n.TrackedOn, &n.Notes, &n.CreatedAt)
	if err != nil {
		return nil, db.NotFound(err, "nutrient")
	}
	return &n, nil
}

func (r *repoPG) CreateNutrient(ctx context.Context, n *Nutrient) error {
	n.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO nutrients (id, user_id, nutrient_name, amount, unit, tracked_on, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		n.ID, n.UserID, n.NutrientName, n.Amount, n.Unit, n.TrackedOn, n.Notes).Scan(&n.CreatedAt)
}

func (r *repoPG) GetNutrient(ctx context.Context, id uuid.UUID) (*Nutrient, error) {
	return scanNutrient(r.conn(ctx).QueryRow(ctx, `SELECT `+nutrientCols+` FROM nutrients WHERE id = $1`, id))
}

func (r *repoPG) DeleteNutrient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM nutrients WHERE id = $1`, id)
	return affected(err, tag.RowsAffected(), "nutrient")
}

func (r *repoPG) ListNutrients(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*Nutrient, int, error) {
	where, args := "TRUE", []interface{}{}
	if userID != nil {
		where, args = "user_id = $1", []interface{}{*userID}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM nutrients WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM nutrients WHERE %s ORDER BY tracked_on DESC LIMIT $%d OFFSET $%d`,
		nutrientCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Nutrient
	for rows.Next() {
		nt, err := scanNutrient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, nt)
	}
	return items, total, rows.Err()
}

// -- Ingredients --

var ingredientCols = "id, ingredient_name, category, serving_size, " +
	strings.Join(factColumns, ", ") + ", created_at, updated_at"

func scanIngredient(row pgx.Row) (*Ingredient, error) {
	var in Ingredient
	dest := []interface{}{&in.ID, &in.IngredientName, &in.Category, &in.ServingSize}
	for _, f := range in.fields() {
		dest = append(dest, f)
	}
	dest = append(dest, &in.CreatedAt, &in.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, db.NotFound(err, "ingredient")
	}
	return &in, nil
}

// ingredientArgs returns id, name, category, serving size, then the facts.
func ingredientArgs(in *Ingredient) []interface{} {
	args := []interface{}{in.ID, in.IngredientName, in.Category, in.ServingSize}
	for _, f := range in.fields() {
		args = append(args, *f)
	}
	return args
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}

func ingredientInsert() string {
	return `INSERT INTO ingredient_nutrition (id, ingredient_name, category, serving_size, ` +
		strings.Join(factColumns, ", ") + `) VALUES (` + placeholders(1, 4+len(factColumns)) + `)`
}

func (r *repoPG) SearchIngredients(ctx context.Context, query string, limit, offset int) ([]*Ingredient, int, error) {
	where, args := "TRUE", []interface{}{}
	if query = strings.TrimSpace(query); query != "" {
		where, args = "LOWER(ingredient_name) LIKE $1", []interface{}{"%" + strings.ToLower(query) + "%"}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ingredient_nutrition WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM ingredient_nutrition WHERE %s ORDER BY ingredient_name LIMIT $%d OFFSET $%d`,
		ingredientCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Ingredient
	for rows.Next() {
		in, err := scanIngredient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, in)
	}
	return items, total, rows.Err()
}

func (r *repoPG) GetIngredient(ctx context.Context, id uuid.UUID) (*Ingredient, error) {
	return scanIngredient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ingredientCols+` FROM ingredient_nutrition WHERE id = $1`, id))
}

func (r *repoPG) CreateIngredient(ctx context.Context, in *Ingredient) error {
	in.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, ingredientInsert()+` RETURNING created_at, updated_at`,
		ingredientArgs(in)...).Scan(&in.CreatedAt, &in.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Validation("ingredient %q already exists", in.IngredientName)
	}
	return err
}

func (r *repoPG) UpdateIngredient(ctx context.Context, in *Ingredient) error {
	sets := []string{"ingredient_name = $2", "category = $3", "serving_size = $4"}
	for i, col := range factColumns {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+5))
	}
	err := r.conn(ctx).QueryRow(ctx,
		`UPDATE ingredient_nutrition SET `+strings.Join(sets, ", ")+`, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`,
		ingredientArgs(in)...).Scan(&in.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Validation("ingredient %q already exists", in.IngredientName)
	}
	return db.NotFound(err, "ingredient")
}

func (r *repoPG) DeleteIngredient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM ingredient_nutrition WHERE id = $1`, id)
	return affected(err, tag.RowsAffected(), "ingredient")
}

func (r *repoPG) UpsertIngredient(ctx context.Context, in *Ingredient) (bool, error) {
	sets := []string{"category = EXCLUDED.category", "serving_size = EXCLUDED.serving_size"}
	for _, col := range factColumns {
		sets = append(sets, col+" = EXCLUDED."+col)
	}
	in.ID = uuid.New()
	var inserted bool
	err := r.conn(ctx).QueryRow(ctx, ingredientInsert()+`
		ON CONFLICT (ingredient_name) DO UPDATE SET `+strings.Join(sets, ", ")+`, updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0)`,
		ingredientArgs(in)...).Scan(&in.ID, &in.CreatedAt, &in.UpdatedAt, &inserted)
	return inserted, err
}
