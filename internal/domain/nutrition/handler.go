package nutrition

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/pkg/pagination"
)

type Handler struct {
	svc     *Service
	checker auth.PermissionChecker
}

func NewHandler(svc *Service, checker auth.PermissionChecker) *Handler {
	return &Handler{svc: svc, checker: checker}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	perm := func(p string) echo.MiddlewareFunc { return auth.RequirePermission(h.checker, p) }

	mt := api.Group("/meal-types")
	mt.GET("", h.ListMealTypes)
	mt.POST("", h.CreateMealType, perm(rbac.PermMealsManageTypes))
	mt.PUT("/:id", h.UpdateMealType, perm(rbac.PermMealsManageTypes))
	mt.DELETE("/:id", h.DeleteMealType, perm(rbac.PermMealsManageTypes))

	meals := api.Group("/meals")
	meals.POST("", h.CreateMeal, perm(rbac.PermMealsCreate))
	meals.GET("", h.MyMeals, perm(rbac.PermMealsViewOwn))
	meals.GET("/all", h.AllMeals, perm(rbac.PermMealsViewAll))
	meals.GET("/user/:id", h.UserMeals, perm(rbac.PermMealsViewAssigned))
	meals.POST("/user/:id", h.CreateMealPlan, perm(rbac.PermMealsCreatePlans))
	meals.GET("/:id", h.GetMeal, auth.RequireModule(h.checker, "meals"))
	meals.PUT("/:id", h.UpdateMeal, auth.RequireModule(h.checker, "meals"))
	meals.DELETE("/:id", h.DeleteMeal, auth.RequireModule(h.checker, "meals"))

	nt := api.Group("/nutrients")
	nt.POST("", h.TrackNutrient, perm(rbac.PermNutritionTrack))
	nt.GET("", h.MyNutrients, perm(rbac.PermNutritionView))
	nt.GET("/all", h.AllNutrients, perm(rbac.PermNutritionViewAll))
	nt.GET("/user/:id", h.UserNutrients, perm(rbac.PermNutritionViewAssigned))
	nt.DELETE("/:id", h.DeleteNutrient, auth.RequireModule(h.checker, "nutrition"))

	ing := api.Group("/ingredients")
	ing.GET("", h.SearchIngredients, auth.RequireModule(h.checker, "nutrition"))
	ing.GET("/:id", h.GetIngredient, auth.RequireModule(h.checker, "nutrition"))
	ing.POST("", h.CreateIngredient, perm(rbac.PermNutritionManageIngredients))
	ing.POST("/import", h.ImportIngredients, perm(rbac.PermNutritionManageIngredients))
	ing.PUT("/:id", h.UpdateIngredient, perm(rbac.PermNutritionManageIngredients))
	ing.DELETE("/:id", h.DeleteIngredient, perm(rbac.PermNutritionManageIngredients))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// -- Meal types --

func (h *Handler) ListMealTypes(c echo.Context) error {
	items, err := h.svc.MealTypes(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*MealType{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateMealType(c echo.Context) error {
	var req MealTypeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	mt, err := h.svc.CreateMealType(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, mt)
}

func (h *Handler) UpdateMealType(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req MealTypeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	mt, err := h.svc.UpdateMealType(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mt)
}

func (h *Handler) DeleteMealType(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMealType(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Meals --

func mealPage(c echo.Context, items []*Meal, total int, pg pagination.Params) error {
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) CreateMeal(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req MealRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.CreateMeal(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) CreateMealPlan(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	userID, err := parseID(c)
	if err != nil {
		return err
	}
	var req MealRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.CreateMealPlan(c.Request().Context(), p, userID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) MyMeals(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.MyMeals(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return mealPage(c, items, total, pg)
}

func (h *Handler) AllMeals(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.AllMeals(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return mealPage(c, items, total, pg)
}

func (h *Handler) UserMeals(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	userID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.UserMeals(c.Request().Context(), p, userID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return mealPage(c, items, total, pg)
}

func (h *Handler) GetMeal(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetMeal(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateMeal(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req MealUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.UpdateMeal(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMeal(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMeal(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Nutrients --

func nutrientPage(c echo.Context, items []*Nutrient, total int, pg pagination.Params) error {
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) TrackNutrient(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req NutrientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	n, err := h.svc.TrackNutrient(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) MyNutrients(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.MyNutrients(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return nutrientPage(c, items, total, pg)
}

func (h *Handler) AllNutrients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.AllNutrients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return nutrientPage(c, items, total, pg)
}

func (h *Handler) UserNutrients(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	userID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.UserNutrients(c.Request().Context(), p, userID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return nutrientPage(c, items, total, pg)
}

func (h *Handler) DeleteNutrient(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteNutrient(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Ingredients --

func (h *Handler) SearchIngredients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchIngredients(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetIngredient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	in, err := h.svc.GetIngredient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, in)
}

func (h *Handler) CreateIngredient(c echo.Context) error {
	var req IngredientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := h.svc.CreateIngredient(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, in)
}

func (h *Handler) UpdateIngredient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req IngredientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := h.svc.UpdateIngredient(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, in)
}

func (h *Handler) DeleteIngredient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteIngredient(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ImportIngredients accepts a multipart "file" field or a raw text/csv body.
func (h *Handler) ImportIngredients(c echo.Context) error {
	var body io.Reader = c.Request().Body
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return apperr.Validation("unable to read uploaded file")
		}
		defer f.Close()
		body = f
	}
	res, err := h.svc.ImportIngredients(c.Request().Context(), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
