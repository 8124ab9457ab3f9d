package settings

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/db"
)

type Service struct {
	repo    Repository
	checker auth.PermissionChecker
	pool    *pgxpool.Pool
	logger  zerolog.Logger
}

// NewService wires the settings store. pool may be nil, in which case Init
// runs without a transaction.
func NewService(repo Repository, checker auth.PermissionChecker, pool *pgxpool.Pool, logger zerolog.Logger) *Service {
	return &Service{repo: repo, checker: checker, pool: pool, logger: logger}
}

// ValidateValue checks that value parses as settingType.
func ValidateValue(settingType, value string) error {
	var err error
	switch settingType {
	case TypeString:
	case TypeInteger:
		_, err = strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	case TypeFloat:
		_, err = strconv.ParseFloat(strings.TrimSpace(value), 64)
	case TypeBoolean:
		_, err = strconv.ParseBool(strings.TrimSpace(value))
	case TypeJSON:
		if !json.Valid([]byte(value)) {
			return apperr.Validation("setting_value is not valid json")
		}
	default:
		return apperr.Validation("invalid setting_type: %s", settingType)
	}
	if err != nil {
		return apperr.Validation("setting_value is not a valid %s", settingType)
	}
	return nil
}

func (s *Service) canManage(ctx context.Context, p *auth.Principal) (bool, error) {
	return s.checker.HasPermission(ctx, p, rbac.PermSettingsManage)
}

// List returns every setting to managers and only public ones otherwise.
func (s *Service) List(ctx context.Context, p *auth.Principal, category string) ([]*Setting, error) {
	manage, err := s.canManage(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, !manage, category)
}

func (s *Service) Categories(ctx context.Context, p *auth.Principal) ([]Category, error) {
	manage, err := s.canManage(ctx, p)
	if err != nil {
		return nil, err
	}
	names, err := s.repo.Categories(ctx, !manage)
	if err != nil {
		return nil, err
	}
	out := make([]Category, 0, len(names))
	for _, n := range names {
		out = append(out, Category{Category: n})
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, key string) (*Setting, error) {
	st, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if st.IsPublic {
		return st, nil
	}
	manage, err := s.canManage(ctx, p)
	if err != nil {
		return nil, err
	}
	if !manage {
		return nil, apperr.Forbidden("access to this setting denied")
	}
	return st, nil
}

func (s *Service) Create(ctx context.Context, p *auth.Principal, req CreateRequest) (*Setting, error) {
	st := &Setting{
		Key:         strings.TrimSpace(req.Key),
		Value:       req.Value,
		Type:        req.Type,
		Category:    strings.TrimSpace(req.Category),
		Description: req.Description,
		IsPublic:    req.IsPublic,
		IsEditable:  true,
		CreatedBy:   &p.ID,
		UpdatedBy:   &p.ID,
	}
	if st.Key == "" {
		return nil, apperr.Validation("setting_key is required")
	}
	if st.Type == "" {
		st.Type = TypeString
	}
	if st.Category == "" {
		st.Category = defaultCategory
	}
	if req.IsEditable != nil {
		st.IsEditable = *req.IsEditable
	}
	if err := ValidateValue(st.Type, st.Value); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Info().Str("setting_key", st.Key).Str("user", p.Username).Msg("setting created")
	return st, nil
}

func (s *Service) editable(ctx context.Context, key string) (*Setting, error) {
	st, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !st.IsEditable {
		return nil, apperr.Forbidden("setting %s is not editable", key)
	}
	return st, nil
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, key string, req UpdateRequest) (*Setting, error) {
	st, err := s.editable(ctx, key)
	if err != nil {
		return nil, err
	}
	if req.Value != nil {
		st.Value = *req.Value
	}
	if req.Type != nil {
		st.Type = *req.Type
	}
	if req.Category != nil && strings.TrimSpace(*req.Category) != "" {
		st.Category = strings.TrimSpace(*req.Category)
	}
	if req.Description != nil {
		st.Description = *req.Description
	}
	if req.IsPublic != nil {
		st.IsPublic = *req.IsPublic
	}
	if req.IsEditable != nil {
		st.IsEditable = *req.IsEditable
	}
	if err := ValidateValue(st.Type, st.Value); err != nil {
		return nil, err
	}
	st.UpdatedBy = &p.ID
	if err := s.repo.Update(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Info().Str("setting_key", key).Str("user", p.Username).Msg("setting updated")
	return st, nil
}

func (s *Service) Delete(ctx context.Context, p *auth.Principal, key string) error {
	if _, err := s.editable(ctx, key); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.logger.Info().Str("setting_key", key).Str("user", p.Username).Msg("setting deleted")
	return nil
}

// Init inserts Defaults when the table is empty and does nothing otherwise.
func (s *Service) Init(ctx context.Context) (*InitResult, error) {
	res := &InitResult{}
	run := func(ctx context.Context) error {
		n, err := s.repo.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			res.Skipped = true
			return nil
		}
		for _, d := range Defaults {
			st := d
			if err := s.repo.Create(ctx, &st); err != nil {
				return err
			}
			res.Inserted++
		}
		return nil
	}

	var err error
	if s.pool != nil {
		err = db.InTx(ctx, s.pool, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("inserted", res.Inserted).Bool("skipped", res.Skipped).Msg("default settings initialized")
	return res, nil
}
