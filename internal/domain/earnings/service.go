package earnings

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/events"
)

type Service struct {
	repo      Repository
	checker   auth.PermissionChecker
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, checker auth.PermissionChecker, logger zerolog.Logger) *Service {
	return &Service{repo: repo, checker: checker, publisher: events.Nop{}, logger: logger, now: time.Now}
}

func (s *Service) SetPublisher(p events.Publisher) {
	s.publisher = p
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Commission prices base under cs. Amounts below the structure minimum earn
// no commission; the result is capped at MaximumCommission when set.
func Commission(cs *CommissionStructure, base float64) (rate, amount float64) {
	if cs == nil || base < cs.MinimumAmount {
		return 0, 0
	}
	amount = base * cs.CommissionRate
	if cs.MaximumCommission != nil && amount > *cs.MaximumCommission {
		amount = *cs.MaximumCommission
	}
	return cs.CommissionRate, roundCents(amount)
}

// scope returns nil for callers who may see every provider and the caller's
// own id otherwise.
func (s *Service) scope(ctx context.Context, p *auth.Principal) (*uuid.UUID, error) {
	all, err := s.checker.HasPermission(ctx, p, rbac.PermEarningsViewAll)
	if err != nil {
		return nil, err
	}
	if all {
		return nil, nil
	}
	own, err := s.checker.HasPermission(ctx, p, rbac.PermEarningsViewOwn)
	if err != nil {
		return nil, err
	}
	if !own {
		return nil, apperr.Forbidden("only providers can access earnings data")
	}
	return &p.ID, nil
}

func (s *Service) List(ctx context.Context, p *auth.Principal, f Filter, limit, offset int) ([]*Record, int, error) {
	if f.PaymentStatus != "" && !validStatuses[f.PaymentStatus] {
		return nil, 0, apperr.Validation("invalid payment_status: %s", f.PaymentStatus)
	}
	own, err := s.scope(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	if own != nil {
		f.ProviderID = own
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Record stores an earnings entry priced by the active commission structure
// for the provider's role. Providers record their own earnings; holders of
// earnings.manage may record for any provider.
func (s *Service) Record(ctx context.Context, p *auth.Principal, req RecordRequest) (*Record, error) {
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	if req.ServiceType == "" {
		return nil, apperr.Validation("service_type is required")
	}
	if req.BaseAmount < 0 {
		return nil, apperr.Validation("base_amount must not be negative")
	}

	providerID := p.ID
	providerRole := p.Role
	if req.ProviderID != nil && *req.ProviderID != p.ID {
		ok, err := s.checker.HasPermission(ctx, p, rbac.PermEarningsManage)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Forbidden("you can only record your own earnings")
		}
		role, err := s.repo.UserRole(ctx, *req.ProviderID)
		if err != nil && !apperr.IsNotFound(err) {
			return nil, err
		}
		if err != nil || !role.IsProvider() {
			return nil, apperr.NotFound("provider")
		}
		providerID, providerRole = *req.ProviderID, role
	} else if !providerRole.IsProvider() {
		return nil, apperr.Validation("provider_id is required")
	}

	if err := s.checkReferences(ctx, req); err != nil {
		return nil, err
	}

	cs, err := s.repo.ActiveStructure(ctx, providerRole.String(), req.ServiceType)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	base := roundCents(req.BaseAmount)
	rate, commission := Commission(cs, base)

	e := &Record{
		ProviderID:       providerID,
		PatientID:        req.PatientID,
		AppointmentID:    req.AppointmentID,
		ServiceType:      req.ServiceType,
		BaseAmount:       base,
		CommissionRate:   rate,
		CommissionAmount: commission,
		NetEarnings:      roundCents(base - commission),
		PaymentStatus:    StatusPending,
		ServiceDate:      s.now().UTC(),
		Notes:            req.Notes,
	}
	if req.ServiceDate != nil {
		e.ServiceDate = req.ServiceDate.UTC()
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("record_id", e.ID.String()).
		Str("provider_id", providerID.String()).
		Float64("base_amount", e.BaseAmount).
		Float64("commission", e.CommissionAmount).
		Msg("earnings recorded")
	events.Emit(ctx, s.publisher, s.logger, events.New(events.EarningsRecorded, events.UserTopic(providerID), e))
	return e, nil
}

// checkReferences verifies the optional patient and appointment exist.
func (s *Service) checkReferences(ctx context.Context, req RecordRequest) error {
	if req.PatientID != nil {
		role, err := s.repo.UserRole(ctx, *req.PatientID)
		if err != nil && !apperr.IsNotFound(err) {
			return err
		}
		if err != nil || role != auth.RolePatient {
			return apperr.NotFound("patient")
		}
	}
	if req.AppointmentID != nil {
		ok, err := s.repo.AppointmentExists(ctx, *req.AppointmentID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("appointment")
		}
	}
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, p *auth.Principal, id uuid.UUID, req StatusRequest) (*Record, error) {
	if !validStatuses[req.PaymentStatus] {
		return nil, apperr.Validation("invalid payment_status: %s", req.PaymentStatus)
	}
	if err := s.repo.UpdateStatus(ctx, id, req.PaymentStatus); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("record_id", id.String()).
		Str("payment_status", req.PaymentStatus).
		Str("changed_by", p.ID.String()).
		Msg("earnings status updated")
	return s.repo.GetByID(ctx, id)
}

// Summary totals the caller's earnings (every provider's for view_all) with
// a per-month breakdown of the current year.
func (s *Service) Summary(ctx context.Context, p *auth.Principal) (*Summary, error) {
	own, err := s.scope(ctx, p)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.Totals(ctx, own)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	monthly, err := s.repo.Monthly(ctx, own, yearStart)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Totals: *totals, Year: now.Year(), Monthly: monthly}
	if totals.Services > 0 {
		sum.AverageServiceAmount = roundCents(totals.Gross / float64(totals.Services))
	}
	if sum.Monthly == nil {
		sum.Monthly = []MonthTotals{}
	}
	return sum, nil
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	totals, err := s.repo.Totals(ctx, nil)
	if err != nil {
		return nil, err
	}
	byRole, err := s.repo.ByRole(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.CountByStatus(ctx, StatusPending)
	if err != nil {
		return nil, err
	}
	if byRole == nil {
		byRole = []RoleTotals{}
	}
	return &Overview{Totals: *totals, ByRole: byRole, Pending: pending}, nil
}

// -- commission structures --

func validateStructure(rate, minimum float64, maximum *float64) error {
	if rate < 0 || rate > 1 {
		return apperr.Validation("commission rate must be between 0 and 1")
	}
	if minimum < 0 {
		return apperr.Validation("minimum_amount must not be negative")
	}
	if maximum != nil && *maximum < 0 {
		return apperr.Validation("maximum_commission must not be negative")
	}
	return nil
}

func (s *Service) Structures(ctx context.Context, activeOnly bool) ([]*CommissionStructure, error) {
	return s.repo.ListStructures(ctx, activeOnly)
}

func (s *Service) CreateStructure(ctx context.Context, p *auth.Principal, req StructureRequest) (*CommissionStructure, error) {
	role, err := auth.ParseRole(req.ProviderRole)
	if err != nil || !role.IsProvider() {
		return nil, apperr.Validation("invalid provider_role: %s", req.ProviderRole)
	}
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	if req.ServiceType == "" {
		return nil, apperr.Validation("service_type is required")
	}
	if err := validateStructure(req.CommissionRate, req.MinimumAmount, req.MaximumCommission); err != nil {
		return nil, err
	}
	cs := &CommissionStructure{
		ProviderRole:      role.String(),
		ServiceType:       req.ServiceType,
		CommissionRate:    req.CommissionRate,
		MinimumAmount:     req.MinimumAmount,
		MaximumCommission: req.MaximumCommission,
		IsActive:          req.IsActive == nil || *req.IsActive,
	}
	if err := s.repo.CreateStructure(ctx, cs); err != nil {
		return nil, err
	}
	s.logger.Info().Str("structure_id", cs.ID.String()).Str("created_by", p.ID.String()).Msg("commission structure created")
	return cs, nil
}

func (s *Service) UpdateStructure(ctx context.Context, p *auth.Principal, id uuid.UUID, req StructureUpdate) (*CommissionStructure, error) {
	cs, err := s.repo.GetStructure(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CommissionRate != nil {
		cs.CommissionRate = *req.CommissionRate
	}
	if req.MinimumAmount != nil {
		cs.MinimumAmount = *req.MinimumAmount
	}
	if req.MaximumCommission != nil {
		cs.MaximumCommission = req.MaximumCommission
	}
	if req.IsActive != nil {
		cs.IsActive = *req.IsActive
	}
	if err := validateStructure(cs.CommissionRate, cs.MinimumAmount, cs.MaximumCommission); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStructure(ctx, cs); err != nil {
		return nil, err
	}
	s.logger.Info().Str("structure_id", id.String()).Str("updated_by", p.ID.String()).Msg("commission structure updated")
	return cs, nil
}

func (s *Service) DeleteStructure(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if err := s.repo.DeleteStructure(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("structure_id", id.String()).Str("deleted_by", p.ID.String()).Msg("commission structure deleted")
	return nil
}
