package careteam

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
	"github.com/mindlab/health/internal/platform/db"
	"github.com/mindlab/health/internal/platform/events"
)

type Service struct {
	repo      Repository
	checker   auth.PermissionChecker
	pool      *pgxpool.Pool
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService builds the care team service. pool may be nil, in which case
// assignment changes run without a transaction.
func NewService(repo Repository, checker auth.PermissionChecker, pool *pgxpool.Pool, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		checker:   checker,
		pool:      pool,
		publisher: events.Nop{},
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) SetPublisher(p events.Publisher) {
	s.publisher = p
}

// Patients lists every patient for callers holding patients.view_all and the
// caller's actively assigned patients for patients.view_assigned.
func (s *Service) Patients(ctx context.Context, p *auth.Principal, limit, offset int) ([]*Patient, int, error) {
	all, err := s.checker.HasPermission(ctx, p, rbac.PermPatientsViewAll)
	if err != nil {
		return nil, 0, err
	}
	var providerID *uuid.UUID
	if !all {
		assigned, err := s.checker.HasPermission(ctx, p, rbac.PermPatientsViewAssigned)
		if err != nil {
			return nil, 0, err
		}
		if !assigned {
			return nil, 0, apperr.Forbidden("only providers can access patient data")
		}
		providerID = &p.ID
	}

	patients, total, err := s.repo.ListPatients(ctx, providerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uuid.UUID, len(patients))
	for i, pt := range patients {
		ids[i] = pt.ID
	}
	links, err := s.repo.ActiveProviders(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, pt := range patients {
		pt.Assignments = links[pt.ID]
		if pt.Assignments == nil {
			pt.Assignments = []ProviderLink{}
		}
	}
	return patients, total, nil
}

// Assign links a patient to a provider. An inactive or transferred link is
// reactivated; an active one is rejected.
func (s *Service) Assign(ctx context.Context, p *auth.Principal, patientID uuid.UUID, req AssignRequest) (*Assignment, error) {
	if req.ProviderID == uuid.Nil {
		return nil, apperr.Validation("provider_id is required")
	}
	role, err := s.repo.UserRole(ctx, patientID)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	if err != nil || role != auth.RolePatient {
		return nil, apperr.NotFound("patient")
	}
	providerRole, err := s.repo.UserRole(ctx, req.ProviderID)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	if err != nil || !providerRole.IsProvider() {
		return nil, apperr.NotFound("provider")
	}

	var a *Assignment
	run := func(ctx context.Context) error {
		existing, err := s.repo.GetAssignment(ctx, patientID, req.ProviderID)
		switch {
		case err == nil:
			if existing.RelationshipStatus == StatusActive {
				return apperr.Validation("patient is already assigned to this provider")
			}
			existing.RelationshipStatus = StatusActive
			existing.AssignedDate = s.now().UTC()
			existing.Notes = strings.TrimSpace(req.Notes)
			a = existing
			return s.repo.UpdateAssignment(ctx, a)
		case apperr.IsNotFound(err):
			a = &Assignment{
				PatientID:          patientID,
				ProviderID:         req.ProviderID,
				ProviderType:       providerRole.String(),
				RelationshipStatus: StatusActive,
				Notes:              strings.TrimSpace(req.Notes),
			}
			return s.repo.CreateAssignment(ctx, a)
		default:
			return err
		}
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
		Str("patient_id", patientID.String()).
		Str("provider_id", req.ProviderID.String()).
		Str("assigned_by", p.ID.String()).
		Msg("patient assigned")
	events.Emit(ctx, s.publisher, s.logger, events.New(events.PatientAssigned, events.UserTopic(req.ProviderID), a))
	return a, nil
}

// UpdateStatus changes the relationship status of an existing assignment.
func (s *Service) UpdateStatus(ctx context.Context, p *auth.Principal, patientID, providerID uuid.UUID, req StatusRequest) (*Assignment, error) {
	if !validStatuses[req.RelationshipStatus] {
		return nil, apperr.Validation("invalid relationship_status: %s", req.RelationshipStatus)
	}
	a, err := s.repo.GetAssignment(ctx, patientID, providerID)
	if err != nil {
		return nil, err
	}
	if req.RelationshipStatus == StatusActive && a.RelationshipStatus != StatusActive {
		a.AssignedDate = s.now().UTC()
	}
	a.RelationshipStatus = req.RelationshipStatus
	if req.Notes != nil {
		a.Notes = strings.TrimSpace(*req.Notes)
	}
	if err := s.repo.UpdateAssignment(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("assignment_id", a.ID.String()).
		Str("status", a.RelationshipStatus).
		Str("changed_by", p.ID.String()).
		Msg("assignment status updated")
	return a, nil
}

// IsAssigned reports whether providerID holds an active assignment for
// patientID.
func (s *Service) IsAssigned(ctx context.Context, providerID, patientID uuid.UUID) (bool, error) {
	return s.repo.IsAssigned(ctx, providerID, patientID)
}
