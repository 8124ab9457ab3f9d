package healthrecord

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/events"
)

// Assignments reports active patient/provider relationships. The care team
// service implements it.
type Assignments interface {
	IsAssigned(ctx context.Context, providerID, patientID uuid.UUID) (bool, error)
}

type Service struct {
	repo        Repository
	checker     auth.PermissionChecker
	assignments Assignments
	publisher   events.Publisher
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(repo Repository, checker auth.PermissionChecker, assignments Assignments, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		checker:     checker,
		assignments: assignments,
		publisher:   events.Nop{},
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) SetPublisher(p events.Publisher) {
	s.publisher = p
}

// List scopes records by the caller's widest grant: view_all sees every
// record, view_assigned sees records of actively assigned patients and
// view_own sees the caller's own.
func (s *Service) List(ctx context.Context, p *auth.Principal, f Filter, limit, offset int) ([]*Record, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid status: %s", f.Status)
	}
	f.AssignedTo = nil

	all, err := s.checker.HasPermission(ctx, p, rbac.PermHealthRecordsViewAll)
	if err != nil {
		return nil, 0, err
	}
	if all {
		return s.repo.List(ctx, f, limit, offset)
	}

	assigned, err := s.checker.HasPermission(ctx, p, rbac.PermHealthRecordsViewAssigned)
	if err != nil {
		return nil, 0, err
	}
	if assigned {
		if f.PatientID != nil {
			ok, err := s.assignments.IsAssigned(ctx, p.ID, *f.PatientID)
			if err != nil {
				return nil, 0, err
			}
			if !ok {
				return nil, 0, apperr.Forbidden("you don't have access to this patient's records")
			}
		} else {
			f.AssignedTo = &p.ID
		}
		return s.repo.List(ctx, f, limit, offset)
	}

	own, err := s.checker.HasPermission(ctx, p, rbac.PermHealthRecordsViewOwn)
	if err != nil {
		return nil, 0, err
	}
	if !own {
		return nil, 0, apperr.Forbidden("insufficient permissions to access health records")
	}
	if f.PatientID != nil && *f.PatientID != p.ID {
		return nil, 0, apperr.Forbidden("you don't have access to this patient's records")
	}
	f.PatientID = &p.ID
	return s.repo.List(ctx, f, limit, offset)
}

type vital struct {
	name     string
	set      bool
	positive bool
}

func floatVital(name string, f *float64) vital {
	return vital{name: name, set: f != nil, positive: f != nil && *f > 0}
}

func intVital(name string, n *int) vital {
	return vital{name: name, set: n != nil, positive: n != nil && *n > 0}
}

// validateVitals reports the first non-positive vital in a fixed field order.
func validateVitals(v Vitals) error {
	for _, f := range []vital{
		floatVital("height_cm", v.HeightCM),
		floatVital("weight_kg", v.WeightKG),
		intVital("blood_pressure_systolic", v.BPSystolic),
		intVital("blood_pressure_diastolic", v.BPDiastolic),
		intVital("heart_rate_bpm", v.HeartRateBPM),
	} {
		if f.set && !f.positive {
			return apperr.Validation("%s must be positive", f.name)
		}
	}
	return nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", apperr.Validation("title must be at most %d characters", maxTitleLen)
	}
	return title, nil
}

// Create records a health record authored by the caller. Callers without
// view_all need an active assignment to the patient.
func (s *Service) Create(ctx context.Context, p *auth.Principal, req CreateRequest) (*Record, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	if err := validateVitals(req.Vitals); err != nil {
		return nil, err
	}

	isPatient, err := s.repo.IsPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !isPatient {
		return nil, apperr.NotFound("patient")
	}

	all, err := s.checker.HasPermission(ctx, p, rbac.PermHealthRecordsViewAll)
	if err != nil {
		return nil, err
	}
	if !all {
		ok, err := s.assignments.IsAssigned(ctx, p.ID, req.PatientID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Forbidden("you don't have access to create records for this patient")
		}
	}

	h := &Record{
		PatientID:      req.PatientID,
		ProviderID:     p.ID,
		RecordType:     strings.TrimSpace(req.RecordType),
		Title:          title,
		Description:    req.Description,
		Vitals:         req.Vitals,
		Symptoms:       req.Symptoms,
		Diagnosis:      req.Diagnosis,
		TreatmentPlan:  req.TreatmentPlan,
		Medications:    req.Medications,
		FollowUpDate:   req.FollowUpDate,
		IsConfidential: req.IsConfidential,
		IsEmergency:    req.IsEmergency,
		Status:         StatusActive,
		RecordDate:     s.now().UTC(),
	}
	if h.RecordType == "" {
		h.RecordType = defaultRecordType
	}
	if req.RecordDate != nil {
		h.RecordDate = req.RecordDate.UTC()
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("record_id", h.ID.String()).
		Str("patient_id", h.PatientID.String()).
		Str("provider_id", p.ID.String()).
		Msg("health record created")
	events.Emit(ctx, s.publisher, s.logger, events.New(events.HealthRecordCreated, events.UserTopic(h.PatientID),
		map[string]any{"id": h.ID, "patient_id": h.PatientID, "record_type": h.RecordType, "title": h.Title}))
	return h, nil
}

// canView admits view_all holders, the patient with view_own, the author and
// assigned providers with view_assigned.
func (s *Service) canView(ctx context.Context, p *auth.Principal, h *Record) (bool, error) {
	all, err := s.checker.HasPermission(ctx, p, rbac.PermHealthRecordsViewAll)
	if err != nil || all {
		return all, err
	}
	if h.PatientID == p.ID {
		return s.checker.HasPermission(ctx, p, rbac.PermHealthRecordsViewOwn)
	}
	assigned, err := s.checker.HasPermission(ctx, p, rbac.PermHealthRecordsViewAssigned)
	if err != nil || !assigned {
		return false, err
	}
	if h.ProviderID == p.ID {
		return true, nil
	}
	return s.assignments.IsAssigned(ctx, p.ID, h.PatientID)
}

// canEdit admits assigned providers holding edit_assigned and the author
// holding edit_own. view_all holders with either edit grant may edit any
// record.
func (s *Service) canEdit(ctx context.Context, p *auth.Principal, h *Record) (bool, error) {
	editAssigned, err := s.checker.HasPermission(ctx, p, rbac.PermHealthRecordsEditAssigned)
	if err != nil {
		return false, err
	}
	editOwn, err := s.checker.HasPermission(ctx, p, rbac.PermHealthRecordsEditOwn)
	if err != nil {
		return false, err
	}
	if !editAssigned && !editOwn {
		return false, nil
	}
	if editOwn && h.ProviderID == p.ID {
		return true, nil
	}
	all, err := s.checker.HasPermission(ctx, p, rbac.PermHealthRecordsViewAll)
	if err != nil || all {
		return all, err
	}
	if !editAssigned {
		return false, nil
	}
	return s.assignments.IsAssigned(ctx, p.ID, h.PatientID)
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Record, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, p, h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("you don't have access to this record")
	}
	return h, nil
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, req UpdateRequest) (*Record, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canEdit(ctx, p, h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("you cannot edit this record")
	}

	if req.Title != nil {
		if h.Title, err = validateTitle(*req.Title); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if !validStatuses[*req.Status] {
			return nil, apperr.Validation("invalid status: %s", *req.Status)
		}
		h.Status = *req.Status
	}
	if req.Vitals != nil {
		if err := validateVitals(*req.Vitals); err != nil {
			return nil, err
		}
		h.Vitals = *req.Vitals
	}
	if req.RecordType != nil && strings.TrimSpace(*req.RecordType) != "" {
		h.RecordType = strings.TrimSpace(*req.RecordType)
	}
	setString(&h.Description, req.Description)
	setString(&h.Symptoms, req.Symptoms)
	setString(&h.Diagnosis, req.Diagnosis)
	setString(&h.TreatmentPlan, req.TreatmentPlan)
	setString(&h.Medications, req.Medications)
	if req.FollowUpDate != nil {
		h.FollowUpDate = req.FollowUpDate
	}
	if req.IsConfidential != nil {
		h.IsConfidential = *req.IsConfidential
	}
	if req.IsEmergency != nil {
		h.IsEmergency = *req.IsEmergency
	}

	if err := s.repo.Update(ctx, h); err != nil {
		return nil, err
	}
	s.logger.Info().Str("record_id", id.String()).Str("updated_by", p.ID.String()).Msg("health record updated")
	return h, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (s *Service) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("record_id", id.String()).Str("deleted_by", p.ID.String()).Msg("health record deleted")
	return nil
}
