package security

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/domain/identity"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/events"
	"github.com/mindlab/health/internal/platform/middleware"
	"github.com/mindlab/health/internal/platform/websocket"
)

const (
	defaultDays = 7
	maxDays     = 365
)

// Service records security telemetry and manages alerts. It implements
// middleware.DeniedRecorder and identity.LoginRecorder.
type Service struct {
	repo      Repository
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time

	bruteForceThreshold int
	bruteForceWindow    time.Duration
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:                repo,
		publisher:           events.Nop{},
		logger:              logger,
		now:                 time.Now,
		bruteForceThreshold: defaultBruteForceThreshold,
		bruteForceWindow:    defaultBruteForceWindow,
	}
}

func (s *Service) SetPublisher(p events.Publisher) {
	s.publisher = p
}

// SetBruteForcePolicy overrides how many failed logins from one address
// within window raise an alert. Non-positive values keep the current policy.
func (s *Service) SetBruteForcePolicy(threshold int, window time.Duration) {
	if threshold > 0 {
		s.bruteForceThreshold = threshold
	}
	if window > 0 {
		s.bruteForceWindow = window
	}
}

var (
	_ middleware.DeniedRecorder = (*Service)(nil)
	_ identity.LoginRecorder    = (*Service)(nil)
)

func deniedEvent(status int) (eventType, risk string) {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized_access", RiskMedium
	case http.StatusTooManyRequests:
		return "rate_limited", RiskHigh
	default:
		return "access_denied", RiskHigh
	}
}

// RecordDenied stores a rejected request as a security event.
func (s *Service) RecordDenied(ctx context.Context, d middleware.DeniedRequest) error {
	eventType, risk := deniedEvent(d.Status)
	details, err := json.Marshal(map[string]string{
		"request_id": d.RequestID,
		"reason":     d.Reason,
		"username":   d.Username,
	})
	if err != nil {
		return err
	}
	e := &Event{
		EventType:     eventType,
		EventCategory: "access",
		IPAddress:     d.IPAddress,
		UserAgent:     d.UserAgent,
		Endpoint:      d.Path,
		Method:        d.Method,
		StatusCode:    d.Status,
		Details:       details,
		RiskLevel:     risk,
	}
	if id, err := uuid.Parse(d.UserID); err == nil {
		e.UserID = &id
	}
	return s.repo.CreateEvent(ctx, e)
}

// RecordLogin stores a token endpoint attempt. Repeated failures from one
// address raise or bump a brute force alert.
func (s *Service) RecordLogin(ctx context.Context, e identity.LoginEvent) error {
	a := &LoginAttempt{
		Username:      e.Username,
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
		Success:       e.Success,
		FailureReason: e.FailureReason,
		UserID:        e.UserID,
	}
	if err := s.repo.CreateLoginAttempt(ctx, a); err != nil {
		return err
	}
	if a.Success || a.IPAddress == "" {
		return nil
	}

	now := s.now().UTC()
	failures, err := s.repo.CountFailedLogins(ctx, a.IPAddress, now.Add(-s.bruteForceWindow))
	if err != nil {
		return err
	}
	if failures < s.bruteForceThreshold {
		return nil
	}
	return s.raiseBruteForce(ctx, a, failures, now)
}

func (s *Service) raiseBruteForce(ctx context.Context, a *LoginAttempt, failures int, now time.Time) error {
	desc := fmt.Sprintf("%d failed logins from %s within %s, last for %q",
		failures, a.IPAddress, s.bruteForceWindow, a.Username)

	alert, err := s.repo.OpenAlert(ctx, AlertBruteForce, a.IPAddress)
	switch {
	case err == nil:
		alert.EventCount = failures
		alert.LastSeen = now
		alert.Description = desc
		if err := s.repo.BumpAlert(ctx, alert); err != nil {
			return err
		}
	case apperr.IsNotFound(err):
		alert = &Alert{
			AlertType:   AlertBruteForce,
			Severity:    RiskHigh,
			Title:       "Possible brute force login",
			Description: desc,
			IPAddress:   a.IPAddress,
			Endpoint:    "/api/token",
			EventCount:  failures,
		}
		if err := s.repo.CreateAlert(ctx, alert); err != nil {
			return err
		}
	default:
		return err
	}

	s.logger.Warn().
		Str("alert_id", alert.ID.String()).
		Str("remote_ip", a.IPAddress).
		Int("failures", failures).
		Msg("brute force alert raised")
	events.Emit(ctx, s.publisher, s.logger, events.New(events.SecurityAlertRaised, websocket.SecurityTopic, alert))
	return nil
}

// Window clamps days to [1, 365], defaulting to 7, and returns the start of
// the range ending now.
func (s *Service) Window(days int) (start, end time.Time) {
	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}
	end = s.now().UTC()
	return end.AddDate(0, 0, -days), end
}

func (s *Service) Dashboard(ctx context.Context, days int) (*Dashboard, error) {
	start, end := s.Window(days)
	totals, err := s.repo.Totals(ctx, start)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.repo.ListEvents(ctx, EventFilter{Since: start}, dashboardRecentLimit, 0)
	if err != nil {
		return nil, err
	}
	open := false
	alerts, _, err := s.repo.ListAlerts(ctx, AlertFilter{Resolved: &open}, dashboardRecentLimit, 0)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Totals:           *totals,
		LoginSuccessRate: 100,
		RecentEvents:     recent,
		RecentAlerts:     alerts,
		Start:            start,
		End:              end,
	}
	if totals.LoginAttempts > 0 {
		ok := totals.LoginAttempts - totals.FailedLogins
		d.LoginSuccessRate = float64(ok) * 100 / float64(totals.LoginAttempts)
	}
	if d.RecentEvents == nil {
		d.RecentEvents = []*Event{}
	}
	if d.RecentAlerts == nil {
		d.RecentAlerts = []*Alert{}
	}
	return d, nil
}

// CreateEvent records an event reported by an operator or another system.
func (s *Service) CreateEvent(ctx context.Context, req EventRequest) (*Event, error) {
	req.EventType = strings.TrimSpace(req.EventType)
	if req.EventType == "" {
		return nil, apperr.Validation("event_type is required")
	}
	if req.RiskLevel == "" {
		req.RiskLevel = RiskLow
	}
	if !validRisk[req.RiskLevel] {
		return nil, apperr.Validation("invalid risk_level: %s", req.RiskLevel)
	}
	if req.EventCategory == "" {
		req.EventCategory = "access"
	}
	if len(req.Details) > 0 && !json.Valid(req.Details) {
		return nil, apperr.Validation("details must be valid JSON")
	}
	e := &Event{
		EventType:     req.EventType,
		EventCategory: req.EventCategory,
		UserID:        req.UserID,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		Endpoint:      req.Endpoint,
		Method:        req.Method,
		StatusCode:    req.StatusCode,
		Details:       req.Details,
		RiskLevel:     req.RiskLevel,
	}
	if err := s.repo.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Events(ctx context.Context, f EventFilter, limit, offset int) ([]*Event, int, error) {
	if f.RiskLevel != "" && !validRisk[f.RiskLevel] {
		return nil, 0, apperr.Validation("invalid risk_level: %s", f.RiskLevel)
	}
	return s.repo.ListEvents(ctx, f, limit, offset)
}

func (s *Service) LoginAttempts(ctx context.Context, f LoginFilter, limit, offset int) ([]*LoginAttempt, int, error) {
	return s.repo.ListLoginAttempts(ctx, f, limit, offset)
}

func (s *Service) AuditLogs(ctx context.Context, f AuditFilter, limit, offset int) ([]*AuditLog, int, error) {
	return s.repo.ListAuditLogs(ctx, f, limit, offset)
}

func (s *Service) Alerts(ctx context.Context, f AlertFilter, limit, offset int) ([]*Alert, int, error) {
	if f.Severity != "" && !validRisk[f.Severity] {
		return nil, 0, apperr.Validation("invalid severity: %s", f.Severity)
	}
	return s.repo.ListAlerts(ctx, f, limit, offset)
}

func (s *Service) CreateAlert(ctx context.Context, p *auth.Principal, req AlertRequest) (*Alert, error) {
	req.AlertType = strings.TrimSpace(req.AlertType)
	req.Title = strings.TrimSpace(req.Title)
	if req.AlertType == "" {
		return nil, apperr.Validation("alert_type is required")
	}
	if req.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if req.Severity == "" {
		req.Severity = RiskMedium
	}
	if !validRisk[req.Severity] {
		return nil, apperr.Validation("invalid severity: %s", req.Severity)
	}
	a := &Alert{
		AlertType:   req.AlertType,
		Severity:    req.Severity,
		Title:       req.Title,
		Description: req.Description,
		IPAddress:   req.IPAddress,
		UserID:      req.UserID,
		Endpoint:    req.Endpoint,
		EventCount:  1,
	}
	if err := s.repo.CreateAlert(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Str("alert_id", a.ID.String()).Str("created_by", p.ID.String()).Msg("security alert created")
	events.Emit(ctx, s.publisher, s.logger, events.New(events.SecurityAlertRaised, websocket.SecurityTopic, a))
	return a, nil
}

func (s *Service) ResolveAlert(ctx context.Context, p *auth.Principal, id uuid.UUID, req ResolveRequest) (*Alert, error) {
	a, err := s.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Resolved {
		return nil, apperr.Validation("alert is already resolved")
	}
	now := s.now().UTC()
	a.Resolved = true
	a.ResolvedBy = &p.ID
	a.ResolvedAt = &now
	a.ResolutionNotes = strings.TrimSpace(req.ResolutionNotes)
	if err := s.repo.ResolveAlert(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Str("alert_id", id.String()).Str("resolved_by", p.ID.String()).Msg("security alert resolved")
	return a, nil
}
