package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
)

// Queries run sequentially because a request holds a single pooled
// connection for its lifetime.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Window clamps days to [1, 365], defaulting to 30, and returns the range
// ending now.
func (s *Service) Window(days int) DateRange {
	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}
	end := s.now().UTC()
	return DateRange{Start: end.AddDate(0, 0, -days), End: end}
}

func (s *Service) Dashboard(ctx context.Context, days int) (*Dashboard, error) {
	rng := s.Window(days)
	d := &Dashboard{Range: rng, GeneratedAt: rng.End}

	users, err := s.repo.UserStats(ctx, rng.Start)
	if err != nil {
		return nil, err
	}
	appts, err := s.repo.AppointmentStats(ctx, rng.Start)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.MessageStats(ctx, rng.Start)
	if err != nil {
		return nil, err
	}
	meals, err := s.repo.MealStats(ctx, rng.Start)
	if err != nil {
		return nil, err
	}
	sys, err := s.repo.SystemStats(ctx)
	if err != nil {
		return nil, err
	}
	d.Users, d.Appointments, d.Messages, d.Meals, d.System = *users, *appts, *msgs, *meals, *sys

	d.RecentActivities, err = s.repo.ListActivities(ctx, rng.Start, recentActivityLimit)
	if err != nil {
		return nil, err
	}
	if d.RecentActivities == nil {
		d.RecentActivities = []*Activity{}
	}
	return d, nil
}

func (s *Service) Users(ctx context.Context, days int) (*UserReport, error) {
	rng := s.Window(days)
	rep := &UserReport{Range: rng}
	var err error
	if rep.Growth, err = s.repo.UserGrowth(ctx, rng.Start); err != nil {
		return nil, err
	}
	if rep.RoleDistribution, err = s.repo.RoleDistribution(ctx); err != nil {
		return nil, err
	}
	if rep.Active, err = s.repo.ActiveUsers(ctx, rng.Start); err != nil {
		return nil, err
	}
	for _, rc := range rep.RoleDistribution {
		rep.Total += rc.Count
	}
	return rep, nil
}

func (s *Service) Appointments(ctx context.Context, days int) (*AppointmentReport, error) {
	rng := s.Window(days)
	rep := &AppointmentReport{Range: rng}
	var err error
	if rep.Trend, err = s.repo.AppointmentTrend(ctx, rng.Start); err != nil {
		return nil, err
	}
	if rep.StatusDistribution, err = s.repo.AppointmentStatuses(ctx); err != nil {
		return nil, err
	}
	if rep.TopProviders, err = s.repo.TopProviders(ctx, rng.Start, topProviderLimit); err != nil {
		return nil, err
	}
	for _, sc := range rep.StatusDistribution {
		rep.Total += sc.Count
	}
	return rep, nil
}

// RecordActivity stores an activity for the caller.
func (s *Service) RecordActivity(ctx context.Context, p *auth.Principal, req ActivityRequest, ip, userAgent string) (*Activity, error) {
	typ := strings.TrimSpace(req.ActivityType)
	if typ == "" {
		return nil, apperr.Validation("activity_type is required")
	}
	a := &Activity{
		UserID:       p.ID,
		ActivityType: typ,
		Description:  req.Description,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Details:      req.Details,
	}
	if err := s.repo.RecordActivity(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("activity_type", typ).Str("user", p.Username).Msg("activity recorded")
	return a, nil
}

func (s *Service) Activities(ctx context.Context, days, limit int) ([]*Activity, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.repo.ListActivities(ctx, s.Window(days).Start, limit)
}

func (s *Service) RecordMetric(ctx context.Context, req MetricRequest) (*Metric, error) {
	name := strings.TrimSpace(req.MetricName)
	if name == "" {
		return nil, apperr.Validation("metric_name is required")
	}
	if req.MetricValue == nil {
		return nil, apperr.Validation("metric_value is required")
	}
	m := &Metric{MetricName: name, MetricValue: *req.MetricValue, MetricUnit: req.MetricUnit, Category: req.Category}
	if m.MetricUnit == "" {
		m.MetricUnit = defaultMetricUnit
	}
	if m.Category == "" {
		m.Category = defaultCategory
	}
	if err := s.repo.RecordMetric(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Metrics(ctx context.Context, days int, category string) ([]*Metric, error) {
	return s.repo.ListMetrics(ctx, s.Window(days).Start, category)
}
