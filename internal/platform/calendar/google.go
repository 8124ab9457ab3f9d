package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleSyncer writes appointments to a Google Calendar using a service
// account credentials file.
type GoogleSyncer struct {
	svc        *gcal.Service
	calendarID string
	logger     zerolog.Logger
}

func NewGoogleSyncer(ctx context.Context, credentialsFile, calendarID string, logger zerolog.Logger, opts ...option.ClientOption) (*GoogleSyncer, error) {
	opts = append([]option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope),
	}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return newGoogleSyncer(svc, calendarID, logger), nil
}

func newGoogleSyncer(svc *gcal.Service, calendarID string, logger zerolog.Logger) *GoogleSyncer {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleSyncer{svc: svc, calendarID: calendarID, logger: logger}
}

func (g *GoogleSyncer) Enabled() bool { return true }

func (g *GoogleSyncer) CreateEvent(ctx context.Context, d AppointmentDetails) (string, error) {
	created, err := g.svc.Events.Insert(g.calendarID, buildEvent(d)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	g.logger.Info().Str("event_id", created.Id).Str("appointment_id", d.AppointmentID.String()).Msg("calendar event created")
	return created.Id, nil
}

func (g *GoogleSyncer) UpdateEvent(ctx context.Context, eventID string, d AppointmentDetails) error {
	existing, err := g.svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get calendar event %s: %w", eventID, err)
	}

	fresh := buildEvent(d)
	existing.Summary = fresh.Summary
	existing.Description = fresh.Description
	existing.Location = fresh.Location
	existing.Start = fresh.Start
	existing.End = fresh.End

	if _, err := g.svc.Events.Update(g.calendarID, eventID, existing).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update calendar event %s: %w", eventID, err)
	}
	return nil
}

func (g *GoogleSyncer) DeleteEvent(ctx context.Context, eventID string) error {
	if err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete calendar event %s: %w", eventID, err)
	}
	return nil
}

func (g *GoogleSyncer) Availability(ctx context.Context, start, end time.Time) (*Availability, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin: start.UTC().Format(time.RFC3339),
		TimeMax: end.UTC().Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}
	resp, err := g.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("query free/busy: %w", err)
	}

	out := &Availability{Available: true, Message: "Calendar availability retrieved successfully"}
	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return out, nil
	}
	for _, period := range cal.Busy {
		s, err1 := time.Parse(time.RFC3339, period.Start)
		e, err2 := time.Parse(time.RFC3339, period.End)
		if err1 != nil || err2 != nil {
			g.logger.Warn().Str("start", period.Start).Str("end", period.End).Msg("skipping unparsable busy period")
			continue
		}
		out.BusyTimes = append(out.BusyTimes, BusyPeriod{Start: s, End: e})
	}
	return out, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// buildEvent renders an appointment as a calendar event with popup
// reminders one hour and fifteen minutes before.
func buildEvent(d AppointmentDetails) *gcal.Event {
	apptType := orDefault(d.AppointmentType, "consultation")
	location := orDefault(d.Location, "Office Visit")

	var b strings.Builder
	b.WriteString("MindLab Health Appointment\n\n")
	fmt.Fprintf(&b, "Type: %s\n", apptType)
	fmt.Fprintf(&b, "Patient: %s\n", orDefault(d.PatientName, "N/A"))
	fmt.Fprintf(&b, "Provider: %s\n", orDefault(d.ProviderName, "N/A"))
	fmt.Fprintf(&b, "Location: %s\n\n", location)
	fmt.Fprintf(&b, "Notes: %s\n\n", orDefault(d.Notes, "No additional notes"))
	fmt.Fprintf(&b, "Appointment ID: %s", d.AppointmentID)

	ev := &gcal.Event{
		Summary:     "Appointment - " + apptType,
		Description: b.String(),
		Location:    location,
		Start:       &gcal.EventDateTime{DateTime: d.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: d.End().UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "popup", Minutes: 60},
				{Method: "popup", Minutes: 15},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	for _, email := range []string{d.PatientEmail, d.ProviderEmail} {
		if email != "" {
			ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: email})
		}
	}
	return ev
}
