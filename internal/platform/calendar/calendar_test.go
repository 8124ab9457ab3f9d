package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func testDetails() AppointmentDetails {
	return AppointmentDetails{
		AppointmentID:   uuid.MustParse("9b2f0a0e-3c1d-4d59-9a59-4f4f1b0c2a11"),
		AppointmentType: "therapy",
		Start:           time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC),
		Duration:        45 * time.Minute,
		PatientName:     "alice",
		PatientEmail:    "alice@example.com",
		ProviderName:    "dr-bob",
		ProviderEmail:   "bob@example.com",
	}
}

func TestAppointmentDetails_End(t *testing.T) {
	d := testDetails()
	if got := d.End(); !got.Equal(d.Start.Add(45 * time.Minute)) {
		t.Errorf("unexpected end %s", got)
	}
	d.Duration = 0
	if got := d.End(); !got.Equal(d.Start.Add(time.Hour)) {
		t.Errorf("expected one hour default, got %s", got)
	}
}

func TestBuildEvent(t *testing.T) {
	ev := buildEvent(testDetails())

	if ev.Summary != "Appointment - therapy" {
		t.Errorf("unexpected summary %q", ev.Summary)
	}
	if ev.Start.DateTime != "2026-05-04T15:00:00Z" || ev.End.DateTime != "2026-05-04T15:45:00Z" {
		t.Errorf("unexpected window %s - %s", ev.Start.DateTime, ev.End.DateTime)
	}
	if len(ev.Attendees) != 2 {
		t.Errorf("expected 2 attendees, got %d", len(ev.Attendees))
	}
	if len(ev.Reminders.Overrides) != 2 || ev.Reminders.Overrides[0].Minutes != 60 {
		t.Errorf("unexpected reminders %+v", ev.Reminders.Overrides)
	}
	if !strings.Contains(ev.Description, "Appointment ID: 9b2f0a0e-3c1d-4d59-9a59-4f4f1b0c2a11") {
		t.Errorf("description missing appointment id: %s", ev.Description)
	}
	if !strings.Contains(ev.Description, "Notes: No additional notes") || ev.Location != "Office Visit" {
		t.Error("expected defaults for empty notes and location")
	}
}

func TestBuildEvent_NoAttendees(t *testing.T) {
	d := testDetails()
	d.PatientEmail, d.ProviderEmail = "", ""
	if ev := buildEvent(d); len(ev.Attendees) != 0 {
		t.Errorf("expected no attendees, got %d", len(ev.Attendees))
	}
}

func TestNop(t *testing.T) {
	var s Syncer = Nop{}
	if s.Enabled() {
		t.Error("Nop must report disabled")
	}
	if _, err := s.CreateEvent(context.Background(), testDetails()); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
	av, err := s.Availability(context.Background(), time.Now(), time.Now().Add(time.Hour))
	if err != nil || av.Available {
		t.Errorf("expected unavailable answer, got %+v, %v", av, err)
	}
}

func newTestSyncer(t *testing.T, h http.Handler) *GoogleSyncer {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := gcal.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return newGoogleSyncer(svc, "", zerolog.Nop())
}

func TestGoogleSyncer_CreateEvent(t *testing.T) {
	var got gcal.Event
	s := newTestSyncer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/calendars/primary/events") {
			http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-123"}`))
	}))

	id, err := s.CreateEvent(context.Background(), testDetails())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "evt-123" {
		t.Errorf("expected evt-123, got %s", id)
	}
	if got.Summary != "Appointment - therapy" {
		t.Errorf("server saw summary %q", got.Summary)
	}
}

func TestGoogleSyncer_CreateEventError(t *testing.T) {
	s := newTestSyncer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":503,"message":"backend error"}}`, http.StatusServiceUnavailable)
	}))

	if _, err := s.CreateEvent(context.Background(), testDetails()); err == nil {
		t.Fatal("expected error from failing calendar API")
	}
}

func TestGoogleSyncer_DeleteEvent(t *testing.T) {
	var path string
	s := newTestSyncer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := s.DeleteEvent(context.Background(), "evt-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, "/calendars/primary/events/evt-9") || !strings.HasPrefix(path, http.MethodDelete) {
		t.Errorf("unexpected request %s", path)
	}
}

func TestGoogleSyncer_Availability(t *testing.T) {
	s := newTestSyncer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"calendars":{"primary":{"busy":[
			{"start":"2026-05-04T15:00:00Z","end":"2026-05-04T16:00:00Z"},
			{"start":"garbage","end":"2026-05-04T17:00:00Z"}
		]}}}`))
	}))

	start := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	av, err := s.Availability(context.Background(), start, start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !av.Available {
		t.Error("expected available response")
	}
	if len(av.BusyTimes) != 1 {
		t.Fatalf("expected 1 parsable busy period, got %d", len(av.BusyTimes))
	}
	if av.BusyTimes[0].End.Sub(av.BusyTimes[0].Start) != time.Hour {
		t.Errorf("unexpected busy period %+v", av.BusyTimes[0])
	}
}
