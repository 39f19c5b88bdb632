package services

import (
	"context"
	"net/http"
	"os"
	"time"

	"law_timeline_app_go/config"

	"github.com/juju/errors"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarEvent is what a key date looks like on a remote calendar
type CalendarEvent struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Timezone    string
	Attendees   []CalendarAttendee
}

type CalendarAttendee struct {
	Email string
	Name  string
}

// CalendarEventRef identifies a remote event
type CalendarEventRef struct {
	ID   string
	Link string
}

// CalendarSyncAdapter pushes key dates to an external calendar. Both
// operations are idempotent: Upsert with a known id updates that event,
// and Delete of a missing event succeeds.
type CalendarSyncAdapter interface {
	Upsert(ctx context.Context, eventID string, event CalendarEvent) (CalendarEventRef, error)
	Delete(ctx context.Context, eventID string) error
}

// NewCalendarSyncAdapter returns the Google adapter when credentials are configured
func NewCalendarSyncAdapter(ctx context.Context, cfg *config.Config) CalendarSyncAdapter {
	if !cfg.CalendarSyncEnabled() {
		logger.Infof("calendar sync disabled (no GOOGLE_CALENDAR_CREDENTIALS_FILE)")
		return DisabledCalendar{}
	}
	adapter, err := NewGoogleCalendarAdapter(ctx, cfg)
	if err != nil {
		logger.Errorf("calendar sync disabled: %v", err)
		return DisabledCalendar{}
	}
	logger.Infof("calendar sync enabled (calendar %s)", cfg.GoogleCalendarID)
	return adapter
}

// DisabledCalendar rejects every call; key dates flagged for sync get a warning
type DisabledCalendar struct{}

func (DisabledCalendar) Upsert(ctx context.Context, eventID string, event CalendarEvent) (CalendarEventRef, error) {
	return CalendarEventRef{}, errors.NotSupportedf("calendar sync")
}

func (DisabledCalendar) Delete(ctx context.Context, eventID string) error {
	return errors.NotSupportedf("calendar sync")
}

// GoogleCalendarAdapter syncs events to one Google calendar
type GoogleCalendarAdapter struct {
	events     *calendar.EventsService
	calendarID string
}

// NewGoogleCalendarAdapter authenticates with a service account key file.
// GOOGLE_CALENDAR_SUBJECT enables domain-wide delegation, which Google
// requires for inviting attendees.
func NewGoogleCalendarAdapter(ctx context.Context, cfg *config.Config) (*GoogleCalendarAdapter, error) {
	data, err := os.ReadFile(cfg.GoogleCalendarCredentialsFile)
	if err != nil {
		return nil, errors.Annotate(err, "reading calendar credentials")
	}
	jwtCfg, err := google.JWTConfigFromJSON(data, calendar.CalendarEventsScope)
	if err != nil {
		return nil, errors.Annotate(err, "parsing calendar credentials")
	}
	jwtCfg.Subject = cfg.GoogleCalendarSubject

	return NewGoogleCalendarAdapterWithOptions(ctx, cfg.GoogleCalendarID, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
}

// NewGoogleCalendarAdapterWithOptions builds the adapter from raw client options
func NewGoogleCalendarAdapterWithOptions(ctx context.Context, calendarID string, opts ...option.ClientOption) (*GoogleCalendarAdapter, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "creating calendar client")
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleCalendarAdapter{events: svc.Events, calendarID: calendarID}, nil
}

// Upsert updates the event when eventID is known and still exists, otherwise inserts
func (g *GoogleCalendarAdapter) Upsert(ctx context.Context, eventID string, event CalendarEvent) (CalendarEventRef, error) {
	body := toGoogleEvent(event)

	if eventID != "" {
		updated, err := g.events.Update(g.calendarID, eventID, body).Context(ctx).Do()
		if err == nil {
			return CalendarEventRef{ID: updated.Id, Link: updated.HtmlLink}, nil
		}
		if !isGoneOrNotFound(err) {
			return CalendarEventRef{}, errors.Annotatef(err, "updating calendar event %s", eventID)
		}
		logger.Infof("calendar event %s no longer exists, recreating", eventID)
	}

	created, err := g.events.Insert(g.calendarID, body).Context(ctx).Do()
	if err != nil {
		return CalendarEventRef{}, errors.Annotate(err, "inserting calendar event")
	}
	return CalendarEventRef{ID: created.Id, Link: created.HtmlLink}, nil
}

func (g *GoogleCalendarAdapter) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	err := g.events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if err != nil && !isGoneOrNotFound(err) {
		return errors.Annotatef(err, "deleting calendar event %s", eventID)
	}
	return nil
}

func toGoogleEvent(event CalendarEvent) *calendar.Event {
	ev := &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start:       &calendar.EventDateTime{DateTime: event.Start.Format(time.RFC3339), TimeZone: event.Timezone},
		End:         &calendar.EventDateTime{DateTime: event.End.Format(time.RFC3339), TimeZone: event.Timezone},
	}
	for _, a := range event.Attendees {
		ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{Email: a.Email, DisplayName: a.Name})
	}
	return ev
}

func isGoneOrNotFound(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusNotFound || gErr.Code == http.StatusGone
	}
	return false
}
