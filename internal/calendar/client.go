package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/velikanov/calsec/internal/auth"
)

const (
	primaryCalendar = "primary"

	// maxListResults bounds list and upcoming queries.
	maxListResults = 10

	// maxFindResults bounds the provider-side fuzzy search in FindEvent.
	maxFindResults = 5
)

// Client wraps the Google Calendar service for one authenticated user.
type Client struct {
	svc  *calendar.Service
	user auth.UserID
}

// NewClient creates a Calendar client from the user's stored credential.
// Token refresh is handled by the underlying token source. Extra options
// are for tests pointing the service at a fixture endpoint.
func NewClient(ctx context.Context, cred *auth.StoredCredential, opts ...option.ClientOption) (*Client, error) {
	if cred == nil {
		return nil, auth.ErrNotAuthenticated
	}

	httpClient := oauth2.NewClient(ctx, cred.TokenSource(ctx))

	allOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, user: cred.User}, nil
}

// User returns the chat user this client is associated with.
func (c *Client) User() auth.UserID {
	return c.user
}

// ListEvents lists up to 10 events within [timeMin, timeMax], ordered by
// start time. Both bounds are normalized to UTC before transmission.
func (c *Client) ListEvents(timeMin, timeMax time.Time) ([]EventSummary, error) {
	events, err := c.svc.Events.List(primaryCalendar).
		TimeMin(timeMin.UTC().Format(time.RFC3339)).
		TimeMax(timeMax.UTC().Format(time.RFC3339)).
		MaxResults(maxListResults).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, &auth.ProviderError{Op: "listEvents", User: c.user, Err: err}
	}

	var summaries []EventSummary
	for _, event := range events.Items {
		summaries = append(summaries, toEventSummary(event))
	}
	return summaries, nil
}

// UpcomingEvents lists up to 10 events starting from now, with no upper
// bound. Used by the /events command.
func (c *Client) UpcomingEvents() ([]EventSummary, error) {
	events, err := c.svc.Events.List(primaryCalendar).
		TimeMin(time.Now().UTC().Format(time.RFC3339)).
		MaxResults(maxListResults).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, &auth.ProviderError{Op: "listEvents", User: c.user, Err: err}
	}

	var summaries []EventSummary
	for _, event := range events.Items {
		summaries = append(summaries, toEventSummary(event))
	}
	return summaries, nil
}

// GetEvent retrieves a specific event by ID.
func (c *Client) GetEvent(eventID string) (*EventSummary, error) {
	event, err := c.svc.Events.Get(primaryCalendar, eventID).Do()
	if err != nil {
		return nil, &auth.ProviderError{Op: "getEvent", User: c.user, Err: err}
	}

	summary := toEventSummary(event)
	return &summary, nil
}

// CreateEvent inserts a new event. Start and end are serialized in UTC;
// the input time zone is attached as a display label only.
func (c *Client) CreateEvent(input EventInput) (*EventSummary, error) {
	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.UTC().Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.UTC().Format(time.RFC3339),
			TimeZone: tz,
		},
	}

	created, err := c.svc.Events.Insert(primaryCalendar, event).Do()
	if err != nil {
		return nil, &auth.ProviderError{Op: "createEvent", User: c.user, Err: err}
	}

	summary := toEventSummary(created)
	return &summary, nil
}

// UpdateEvent fetches the current event and writes back only the fields
// the patch supplies; omitted fields retain their prior value. A missing
// event surfaces the provider error verbatim.
func (c *Client) UpdateEvent(eventID string, patch EventPatch) (*EventSummary, error) {
	existing, err := c.svc.Events.Get(primaryCalendar, eventID).Do()
	if err != nil {
		return nil, &auth.ProviderError{Op: "getEvent", User: c.user, Err: err}
	}

	tz := patch.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	if patch.Summary != nil {
		existing.Summary = *patch.Summary
	}
	if patch.Description != nil {
		existing.Description = *patch.Description
	}
	if patch.Location != nil {
		existing.Location = *patch.Location
	}
	if patch.Start != nil {
		existing.Start = &calendar.EventDateTime{
			DateTime: patch.Start.UTC().Format(time.RFC3339),
			TimeZone: tz,
		}
	}
	if patch.End != nil {
		existing.End = &calendar.EventDateTime{
			DateTime: patch.End.UTC().Format(time.RFC3339),
			TimeZone: tz,
		}
	}

	updated, err := c.svc.Events.Update(primaryCalendar, eventID, existing).Do()
	if err != nil {
		return nil, &auth.ProviderError{Op: "updateEvent", User: c.user, Err: err}
	}

	summary := toEventSummary(updated)
	return &summary, nil
}

// DeleteEvent deletes an event unconditionally. Deleting an already
// deleted event surfaces the provider's not-found error.
func (c *Client) DeleteEvent(eventID string) error {
	if err := c.svc.Events.Delete(primaryCalendar, eventID).Do(); err != nil {
		return &auth.ProviderError{Op: "deleteEvent", User: c.user, Err: err}
	}
	return nil
}

// FindEvent looks up events on the given calendar day whose title matches
// the query. The provider performs a fuzzy text search over the day
// window; results are then filtered down to case-insensitive exact title
// matches. The result carries an ID only when the match is unambiguous.
func (c *Client) FindEvent(summary string, day time.Time) (*FindResult, error) {
	y, m, d := day.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dayEnd := time.Date(y, m, d, 23, 59, 59, 0, time.UTC)

	events, err := c.svc.Events.List(primaryCalendar).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		MaxResults(maxFindResults).
		SingleEvents(true).
		OrderBy("startTime").
		Q(summary).
		Do()
	if err != nil {
		return nil, &auth.ProviderError{Op: "findEvent", User: c.user, Err: err}
	}

	result := &FindResult{}
	for _, event := range events.Items {
		es := toEventSummary(event)
		result.Candidates = append(result.Candidates, es)
		if strings.EqualFold(es.Summary, summary) {
			result.ExactMatches = append(result.ExactMatches, es)
		}
	}

	if len(result.ExactMatches) == 1 {
		result.ID = result.ExactMatches[0].ID
	}

	return result, nil
}
