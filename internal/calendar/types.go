package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// EventInput is the input for creating an event.
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time

	// TimeZone is the display label attached to the event times. The
	// instants themselves are always serialized in UTC.
	TimeZone string
}

// EventPatch is a partial update: only non-nil fields are applied, all
// others keep their prior value on the provider side.
type EventPatch struct {
	Summary     *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
	TimeZone    string
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Summary == nil && p.Description == nil && p.Location == nil &&
		p.Start == nil && p.End == nil
}

// EventSummary is the simplified read projection of a calendar event.
type EventSummary struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	HTMLLink    string
}

// FindResult is the outcome of a find-by-name-and-date lookup.
type FindResult struct {
	// ID is set iff exactly one event matched the title exactly.
	ID string

	// ExactMatches are all events whose title equals the query
	// case-insensitively.
	ExactMatches []EventSummary

	// Candidates are the provider's fuzzy matches, kept for the
	// not-found message when no exact match exists.
	Candidates []EventSummary
}

// toEventSummary converts a Google Calendar event to an EventSummary
func toEventSummary(event *calendar.Event) EventSummary {
	if event == nil {
		return EventSummary{}
	}

	summary := EventSummary{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		HTMLLink:    event.HtmlLink,
	}

	summary.Start = parseEventTime(event.Start)
	summary.End = parseEventTime(event.End)

	return summary
}

// parseEventTime handles both timed (dateTime) and all-day (date) events.
func parseEventTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
		return time.Time{}
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
