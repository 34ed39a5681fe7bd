package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/velikanov/calsec/internal/auth"
	"github.com/velikanov/calsec/internal/calendar"
)

// newDispatcher builds a dispatcher whose calendar clients talk to the
// given fixture handler instead of the real API.
func newDispatcher(t *testing.T, handler http.Handler) (*Dispatcher, *auth.CredentialStore) {
	t.Helper()

	creds := auth.NewCredentialStore()
	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected calendar API call: %s %s", r.Method, r.URL.Path)
		})
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	factory := func(ctx context.Context, cred *auth.StoredCredential) (*calendar.Client, error) {
		return calendar.NewClient(ctx, cred, option.WithEndpoint(srv.URL))
	}
	return NewDispatcher(creds, factory, nil), creds
}

func authorize(creds *auth.CredentialStore, user auth.UserID) {
	creds.Put(user, &auth.StoredCredential{User: user, AccessToken: "fixture-token"})
}

func TestGetUserFromArgs(t *testing.T) {
	tests := []struct {
		name   string
		args   map[string]interface{}
		want   auth.UserID
		wantOK bool
	}{
		{
			name:   "numeric string",
			args:   map[string]interface{}{"user": "42"},
			want:   42,
			wantOK: true,
		},
		{
			name:   "json number",
			args:   map[string]interface{}{"user": float64(42)},
			want:   42,
			wantOK: true,
		},
		{
			name: "missing",
			args: map[string]interface{}{},
		},
		{
			name: "not a number",
			args: map[string]interface{}{"user": "alice"},
		},
		{
			name: "zero",
			args: map[string]interface{}{"user": "0"},
		},
		{
			name: "wrong type",
			args: map[string]interface{}{"user": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := getUserFromArgs(tt.args)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvokeRoutesByToolName(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	}))
	authorize(creds, 42)

	got := d.Invoke(context.Background(), 42, "calendar_list_events", map[string]interface{}{
		"timeMin": "2024-01-10T00:00:00Z",
		"timeMax": "2024-01-11T00:00:00Z",
	})
	assert.Equal(t, "No events found in this period.", got)
}

func TestInvokeUnknownTool(t *testing.T) {
	d, _ := newDispatcher(t, nil)

	got := d.Invoke(context.Background(), 42, "calendar_move_event", nil)
	assert.Equal(t, `ERROR: unknown tool "calendar_move_event"`, got)
}

func TestInvokeMissingArgument(t *testing.T) {
	d, creds := newDispatcher(t, nil)
	authorize(creds, 42)

	got := d.Invoke(context.Background(), 42, "calendar_delete_event", map[string]interface{}{})
	assert.Equal(t, "eventId is required", got)
}

func TestOperationsRequireCredential(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	ctx := context.Background()

	now := time.Now()
	assert.Equal(t, notAuthenticatedText, d.ListEvents(ctx, 42, now, now.Add(time.Hour)))
	assert.Equal(t, notAuthenticatedText, d.CreateEvent(ctx, 42, calendar.EventInput{Summary: "x", Start: now, End: now}))
	assert.Equal(t, notAuthenticatedText, d.UpdateEvent(ctx, 42, "ev1", calendar.EventPatch{}))
	assert.Equal(t, notAuthenticatedText, d.DeleteEvent(ctx, 42, "ev1"))
	assert.Equal(t, notAuthenticatedText, d.FindEvent(ctx, 42, "Sync", now))
}

func TestListEventsRendersBullets(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"id":"1","summary":"Standup","start":{"dateTime":"2024-01-10T09:00:00Z"},"end":{"dateTime":"2024-01-10T09:15:00Z"}},
			{"id":"2","summary":"Planning","start":{"dateTime":"2024-01-10T11:00:00Z"},"end":{"dateTime":"2024-01-10T12:00:00Z"}}
		]}`))
	}))
	authorize(creds, 42)

	got := d.ListEvents(context.Background(), 42,
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	)

	want := "• Standup (2024-01-10T09:00:00Z - 2024-01-10T09:15:00Z)\n" +
		"• Planning (2024-01-10T11:00:00Z - 2024-01-10T12:00:00Z)"
	assert.Equal(t, want, got)
}

func TestListEventsEmptyPeriod(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	}))
	authorize(creds, 42)

	got := d.ListEvents(context.Background(), 42, time.Now(), time.Now().Add(time.Hour))
	assert.Equal(t, "No events found in this period.", got)
}

func TestListEventsProviderFailure(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":500}}`, http.StatusInternalServerError)
	}))
	authorize(creds, 42)

	got := d.ListEvents(context.Background(), 42, time.Now(), time.Now().Add(time.Hour))
	assert.Equal(t, "ERROR: failed to fetch events.", got)
}

func TestCreateEventReturnsLink(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"new1","htmlLink":"https://calendar.example.com/event?eid=new1"}`))
	}))
	authorize(creds, 42)

	got := d.CreateEvent(context.Background(), 42, calendar.EventInput{
		Summary: "Lunch",
		Start:   time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, "Event created: https://calendar.example.com/event?eid=new1", got)
}

func TestCreateEventProviderFailure(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"invalid"}}`, http.StatusBadRequest)
	}))
	authorize(creds, 42)

	got := d.CreateEvent(context.Background(), 42, calendar.EventInput{
		Summary: "Lunch",
		Start:   time.Now(),
		End:     time.Now().Add(time.Hour),
	})
	assert.Contains(t, got, "ERROR: failed to create event")
}

func TestUpdateEventEmptyPatchSkipsProvider(t *testing.T) {
	d, creds := newDispatcher(t, nil)
	authorize(creds, 42)

	got := d.UpdateEvent(context.Background(), 42, "ev1", calendar.EventPatch{})
	assert.Equal(t, "No changes requested.", got)
}

func TestUpdateEventReturnsLink(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"id":"ev1","summary":"Old","start":{"dateTime":"2024-01-10T09:00:00Z"},"end":{"dateTime":"2024-01-10T10:00:00Z"}}`))
		case http.MethodPut:
			w.Write([]byte(`{"id":"ev1","summary":"New","htmlLink":"https://calendar.example.com/event?eid=ev1"}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	authorize(creds, 42)

	summary := "New"
	got := d.UpdateEvent(context.Background(), 42, "ev1", calendar.EventPatch{Summary: &summary})
	assert.Equal(t, "Event updated: https://calendar.example.com/event?eid=ev1", got)
}

func TestDeleteEvent(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	authorize(creds, 42)

	got := d.DeleteEvent(context.Background(), 42, "ev1")
	assert.Equal(t, "Event ev1 deleted", got)
}

func TestDeleteEventNotFound(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
	}))
	authorize(creds, 42)

	got := d.DeleteEvent(context.Background(), 42, "ev1")
	assert.Contains(t, got, "ERROR: failed to delete event")
}

func TestCreateThenFindReturnsCreatedID(t *testing.T) {
	// Stateful fixture: the inserted event is served back to the find
	// query, like a real calendar would.
	var created struct {
		Summary string `json:"summary"`
		Start   struct {
			DateTime string `json:"dateTime"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
		} `json:"end"`
	}
	var haveEvent bool
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			haveEvent = true
			w.Write([]byte(`{"id":"rt1","htmlLink":"https://calendar.example.com/event?eid=rt1"}`))
		case http.MethodGet:
			if !haveEvent {
				w.Write([]byte(`{"items":[]}`))
				return
			}
			fmt.Fprintf(w, `{"items":[{"id":"rt1","summary":%q,"start":{"dateTime":%q},"end":{"dateTime":%q}}]}`,
				created.Summary, created.Start.DateTime, created.End.DateTime)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	authorize(creds, 42)

	ctx := context.Background()
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	got := d.CreateEvent(ctx, 42, calendar.EventInput{
		Summary: "Dentist",
		Start:   day.Add(9 * time.Hour),
		End:     day.Add(10 * time.Hour),
	})
	require.Equal(t, "Event created: https://calendar.example.com/event?eid=rt1", got)

	// The freshly created event is the day's only "Dentist", so find
	// resolves to exactly its id.
	assert.Equal(t, "rt1", d.FindEvent(ctx, 42, "Dentist", day))
}

func TestFindEventSingleExactMatch(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"id":"sync1","summary":"Sync","start":{"dateTime":"2024-01-10T10:00:00Z"},"end":{"dateTime":"2024-01-10T10:30:00Z"}}
		]}`))
	}))
	authorize(creds, 42)

	got := d.FindEvent(context.Background(), 42, "sync", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "sync1", got)
}

func TestFindEventNotFound(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	}))
	authorize(creds, 42)

	got := d.FindEvent(context.Background(), 42, "Sync", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "Event 'Sync' on 2024-01-10 not found", got)
}

func TestFindEventFuzzyOnlyMatches(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"id":"1","summary":"Team Sync","start":{"dateTime":"2024-01-10T10:00:00Z"},"end":{"dateTime":"2024-01-10T10:30:00Z"}},
			{"id":"2","summary":"Sync Review","start":{"dateTime":"2024-01-10T14:00:00Z"},"end":{"dateTime":"2024-01-10T15:00:00Z"}}
		]}`))
	}))
	authorize(creds, 42)

	got := d.FindEvent(context.Background(), 42, "Sync", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "No exact match for 'Sync'. Found: Team Sync, Sync Review", got)
}

func TestFindEventAmbiguous(t *testing.T) {
	d, creds := newDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"id":"1","summary":"Sync","start":{"dateTime":"2024-01-10T10:00:00Z"},"end":{"dateTime":"2024-01-10T10:30:00Z"}},
			{"id":"2","summary":"Sync","start":{"dateTime":"2024-01-10T16:00:00Z"},"end":{"dateTime":"2024-01-10T16:30:00Z"}}
		]}`))
	}))
	authorize(creds, 42)

	got := d.FindEvent(context.Background(), 42, "Sync", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "Multiple events match. Please disambiguate by start time: 2024-01-10T10:00:00Z, 2024-01-10T16:00:00Z", got)
}
