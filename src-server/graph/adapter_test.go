package graph_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"calsyncd/src-server/graph"
	"calsyncd/src-server/model"
	"calsyncd/src-server/syncer"
)

func testGraphFeed(baseURL, cursor string) *model.Feed {
	return &model.Feed{
		ID:         "feed-1",
		Name:       "work calendar",
		Provider:   model.ProviderGraph,
		RemotePath: baseURL,
		Token:      "token-123",
		Cursor:     cursor,
	}
}

func TestAdapterFullFetch(t *testing.T) {
	var sawBearer bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer token-123" {
			sawBearer = true
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/events" && r.URL.Query().Get("page") == "2":
			fmt.Fprint(w, `{"value":[{
				"id":"s1","type":"singleInstance","subject":"Dentist",
				"start":{"dateTime":"2025-01-03T14:00:00.0000000","timeZone":"UTC"},
				"end":{"dateTime":"2025-01-03T15:00:00.0000000","timeZone":"UTC"}
			}]}`)
		case r.URL.Path == "/events":
			fmt.Fprintf(w, `{"value":[{
				"id":"m1","type":"seriesMaster","subject":"Standup",
				"start":{"dateTime":"2025-01-01T09:00:00.0000000","timeZone":"UTC"},
				"end":{"dateTime":"2025-01-01T09:30:00.0000000","timeZone":"UTC"},
				"recurrence":{
					"pattern":{"type":"weekly","interval":1,"daysOfWeek":["monday","wednesday"]},
					"range":{"type":"numbered","numberOfOccurrences":4}
				}
			}],"@odata.nextLink":"%s/events?page=2"}`, "http://"+r.Host)
		case r.URL.Path == "/events/m1/instances":
			fmt.Fprint(w, `{"value":[
				{"id":"o1","type":"occurrence","seriesMasterId":"m1","subject":"Standup",
				 "start":{"dateTime":"2025-01-01T09:00:00.0000000","timeZone":"UTC"},
				 "end":{"dateTime":"2025-01-01T09:30:00.0000000","timeZone":"UTC"}},
				{"id":"x1","type":"exception","seriesMasterId":"m1","subject":"Standup (moved)",
				 "start":{"dateTime":"2025-01-02T10:00:00.0000000","timeZone":"UTC"},
				 "end":{"dateTime":"2025-01-02T10:30:00.0000000","timeZone":"UTC"}}
			]}`)
		case r.URL.Path == "/events/delta":
			fmt.Fprint(w, `{"value":[],"@odata.deltaLink":"http://`+r.Host+`/events/delta?$deltatoken=seed-1"}`)
		default:
			t.Errorf("unexpected request: %s", r.URL.String())
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	adapter := graph.NewAdapter(graph.NewClient(server.Client()))
	windowStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	result, err := adapter.Fetch(context.Background(), testGraphFeed(server.URL, ""), windowStart, windowEnd)
	if err != nil {
		t.Fatal(err)
	}
	if !sawBearer {
		t.Error("expected the feed's bearer token on requests")
	}
	if !result.FullWindow {
		t.Error("a cursorless fetch must be a full-window snapshot")
	}
	if result.NextCursor == "" {
		t.Error("expected a seeded delta cursor")
	}

	if len(result.Events) != 4 {
		for _, remoteEvent := range result.Events {
			t.Logf("event: %s %s", remoteEvent.Kind, remoteEvent.ExternalID)
		}
		t.Fatalf("expected 4 events, got %d", len(result.Events))
	}

	byID := make(map[string]syncer.NormalizedEvent)
	for _, remoteEvent := range result.Events {
		byID[remoteEvent.ExternalID] = remoteEvent
	}

	master, ok := byID["m1"]
	if !ok || master.Kind != syncer.KindMaster {
		t.Fatalf("master missing or misclassified: %+v", master)
	}
	if master.RecurrenceRule != "FREQ=WEEKLY;COUNT=4;BYDAY=MO,WE" {
		t.Errorf("unexpected rule translation: %q", master.RecurrenceRule)
	}

	occurrence, ok := byID["o1"]
	if !ok || occurrence.Kind != syncer.KindInstance || occurrence.RecurringExternalID != "m1" {
		t.Errorf("occurrence missing or misclassified: %+v", occurrence)
	}
	exception, ok := byID["x1"]
	if !ok || exception.Kind != syncer.KindException || exception.RecurringExternalID != "m1" {
		t.Errorf("exception missing or misclassified: %+v", exception)
	}
	standalone, ok := byID["s1"]
	if !ok || standalone.Kind != syncer.KindStandalone {
		t.Errorf("paginated standalone missing or misclassified: %+v", standalone)
	}
}

func TestAdapterDeltaFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("$deltatoken") {
		case "page-1":
			fmt.Fprint(w, `{"value":[
				{"id":"s1","type":"singleInstance","subject":"Dentist (rescheduled)",
				 "start":{"dateTime":"2025-01-05T14:00:00.0000000","timeZone":"UTC"},
				 "end":{"dateTime":"2025-01-05T15:00:00.0000000","timeZone":"UTC"}}
			],"@odata.nextLink":"http://`+r.Host+`/events/delta?$deltatoken=page-2"}`)
		case "page-2":
			fmt.Fprint(w, `{"value":[
				{"id":"gone-1","@removed":{"reason":"deleted"}}
			],"@odata.deltaLink":"http://`+r.Host+`/events/delta?$deltatoken=next-3"}`)
		default:
			t.Errorf("unexpected delta token: %q", r.URL.Query().Get("$deltatoken"))
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	adapter := graph.NewAdapter(graph.NewClient(server.Client()))
	cursor := server.URL + "/events/delta?$deltatoken=page-1"
	result, err := adapter.Fetch(context.Background(), testGraphFeed(server.URL, cursor),
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if result.FullWindow {
		t.Error("a delta fetch must not trigger delete-by-absence")
	}
	if len(result.Events) != 1 || result.Events[0].ExternalID != "s1" {
		t.Errorf("unexpected events: %+v", result.Events)
	}
	if len(result.DeletedExternalIDs) != 1 || result.DeletedExternalIDs[0] != "gone-1" {
		t.Errorf("unexpected tombstones: %v", result.DeletedExternalIDs)
	}
	if result.NextCursor != server.URL+"/events/delta?$deltatoken=next-3" {
		t.Errorf("unexpected next cursor: %q", result.NextCursor)
	}
}

func TestAdapterAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := graph.NewAdapter(graph.NewClient(server.Client()))
	_, err := adapter.Fetch(context.Background(), testGraphFeed(server.URL, ""),
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if !errors.Is(err, syncer.ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestAdapterMalformedEventSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/events":
			// the first event has no parsable times
			fmt.Fprint(w, `{"value":[
				{"id":"bad-1","type":"singleInstance","subject":"???"},
				{"id":"s1","type":"singleInstance","subject":"Dentist",
				 "start":{"dateTime":"2025-01-03T14:00:00.0000000","timeZone":"UTC"},
				 "end":{"dateTime":"2025-01-03T15:00:00.0000000","timeZone":"UTC"}}
			]}`)
		case "/events/delta":
			fmt.Fprint(w, `{"value":[],"@odata.deltaLink":"http://`+r.Host+`/events/delta?$deltatoken=seed-1"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	adapter := graph.NewAdapter(graph.NewClient(server.Client()))
	result, err := adapter.Fetch(context.Background(), testGraphFeed(server.URL, ""),
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", result.Skipped)
	}
	if len(result.Events) != 1 || result.Events[0].ExternalID != "s1" {
		t.Errorf("unexpected events: %+v", result.Events)
	}
}
