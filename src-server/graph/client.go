// Microsoft-Graph-style provider support: a small JSON client over the
// events, instances and delta endpoints, plus the adapter that normalizes
// what they return.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"calsyncd/src-server/syncer"
)

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphRecurrencePattern struct {
	Type           string   `json:"type"`
	Interval       int      `json:"interval"`
	DaysOfWeek     []string `json:"daysOfWeek"`
	DayOfMonth     int      `json:"dayOfMonth"`
	Month          int      `json:"month"`
	Index          string   `json:"index"`
	FirstDayOfWeek string   `json:"firstDayOfWeek"`
}

type graphRecurrenceRange struct {
	Type                string `json:"type"`
	EndDate             string `json:"endDate"`
	NumberOfOccurrences int    `json:"numberOfOccurrences"`
}

type graphRecurrence struct {
	Pattern graphRecurrencePattern `json:"pattern"`
	Range   graphRecurrenceRange   `json:"range"`
}

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type graphEvent struct {
	ID             string           `json:"id"`
	Removed        *struct{}        `json:"@removed"`
	Type           string           `json:"type"`
	SeriesMasterID string           `json:"seriesMasterId"`
	Subject        string           `json:"subject"`
	BodyPreview    string           `json:"bodyPreview"`
	IsAllDay       bool             `json:"isAllDay"`
	ShowAs         string           `json:"showAs"`
	Start          graphDateTime    `json:"start"`
	End            graphDateTime    `json:"end"`
	Recurrence     *graphRecurrence `json:"recurrence"`
	Location       struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	Organizer struct {
		EmailAddress graphEmailAddress `json:"emailAddress"`
	} `json:"organizer"`
	Attendees []struct {
		EmailAddress graphEmailAddress `json:"emailAddress"`
	} `json:"attendees"`
}

type eventsPage struct {
	Value     []graphEvent `json:"value"`
	NextLink  string       `json:"@odata.nextLink"`
	DeltaLink string       `json:"@odata.deltaLink"`
}

// Client pages through a Graph-style events API with a bearer token. Every
// list call follows @odata.nextLink to exhaustion and hands back the final
// @odata.deltaLink when the endpoint issued one.
type Client struct {
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient}
}

// Every event of the calendar, paginated to exhaustion.
func (c *Client) ListEvents(ctx context.Context, baseURL, token string) ([]graphEvent, error) {
	events, _, err := c.drainPages(ctx, baseURL+"/events", token)
	if err != nil {
		return nil, fmt.Errorf("graph.Client.ListEvents: %w", err)
	}
	return events, nil
}

// The concrete occurrences of one series master inside the window,
// exceptions included.
func (c *Client) ListInstances(ctx context.Context, baseURL, token, masterID string, windowStart, windowEnd time.Time) ([]graphEvent, error) {
	instancesURL := fmt.Sprintf("%s/events/%s/instances?startDateTime=%s&endDateTime=%s",
		baseURL,
		url.PathEscape(masterID),
		url.QueryEscape(windowStart.UTC().Format(time.RFC3339)),
		url.QueryEscape(windowEnd.UTC().Format(time.RFC3339)))
	events, _, err := c.drainPages(ctx, instancesURL, token)
	if err != nil {
		return nil, fmt.Errorf("graph.Client.ListInstances: %w", err)
	}
	return events, nil
}

// Changes since the given delta link: changed events, tombstones for removed
// ones, and the next delta link to hand back to the feed cursor.
func (c *Client) ListDelta(ctx context.Context, deltaLink, token string) ([]graphEvent, string, error) {
	events, nextDeltaLink, err := c.drainPages(ctx, deltaLink, token)
	if err != nil {
		return nil, "", fmt.Errorf("graph.Client.ListDelta: %w", err)
	}
	return events, nextDeltaLink, nil
}

// A fresh delta link representing "everything as of now", without replaying
// the event set. Used to seed the cursor right after a full fetch.
func (c *Client) LatestDeltaLink(ctx context.Context, baseURL, token string) (string, error) {
	_, deltaLink, err := c.drainPages(ctx, baseURL+"/events/delta?$deltaToken=latest", token)
	if err != nil {
		return "", fmt.Errorf("graph.Client.LatestDeltaLink: %w", err)
	}
	return deltaLink, nil
}

func (c *Client) drainPages(ctx context.Context, pageURL, token string) ([]graphEvent, string, error) {
	events := make([]graphEvent, 0)
	deltaLink := ""
	for pageURL != "" {
		page, err := c.getPage(ctx, pageURL, token)
		if err != nil {
			return nil, "", err
		}
		events = append(events, page.Value...)
		deltaLink = page.DeltaLink
		pageURL = page.NextLink
	}
	return events, deltaLink, nil
}

func (c *Client) getPage(ctx context.Context, pageURL, token string) (*eventsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("server said %s: %w", resp.Status, syncer.ErrAuth)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("server error %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	page := new(eventsPage)
	if err := json.Unmarshal(rawBody, page); err != nil {
		return nil, fmt.Errorf("can't parse events page: %w", err)
	}
	return page, nil
}
