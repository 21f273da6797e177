// CalDAV provider support: a minimal calendar-query client plus the adapter
// that turns fetched iCalendar payloads into normalized events.
package caldav

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"calsyncd/src-server/syncer"
)

const reportBodyTemplate = `<?xml version="1.0" encoding="utf-8"?>
<c:calendar-query xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:getetag/>
    <c:calendar-data/>
  </d:prop>
  <c:filter>
    <c:comp-filter name="VCALENDAR">
      <c:comp-filter name="VEVENT">
        <c:time-range start="%s" end="%s"/>
      </c:comp-filter>
    </c:comp-filter>
  </c:filter>
</c:calendar-query>`

type multistatusResponse struct {
	XMLName   xml.Name `xml:"multistatus"`
	Responses []struct {
		Href     string `xml:"href"`
		Propstat []struct {
			Status string `xml:"status"`
			Prop   struct {
				CalendarData string `xml:"calendar-data"`
			} `xml:"prop"`
		} `xml:"propstat"`
	} `xml:"response"`
}

// Client speaks just enough CalDAV to run a time-ranged calendar-query
// REPORT against one collection URL with basic auth.
type Client struct {
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient}
}

// Fetch the raw iCalendar payloads of every VEVENT intersecting the window.
// One payload per multistatus response; empty calendar-data entries are
// dropped.
func (c *Client) QueryWindow(ctx context.Context, collectionURL, username, password string, windowStart, windowEnd time.Time) ([]string, error) {
	body := fmt.Sprintf(reportBodyTemplate,
		windowStart.UTC().Format("20060102T150405Z"),
		windowEnd.UTC().Format("20060102T150405Z"))

	req, err := http.NewRequestWithContext(ctx, "REPORT", collectionURL, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("caldav.Client.QueryWindow: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", "1")
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caldav.Client.QueryWindow: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("caldav.Client.QueryWindow: server said %s: %w", resp.Status, syncer.ErrAuth)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("caldav.Client.QueryWindow: server error %s", resp.Status)
	case resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("caldav.Client.QueryWindow: unexpected status %s", resp.Status)
	}

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("caldav.Client.QueryWindow: %w", err)
	}

	var multistatus multistatusResponse
	if err := xml.Unmarshal(rawBody, &multistatus); err != nil {
		return nil, fmt.Errorf("caldav.Client.QueryWindow: can't parse multistatus: %w", err)
	}

	payloads := make([]string, 0, len(multistatus.Responses))
	for _, response := range multistatus.Responses {
		for _, propstat := range response.Propstat {
			if propstat.Prop.CalendarData != "" {
				payloads = append(payloads, propstat.Prop.CalendarData)
			}
		}
	}
	return payloads, nil
}
