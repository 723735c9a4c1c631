// Package pskreporter fetches "who heard me" reception reports from the
// PSKReporter retrieval API. TX-side data is optional enrichment for the
// comparison engine, so the client degrades to an empty result instead of
// surfacing transport failures to the caller.
//
// Service limits baked into the protocol: queries may only look back 24 hours
// (flowStartSeconds is clamped to -86400) and a single response carries at
// most roughly 100 reports, so callers must not assume completeness for
// high-traffic windows.
package pskreporter

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the public PSKReporter retrieval endpoint.
const DefaultBaseURL = "https://retrieve.pskreporter.info/query"

// MaxLookback is the service-imposed query window ceiling.
const MaxLookback = 24 * time.Hour

// Spot is one reception report: a remote station heard the operator.
type Spot struct {
	Time         time.Time `json:"timestamp"`
	ReceiverCall string    `json:"receiver_call"`
	ReceiverGrid string    `json:"receiver_grid,omitempty"`
	FrequencyMHz float64   `json:"freq_mhz"`
	Band         string    `json:"band"`
	SNR          *int      `json:"snr"` // nil when the report carried no SNR
}

// Client queries the retrieval API with bounded retries.
type Client struct {
	BaseURL   string
	UserAgent string
	Mode      string
	Policy    RetryPolicy
	HTTP      *http.Client

	toBand func(freqMHz float64) string
	now    func() time.Time
}

// NewClient returns a client for the given digital mode. toBand maps a
// frequency in MHz to a band name.
func NewClient(mode string, toBand func(float64) string) *Client {
	return &Client{
		BaseURL:   DefaultBaseURL,
		UserAgent: "antcmp/1.0",
		Mode:      mode,
		Policy:    DefaultRetryPolicy(),
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		toBand:    toBand,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type receptionReport struct {
	ReceiverCallsign string `xml:"receiverCallsign,attr"`
	ReceiverLocator  string `xml:"receiverLocator,attr"`
	Frequency        int64  `xml:"frequency,attr"` // kHz
	SNR              string `xml:"sNR,attr"`
	FlowStartSeconds int64  `xml:"flowStartSeconds,attr"`
}

type retrieveResponse struct {
	Reports []receptionReport `xml:"receptionReport"`
}

// FetchSpots retrieves reception reports for callsign from start to end. A
// zero end means "now". The lookback window is clamped to the service's
// 24-hour ceiling. On rate limiting the call retries with exponential
// backoff; on other transient failures it retries with a flat delay; when the
// retry budget is exhausted it logs the failure and returns an empty list,
// never an error, since TX analysis is optional enrichment.
func (c *Client) FetchSpots(ctx context.Context, callsign string, start, end time.Time) []Spot {
	lookback := c.now().Sub(start)
	if lookback > MaxLookback {
		lookback = MaxLookback
	}
	if lookback < 0 {
		lookback = 0
	}
	query := url.Values{}
	query.Set("senderCallsign", callsign)
	query.Set("flowStartSeconds", fmt.Sprintf("-%d", int(lookback.Seconds())))
	query.Set("mode", c.Mode)
	query.Set("rronly", "1")
	target := c.BaseURL + "?" + query.Encode()

	body, err := c.Policy.Do(ctx, func() ([]byte, error) {
		return c.get(ctx, target)
	})
	if err != nil {
		log.Printf("pskreporter: fetch for %s failed after retries: %v", callsign, err)
		return nil
	}

	var resp retrieveResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		log.Printf("pskreporter: parse response for %s: %v", callsign, err)
		return nil
	}

	spots := make([]Spot, 0, len(resp.Reports))
	for _, rr := range resp.Reports {
		freqMHz := float64(rr.Frequency) / 1000.0
		spot := Spot{
			Time:         time.Unix(rr.FlowStartSeconds, 0).UTC(),
			ReceiverCall: rr.ReceiverCallsign,
			ReceiverGrid: rr.ReceiverLocator,
			FrequencyMHz: freqMHz,
			Band:         c.toBand(freqMHz),
		}
		var snr int
		if _, err := fmt.Sscanf(rr.SNR, "%d", &snr); err == nil {
			spot.SNR = &snr
		}
		if !end.IsZero() && spot.Time.After(end) {
			continue
		}
		spots = append(spots, spot)
	}
	return spots
}

// errRateLimited marks an HTTP 429 so the retry policy can pick the
// exponential schedule.
type errRateLimited struct{ status int }

func (e errRateLimited) Error() string {
	return fmt.Sprintf("pskreporter: rate limited (status %d)", e.status)
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errRateLimited{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pskreporter: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
