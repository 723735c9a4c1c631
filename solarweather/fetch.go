// Package solarweather fetches the hamqsl solar/propagation snapshot and
// interprets it into a coarse conditions assessment. Sessions capture the
// snapshot at start as opaque best-effort enrichment.
package solarweather

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultURL is the hamqsl solar XML endpoint.
const DefaultURL = "https://www.hamqsl.com/solarxml.php"

// Fetcher retrieves the solar snapshot over HTTP.
type Fetcher struct {
	URL       string
	UserAgent string
	Client    *http.Client
}

// NewFetcher returns a fetcher against the public endpoint.
func NewFetcher() *Fetcher {
	return &Fetcher{
		URL:       DefaultURL,
		UserAgent: "antcmp/1.0",
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type solarXML struct {
	SolarData struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"solardata"`
}

// Fetch returns the solardata element as a flat tag -> text map. The element
// set varies with the upstream feed, so no fixed schema is imposed.
func (f *Fetcher) Fetch(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("solarweather: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solarweather: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solarweather: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("solarweather: read response: %w", err)
	}
	return Parse(body)
}

// Parse extracts the solardata children from the raw feed document.
func Parse(body []byte) (map[string]string, error) {
	var doc solarXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("solarweather: parse feed: %w", err)
	}
	if len(doc.SolarData.Inner) == 0 {
		return nil, fmt.Errorf("solarweather: feed has no solardata element")
	}

	data := make(map[string]string)
	dec := xml.NewDecoder(strings.NewReader("<solardata>" + string(doc.SolarData.Inner) + "</solardata>"))
	var current string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("solarweather: parse solardata: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "solardata" {
				current = t.Name.Local
			}
		case xml.CharData:
			if current != "" {
				data[current] += strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			current = ""
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("solarweather: empty solardata element")
	}
	return data, nil
}

// Conditions is the interpreted assessment of a snapshot.
type Conditions struct {
	HF      string
	VHF     string
	Noise   string
	Summary string
}

// Interpret grades the snapshot into HF/VHF conditions and a noise estimate.
// The thresholds are operator folklore, not science, but they track the SFI
// and A/K index bands radio amateurs plan around.
func Interpret(data map[string]string) Conditions {
	sfi, errSFI := strconv.Atoi(strings.TrimSpace(data["solarflux"]))
	aIndex, errA := strconv.Atoi(strings.TrimSpace(data["aindex"]))
	kIndex, errK := strconv.Atoi(strings.TrimSpace(data["kindex"]))
	if errSFI != nil || errA != nil || errK != nil {
		return Conditions{HF: "Unknown", VHF: "Unknown", Noise: "Unknown", Summary: "Unable to parse solar data"}
	}

	var hf string
	switch {
	case sfi >= 150 && aIndex <= 7:
		hf = "Excellent"
	case sfi >= 100 && aIndex <= 15:
		hf = "Good"
	case sfi >= 70 || aIndex <= 25:
		hf = "Fair"
	default:
		hf = "Poor"
	}

	var vhf string
	switch {
	case kIndex >= 5:
		vhf = "Good" // aurora likely
	case kIndex <= 2 && sfi >= 100:
		vhf = "Fair" // sporadic-E possible
	default:
		vhf = "Poor"
	}

	var noise string
	switch {
	case aIndex <= 7:
		noise = "S0-S3"
	case aIndex <= 15:
		noise = "S4-S6"
	case aIndex <= 25:
		noise = "S7-S9"
	default:
		noise = "S9+"
	}

	parts := []string{"HF: " + hf, "VHF: " + vhf, "Noise: " + noise}
	if kIndex >= 5 {
		parts = append(parts, "(Aurora likely)")
	}
	if sfi >= 150 {
		parts = append(parts, "(Solar max conditions)")
	}
	return Conditions{HF: hf, VHF: vhf, Noise: noise, Summary: strings.Join(parts, ", ")}
}
