package solarweather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleFeed = `<?xml version="1.0"?>
<solar>
  <solardata>
    <updated>15 Oct 2023 1400 GMT</updated>
    <solarflux>142</solarflux>
    <aindex>5</aindex>
    <kindex>2</kindex>
    <sunspots>96</sunspots>
    <geomagfield>QUIET</geomagfield>
  </solardata>
</solar>`

func TestParseFlattensSolardata(t *testing.T) {
	data, err := Parse([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := map[string]string{
		"solarflux":   "142",
		"aindex":      "5",
		"kindex":      "2",
		"geomagfield": "QUIET",
	}
	for key, val := range want {
		if data[key] != val {
			t.Fatalf("data[%q] = %q, want %q", key, data[key], val)
		}
	}
}

func TestParseRejectsFeedWithoutSolardata(t *testing.T) {
	if _, err := Parse([]byte(`<solar></solar>`)); err == nil {
		t.Fatalf("expected error for feed without solardata")
	}
}

func TestFetchUsesEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("request missing User-Agent")
		}
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher()
	f.URL = srv.URL
	data, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if data["solarflux"] != "142" {
		t.Fatalf("solarflux = %q, want 142", data["solarflux"])
	}
}

func TestInterpretGradesConditions(t *testing.T) {
	tests := []struct {
		sfi, a, k string
		hf        string
		noise     string
	}{
		{"160", "5", "1", "Excellent", "S0-S3"},
		{"120", "10", "2", "Good", "S4-S6"},
		{"80", "20", "3", "Fair", "S7-S9"},
		{"60", "30", "6", "Poor", "S9+"},
	}
	for _, tc := range tests {
		cond := Interpret(map[string]string{"solarflux": tc.sfi, "aindex": tc.a, "kindex": tc.k})
		if cond.HF != tc.hf {
			t.Fatalf("Interpret(sfi=%s a=%s) HF = %q, want %q", tc.sfi, tc.a, cond.HF, tc.hf)
		}
		if cond.Noise != tc.noise {
			t.Fatalf("Interpret(a=%s) Noise = %q, want %q", tc.a, cond.Noise, tc.noise)
		}
	}
	cond := Interpret(map[string]string{"solarflux": "n/a"})
	if cond.HF != "Unknown" {
		t.Fatalf("unparsable data graded %q, want Unknown", cond.HF)
	}
}
