// Package analysis joins decode and spot records to session intervals and
// produces the per-band, per-sector and summary comparison between antennas.
package analysis

import (
	"antcmp/decode"
	"antcmp/pskreporter"
	"antcmp/session"
)

// Samples maps antenna -> band -> callsign -> SNR samples.
type Samples map[string]map[string]map[string][]int

func (s Samples) add(antenna, band, call string, snr int) {
	byBand, ok := s[antenna]
	if !ok {
		byBand = make(map[string]map[string][]int)
		s[antenna] = byBand
	}
	byCall, ok := byBand[band]
	if !ok {
		byCall = make(map[string][]int)
		byBand[band] = byCall
	}
	byCall[call] = append(byCall[call], snr)
}

// bands returns the union of bands that carry samples.
func (s Samples) bands() map[string]bool {
	out := make(map[string]bool)
	for _, byBand := range s {
		for band := range byBand {
			out[band] = true
		}
	}
	return out
}

// RxData aggregates decode records matched to intervals. Raw lines are kept
// per antenna/band so the artifact can be re-analyzed without the full log.
type RxData struct {
	Samples  Samples
	Grids    map[string]string
	RawLines map[string]map[string][]string
}

// NewRxData returns an empty receive-side aggregate.
func NewRxData() *RxData {
	return &RxData{
		Samples:  make(Samples),
		Grids:    make(map[string]string),
		RawLines: make(map[string]map[string][]string),
	}
}

// Add joins one decode record against the timeline. Records outside every
// interval are dropped. The first grid seen for a callsign wins.
func (d *RxData) Add(rec decode.Record, tl session.Timeline) {
	antenna := tl.Locate(rec.Time)
	if antenna == "" {
		return
	}
	d.Samples.add(antenna, rec.Band, rec.Call, rec.SNR)
	if rec.Grid != "" {
		if _, seen := d.Grids[rec.Call]; !seen {
			d.Grids[rec.Call] = rec.Grid
		}
	}
	byBand, ok := d.RawLines[antenna]
	if !ok {
		byBand = make(map[string][]string)
		d.RawLines[antenna] = byBand
	}
	byBand[rec.Band] = append(byBand[rec.Band], rec.Raw)
}

// TxData aggregates reception-report spots matched to intervals. Raw spots
// include reports without SNR; the sample set only carries reports with one.
type TxData struct {
	Samples  Samples
	Grids    map[string]string
	RawSpots map[string]map[string][]pskreporter.Spot
	Total    int
}

// NewTxData returns an empty transmit-side aggregate.
func NewTxData() *TxData {
	return &TxData{
		Samples:  make(Samples),
		Grids:    make(map[string]string),
		RawSpots: make(map[string]map[string][]pskreporter.Spot),
	}
}

// Add joins one spot against the timeline. Spots with a non-positive
// frequency are bad service data and are dropped outright.
func (d *TxData) Add(spot pskreporter.Spot, tl session.Timeline) {
	if spot.FrequencyMHz <= 0 {
		return
	}
	antenna := tl.Locate(spot.Time)
	if antenna == "" {
		return
	}
	byBand, ok := d.RawSpots[antenna]
	if !ok {
		byBand = make(map[string][]pskreporter.Spot)
		d.RawSpots[antenna] = byBand
	}
	byBand[spot.Band] = append(byBand[spot.Band], spot)
	if spot.SNR == nil {
		return
	}
	d.Samples.add(antenna, spot.Band, spot.ReceiverCall, *spot.SNR)
	if spot.ReceiverGrid != "" {
		d.Grids[spot.ReceiverCall] = spot.ReceiverGrid
	}
	d.Total++
}
