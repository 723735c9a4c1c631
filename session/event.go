// Package session implements the antenna comparison session as an
// event-sourced log. The append-only event sequence on disk is the single
// source of truth; status, elapsed times, and antenna intervals are all pure
// functions of replaying it.
package session

import (
	"errors"
	"time"
)

// EventKind tags the variants of the session event union.
type EventKind string

const (
	EventStart  EventKind = "start"
	EventStop   EventKind = "stop"
	EventPause  EventKind = "pause"
	EventResume EventKind = "resume"
	EventUse    EventKind = "use"
	EventNote   EventKind = "note"
)

// Event is one entry in the session log. Only the fields relevant to the
// event kind are populated; the JSON shape matches the on-disk log.
//
// Use events snapshot the antenna description at append time so renaming an
// antenna later never rewrites historical intervals.
type Event struct {
	Kind        EventKind         `json:"event"`
	Time        time.Time         `json:"timestamp"`
	Name        string            `json:"name,omitempty"`        // start
	Solar       map[string]string `json:"solar,omitempty"`       // start
	Antenna     string            `json:"antenna,omitempty"`     // use
	Band        string            `json:"band,omitempty"`        // use
	Description string            `json:"description,omitempty"` // use
	Text        string            `json:"text,omitempty"`        // note
}

// Transition validation errors, surfaced to the caller before anything is
// appended. The log is never modified on a rejected transition.
var (
	ErrSessionActive  = errors.New("session: a session is already active")
	ErrNoSession      = errors.New("session: no active session")
	ErrAlreadyPaused  = errors.New("session: session is already paused")
	ErrNotPaused      = errors.New("session: session is not paused")
	ErrUnknownAntenna = errors.New("session: unknown antenna")
)
