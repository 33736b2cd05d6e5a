// Package tracker reads releases and resolved defect tickets from issue trackers.
package tracker

import (
	"errors"
	"time"
)

// ErrUnexpectedStatus is returned when a tracker answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected tracker response status")

// ErrInvalidPayload is returned when a tracker response cannot be parsed.
var ErrInvalidPayload = errors.New("invalid tracker payload")

// Release is a version as published by the tracker.
type Release struct {
	Name     string
	Date     time.Time
	Released bool
}

// Ticket is a resolved defect report.
type Ticket struct {
	Key      string
	Created  time.Time
	Resolved time.Time
	// Affected lists the release names the report says the defect is present in.
	Affected []string
	// Fixed lists the release names the fix shipped in.
	Fixed []string
}
