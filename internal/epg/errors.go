// SPDX-License-Identifier: MIT

package epg

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTimestamp marks a programme whose start or stop cannot be parsed.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	// ErrUnknownTimezone marks an invalid IANA timezone name.
	ErrUnknownTimezone = errors.New("unknown timezone")
	// ErrEmptyBatch is returned when a batch has no channels and no programmes.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrUnresolvedChannelNumber is logged when no LCN candidate is accepted.
	ErrUnresolvedChannelNumber = errors.New("unresolved channel number")
	// ErrAmbiguousIdentity is logged when a record has no usable dedup key.
	ErrAmbiguousIdentity = errors.New("ambiguous identity")
)

// MalformedTimestampError describes which field failed to parse.
type MalformedTimestampError struct {
	Field string
	Value string
	Err   error
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrMalformedTimestamp, e.Field, e.Value)
}

// Unwrap supports errors.Is(err, ErrMalformedTimestamp).
func (e *MalformedTimestampError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedTimestamp}
	}
	return []error{ErrMalformedTimestamp, e.Err}
}

// UnknownTimezoneError carries the rejected timezone name.
type UnknownTimezoneError struct {
	Name string
	Err  error
}

func (e *UnknownTimezoneError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownTimezone, e.Name)
}

// Unwrap supports errors.Is(err, ErrUnknownTimezone).
func (e *UnknownTimezoneError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnknownTimezone}
	}
	return []error{ErrUnknownTimezone, e.Err}
}
