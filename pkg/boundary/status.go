package boundary

import (
	"errors"
	"fmt"

	"nsc-hq/arbiter/pkg/snapshot"
)

// Status is the small integer result code returned across the boundary.
// Zero is success; every failure is negative and stable across releases.
type Status int32

const (
	StatusOK                   Status = 0
	StatusInvalidHandle        Status = -1
	StatusTruncatedHeader      Status = -2
	StatusEntryLengthTruncated Status = -3
	StatusEntryIDOverrun       Status = -4
	StatusEntryInvalidUTF8     Status = -5
	StatusEntryRepTruncated    Status = -6
	StatusEntryStallTruncated  Status = -7
	StatusBadMagic             Status = -8
	StatusUnsupportedVersion   Status = -9

	// StatusEncodeFailed is returned by Snapshot when the state does not
	// fit the ARB1 u32 fields. It never results from decoding.
	StatusEncodeFailed Status = -10
)

var statusNames = map[Status]string{
	StatusOK:                   "ok",
	StatusInvalidHandle:        "invalid handle",
	StatusTruncatedHeader:      "truncated header",
	StatusEntryLengthTruncated: "entry length truncated",
	StatusEntryIDOverrun:       "entry id overrun",
	StatusEntryInvalidUTF8:     "entry id invalid utf-8",
	StatusEntryRepTruncated:    "entry hyst_rep truncated",
	StatusEntryStallTruncated:  "entry hyst_stall truncated",
	StatusBadMagic:             "bad magic",
	StatusUnsupportedVersion:   "unsupported version",
	StatusEncodeFailed:         "encode failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// OK reports whether s is StatusOK.
func (s Status) OK() bool {
	return s == StatusOK
}

// MalformedEntry reports whether s is one of the per-entry decode failures.
func (s Status) MalformedEntry() bool {
	return s <= StatusEntryLengthTruncated && s >= StatusEntryStallTruncated
}

var entryStatus = map[snapshot.EntryErrorKind]Status{
	snapshot.KindLengthTruncated: StatusEntryLengthTruncated,
	snapshot.KindIDOverrun:       StatusEntryIDOverrun,
	snapshot.KindInvalidUTF8:     StatusEntryInvalidUTF8,
	snapshot.KindRepTruncated:    StatusEntryRepTruncated,
	snapshot.KindStallTruncated:  StatusEntryStallTruncated,
}

// StatusOf maps a snapshot codec error to its status code. A nil error is
// StatusOK. Other errors map to StatusTruncatedHeader.
func StatusOf(err error) Status {
	var entryErr *snapshot.EntryError
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &entryErr):
		if s, ok := entryStatus[entryErr.Kind]; ok {
			return s
		}
		return StatusEntryLengthTruncated
	case errors.Is(err, snapshot.ErrBadMagic):
		return StatusBadMagic
	case errors.Is(err, snapshot.ErrUnsupportedVersion):
		return StatusUnsupportedVersion
	case errors.Is(err, snapshot.ErrTooLarge):
		return StatusEncodeFailed
	default:
		return StatusTruncatedHeader
	}
}
