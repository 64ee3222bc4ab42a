package snapshot

import (
	"errors"
	"fmt"
)

var (
	// ErrBadMagic means the input does not start with "ARB1".
	ErrBadMagic = errors.New("snapshot: bad magic")

	// ErrUnsupportedVersion means the format version is not 1.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")

	// ErrTruncatedHeader means the input ends inside the 12-byte header.
	ErrTruncatedHeader = errors.New("snapshot: truncated header")

	// ErrTooLarge means a snapshot cannot be encoded because an entry count
	// or id length does not fit the format's u32 fields.
	ErrTooLarge = errors.New("snapshot: too large to encode")

	// ErrMalformedEntry is matched by every *EntryError.
	ErrMalformedEntry = errors.New("snapshot: malformed entry")
)

// EntryErrorKind says which field of an entry could not be read.
type EntryErrorKind int

const (
	// KindLengthTruncated: the input ends inside the id length prefix.
	KindLengthTruncated EntryErrorKind = iota + 1
	// KindIDOverrun: the id length exceeds the remaining input.
	KindIDOverrun
	// KindInvalidUTF8: the id bytes are not valid UTF-8.
	KindInvalidUTF8
	// KindRepTruncated: the input ends inside hyst_rep.
	KindRepTruncated
	// KindStallTruncated: the input ends inside hyst_stall.
	KindStallTruncated
)

var kindNames = map[EntryErrorKind]string{
	KindLengthTruncated: "id length truncated",
	KindIDOverrun:       "id overruns input",
	KindInvalidUTF8:     "id is not valid utf-8",
	KindRepTruncated:    "hyst_rep truncated",
	KindStallTruncated:  "hyst_stall truncated",
}

func (k EntryErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// EntryError describes a malformed entry.
type EntryError struct {
	// Index is the zero-based entry number.
	Index int
	// Offset is the byte offset where the entry starts.
	Offset int
	Kind   EntryErrorKind
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("snapshot: malformed entry %d at offset %d: %s", e.Index, e.Offset, e.Kind)
}

// Is reports whether target is ErrMalformedEntry.
func (e *EntryError) Is(target error) bool {
	return target == ErrMalformedEntry
}
