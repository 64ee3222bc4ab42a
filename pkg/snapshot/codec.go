package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"nsc-hq/arbiter/pkg/arbiter"
	"nsc-hq/arbiter/pkg/supervisor"
)

const (
	// Magic is "ARB1" read as a little-endian u32.
	Magic uint32 = 0x31425241

	// Version is the only format version this package reads or writes.
	Version uint32 = 1

	// HeaderSize is the size of magic, version and count.
	HeaderSize = 12

	// minEntrySize is an entry with an empty intent id.
	minEntrySize = 12
)

var le = binary.LittleEndian

// Header is the fixed prefix of an encoded snapshot.
type Header struct {
	Magic   uint32 `json:"magic"`
	Version uint32 `json:"version"`
	Count   uint32 `json:"count"`
}

// Marshal encodes snap in the ARB1 format. Entries are written in the order
// they appear in snap.
func Marshal(snap supervisor.Snapshot) ([]byte, error) {
	size := HeaderSize
	for _, e := range snap.States {
		size += minEntrySize + len(e.IntentID)
	}
	return AppendMarshal(make([]byte, 0, size), snap)
}

// AppendMarshal appends the encoding of snap to dst.
func AppendMarshal(dst []byte, snap supervisor.Snapshot) ([]byte, error) {
	if uint64(len(snap.States)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d entries", ErrTooLarge, len(snap.States))
	}

	dst = le.AppendUint32(dst, Magic)
	dst = le.AppendUint32(dst, Version)
	dst = le.AppendUint32(dst, uint32(len(snap.States)))

	for _, e := range snap.States {
		if uint64(len(e.IntentID)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: intent id of %d bytes", ErrTooLarge, len(e.IntentID))
		}
		dst = le.AppendUint32(dst, uint32(len(e.IntentID)))
		dst = append(dst, e.IntentID...)
		dst = le.AppendUint32(dst, e.State.HystRep)
		dst = le.AppendUint32(dst, e.State.HystStall)
	}
	return dst, nil
}

// ReadHeader decodes and checks the header of data. The magic is checked
// before the version, and both before the count is read.
func ReadHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < 4 {
		return h, ErrTruncatedHeader
	}
	h.Magic = le.Uint32(data[0:4])
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: %#08x", ErrBadMagic, h.Magic)
	}
	if len(data) < 8 {
		return h, ErrTruncatedHeader
	}
	h.Version = le.Uint32(data[4:8])
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if len(data) < HeaderSize {
		return h, ErrTruncatedHeader
	}
	h.Count = le.Uint32(data[8:12])
	return h, nil
}

// Unmarshal decodes an ARB1 snapshot. The whole input is validated before
// anything is returned, so a caller never sees a partial snapshot. Bytes
// after the last entry are ignored.
func Unmarshal(data []byte) (supervisor.Snapshot, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return supervisor.Snapshot{}, err
	}

	// Cap the allocation by what the buffer could possibly hold.
	capacity := int(h.Count)
	if limit := (len(data) - HeaderSize) / minEntrySize; capacity > limit {
		capacity = limit
	}
	states := make([]supervisor.IntentState, 0, capacity)

	off := HeaderSize
	for i := 0; i < int(h.Count); i++ {
		start := off
		fail := func(kind EntryErrorKind) (supervisor.Snapshot, error) {
			return supervisor.Snapshot{}, &EntryError{Index: i, Offset: start, Kind: kind}
		}

		if len(data)-off < 4 {
			return fail(KindLengthTruncated)
		}
		n := uint64(le.Uint32(data[off:]))
		off += 4

		if n > uint64(len(data)-off) {
			return fail(KindIDOverrun)
		}
		id := data[off : off+int(n)]
		if !utf8.Valid(id) {
			return fail(KindInvalidUTF8)
		}
		off += int(n)

		if len(data)-off < 4 {
			return fail(KindRepTruncated)
		}
		rep := le.Uint32(data[off:])
		off += 4

		if len(data)-off < 4 {
			return fail(KindStallTruncated)
		}
		stall := le.Uint32(data[off:])
		off += 4

		states = append(states, supervisor.IntentState{
			IntentID: string(id),
			State:    arbiter.HysteresisState{HystRep: rep, HystStall: stall},
		})
	}

	return supervisor.Snapshot{States: states}, nil
}

// Write encodes snap to w.
func Write(w io.Writer, snap supervisor.Snapshot) (int64, error) {
	data, err := Marshal(snap)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Read decodes a snapshot from everything remaining in r.
func Read(r io.Reader) (supervisor.Snapshot, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return supervisor.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return Unmarshal(buf.Bytes())
}
