// Package snapshot encodes supervisor state in the ARB1 binary format.
//
// All integers are little-endian u32:
//
//	magic   = 0x31425241 ("ARB1")
//	version = 1
//	count
//	count times:
//	    id_len, id bytes (UTF-8), hyst_rep, hyst_stall
//
// Decoding rejects a bad magic before looking at the version, and an
// unknown version before reading the count. Malformed entries yield an
// *EntryError that matches ErrMalformedEntry with errors.Is.
package snapshot
