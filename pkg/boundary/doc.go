// Package boundary exposes supervisors to foreign callers through opaque
// handles, flat records and integer status codes.
//
// A Registry maps uuid-backed handles to supervisors. Every operation on an
// unknown or freed handle returns StatusInvalidHandle instead of failing.
// Returned action slices and snapshot buffers belong to the caller.
package boundary
