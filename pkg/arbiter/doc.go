// Package arbiter is the pure decision core: it reduces per-intent evidence
// into an uncertainty summary and decides whether the intent's output should
// be escalated for extra scrutiny.
//
// # Overview
//
// The package has no I/O, no logging and no shared state. Everything it
// mutates is passed in explicitly:
//
//   - Evidence and EvidenceView: one source's measurement, and the ordered
//     list of measurements for one intent
//   - SourceProfiles: per-source trust bands that clamp evidence weight
//   - DetectFreeze: text heuristics producing FreezeFlags
//   - ComputeOddity: persona-relative anomaly score (auxiliary only)
//   - Decide / Tick: the threshold plus hysteresis state machine
//
// # Decision Flow
//
//	EvidenceView ──ApplySourceProfiles──> weighted view
//	      │
//	      └──Aggregate──> Uncertainty ─┐
//	FreezeFlags ──Bump──> HysteresisState ──Decide──> Escalation
//
// A tick with no alarm resets the hysteresis counters. Non-finite metrics
// never fire an alarm on their own.
//
// # Usage
//
//	cfg := arbiter.DefaultConfig()
//	var state arbiter.HysteresisState
//
//	view := arbiter.NewEvidenceView("turn-42")
//	view.Push(arbiter.Evidence{SourceID: "llm", AvgEntropy: 3.0, CosineSim: 0.9, Weight: 1})
//
//	flags := arbiter.DetectFreeze(responseText)
//	esc := arbiter.Tick(view, &flags, &cfg, &state)
package arbiter
