// Arbiter is a deterministic escalation arbiter for supervised generative
// systems.
//
// It ingests batches of signals (decoder steps, STT segments, classifier
// verdicts) keyed by intent, aggregates them into per-intent uncertainty,
// tracks freeze hysteresis, and decides whether each intent needs a
// critique pass. Hysteresis state can be persisted as ARB1 snapshot
// generations in memory or SQLite.
//
// Usage:
//
//	# Ingest newline-delimited JSON signals and print actions
//	arbiter ingest --input signals.jsonl
//
//	# Replay several independent streams concurrently
//	arbiter replay --parallel 4 a.jsonl b.jsonl c.jsonl
//
//	# Export the newest stored snapshot generation
//	arbiter snapshot export --output state.arb
//
//	# Check a text payload for freeze flags
//	arbiter freeze "as an AI language model, I cannot"
//
//	# Validate a configuration file
//	arbiter validate --config arbiter.yaml
package main

func main() {
	Execute()
}
