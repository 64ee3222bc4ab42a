package main

import (
	"strconv"

	"nsc-hq/arbiter/pkg/supervisor"
)

// actionTable renders supervisor actions for the cli formatters.
type actionTable []supervisor.Action

func (t actionTable) Header() []string {
	return []string{
		"intent_id", "escalation",
		"avg_entropy", "cosine_sim", "gate_shift", "rule_hits",
		"rep_3p", "stall", "ai_tell", "oddity",
	}
}

func (t actionTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, a := range t {
		rep, stall, tell := "-", "-", "-"
		if ff := a.FreezeFlags; ff != nil {
			rep, stall, tell = strconv.FormatBool(ff.Rep3p), strconv.FormatBool(ff.Stall), strconv.FormatBool(ff.AITell)
		}
		oddity := "-"
		if a.Oddity != nil {
			oddity = formatFloat(*a.Oddity)
		}
		rows = append(rows, []string{
			a.IntentID,
			a.Escalation.String(),
			formatFloat(a.Uncertainty.AvgEntropy),
			formatFloat(a.Uncertainty.CosineSim),
			formatFloat(a.Uncertainty.GateShift),
			strconv.FormatUint(uint64(a.Uncertainty.RuleHits), 10),
			rep, stall, tell,
			oddity,
		})
	}
	return rows
}

// stateTable renders snapshot entries.
type stateTable []supervisor.IntentState

func (t stateTable) Header() []string {
	return []string{"intent_id", "hyst_rep", "hyst_stall"}
}

func (t stateTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		rows = append(rows, []string{
			e.IntentID,
			strconv.FormatUint(uint64(e.State.HystRep), 10),
			strconv.FormatUint(uint64(e.State.HystStall), 10),
		})
	}
	return rows
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', 4, 32)
}
