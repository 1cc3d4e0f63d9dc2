package domain

// Stage is a lead's position in the conversation pipeline.
type Stage string

const (
	StageNew                   Stage = "NEW"
	StageQualification         Stage = "QUALIFICATION"
	StageValueProposition      Stage = "VALUE_PROPOSITION"
	StageNegotiation           Stage = "NEGOTIATION"
	StageConsultationRequested Stage = "CONSULTATION_REQUESTED"
	StageClosed                Stage = "CLOSED"
	StageGhosted               Stage = "GHOSTED"
)

// stageOrder encodes the forward direction of the pipeline. CLOSED and
// GHOSTED sit outside the ordering: CLOSED is reachable from anywhere,
// GHOSTED only via the nudge budget, and leaving GHOSTED restores the
// prior stage.
var stageOrder = map[Stage]int{
	StageNew:                   0,
	StageQualification:         1,
	StageValueProposition:      2,
	StageNegotiation:           3,
	StageConsultationRequested: 4,
}

// IsKnown reports whether s is a known stage.
func (s Stage) IsKnown() bool {
	if s == StageClosed || s == StageGhosted {
		return true
	}
	_, ok := stageOrder[s]
	return ok
}

// IsTerminal reports whether the stage ends automated engagement.
func (s Stage) IsTerminal() bool {
	return s == StageClosed || s == StageGhosted
}

// CanAdvanceTo reports whether a transition from s to next is legal:
// forward through the pipeline, into CLOSED from anywhere, or out of
// GHOSTED back to any active stage (the explicit reopen).
func (s Stage) CanAdvanceTo(next Stage) bool {
	if !next.IsKnown() {
		return false
	}
	if next == StageClosed {
		return true
	}
	if s == StageGhosted {
		return next != StageGhosted
	}
	if next == StageGhosted {
		return !s.IsTerminal()
	}

	from, okFrom := stageOrder[s]
	to, okTo := stageOrder[next]
	return okFrom && okTo && to >= from
}
