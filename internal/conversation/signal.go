package conversation

// Signal is the classified intent of an inbound message. The set is closed:
// anything a classifier emits outside it collapses to SignalGeneric.
type Signal string

const (
	SignalGeneric             Signal = "GENERIC"
	SignalQuestion            Signal = "QUESTION"
	SignalPhotoRequest        Signal = "PHOTO_REQUEST"
	SignalConsultationRequest Signal = "CONSULTATION_REQUEST"
	SignalQualifyingAnswer    Signal = "QUALIFYING_ANSWER"
)

var knownSignals = map[Signal]struct{}{
	SignalGeneric:             {},
	SignalQuestion:            {},
	SignalPhotoRequest:        {},
	SignalConsultationRequest: {},
	SignalQualifyingAnswer:    {},
}

// Normalize maps unknown signal values to SignalGeneric, the safe default.
func Normalize(s Signal) Signal {
	if _, ok := knownSignals[s]; ok {
		return s
	}
	return SignalGeneric
}
