package domain

type BlockerType string

const (
	BlockerFear     BlockerType = "fear"
	BlockerUnclear  BlockerType = "unclear"
	BlockerNoTime   BlockerType = "no_time"
	BlockerNoEnergy BlockerType = "no_energy"
)

var blockerDescriptions = map[BlockerType]string{
	BlockerFear:     "anxious and afraid to start the task",
	BlockerUnclear:  "doesn't know where to start",
	BlockerNoTime:   "feels there is no time for it",
	BlockerNoEnergy: "drained, no energy left",
}

// BlockerDescription returns the prompt-facing description for a blocker.
// Unknown values pass through unchanged.
func BlockerDescription(b BlockerType) string {
	if d, ok := blockerDescriptions[b]; ok {
		return d
	}
	return string(b)
}

func IsValidBlocker(raw string) bool {
	_, ok := blockerDescriptions[BlockerType(raw)]
	return ok
}

// NormalizeBlocker coerces raw input to a known blocker, defaulting to
// "unclear" which produces the most generic unblock suggestions.
func NormalizeBlocker(raw string) BlockerType {
	if IsValidBlocker(raw) {
		return BlockerType(raw)
	}
	return BlockerUnclear
}

// ShouldRequestDetails reports whether extra user detail improves the
// generated suggestions. Only the "unclear" blocker benefits from it.
func ShouldRequestDetails(b BlockerType) bool {
	return b == BlockerUnclear
}

// SuggestionCount picks how many unblock options to generate: three when
// the user gave details, two otherwise.
func SuggestionCount(hasDetails bool) int {
	if hasDetails {
		return 3
	}
	return 2
}
