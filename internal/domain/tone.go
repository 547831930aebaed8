package domain

type Tone string

const (
	ToneMaximum  Tone = "maximum"
	ToneHigh     Tone = "high"
	ToneModerate Tone = "moderate"
	ToneSoft     Tone = "soft"
)

// ToneInstructions is the style hint injected into generation requests.
var ToneInstructions = map[Tone]string{
	ToneMaximum:  "Maximum push. Imperative only: do it, right now, no deliberation.",
	ToneHigh:     "Firm but breathing: do this, two minutes, starting now.",
	ToneModerate: "Neutral and direct: next step, five minutes.",
	ToneSoft:     "Support without pressure: keep going, here is the next step.",
}

// ToneFor derives the generation tone from streak and today's progress.
// Broken streak gets the hardest push, a 7+ day streak the softest, and
// three or more completions today ease the pressure mid-day.
func ToneFor(streakDays, completedToday int) Tone {
	if streakDays == 0 {
		return ToneMaximum
	}
	if streakDays >= 7 {
		return ToneSoft
	}
	if completedToday >= 3 {
		return ToneModerate
	}
	return ToneHigh
}
