// Package advisor recommends breaks from live session counters.
package advisor

import (
	"fmt"

	"github.com/verte-zerg/deepwork/internal/model"
)

const (
	longBreakMinutes    = 90.0
	movementMinutes     = 30.0
	movementSwitches    = 20
	largeDecline        = 15.0
	moderateDecline     = 8.0
	declineSampleWindow = 5
	declineMinSamples   = 2 * declineSampleWindow
	pomodoroFrom        = 25.0
	pomodoroTo          = 30.0
	eyeFrom             = 20.0
	eyeTo               = 21.0
	microFrom           = 50.0
	microTo             = 51.0
)

var durations = map[model.BreakType]int{
	model.BreakMicro:    1,
	model.BreakEye:      1,
	model.BreakShort:    5,
	model.BreakMovement: 5,
	model.BreakLong:     15,
}

// Catalog lists suggested activities per break type.
var Catalog = map[model.BreakType][]string{
	model.BreakMicro: {
		"Roll your shoulders and unclench your jaw",
		"Take three slow, deep breaths",
		"Stretch your wrists and fingers",
	},
	model.BreakEye: {
		"Look at something 20 feet away for 20 seconds",
		"Close your eyes and relax them for a moment",
		"Blink slowly ten times",
	},
	model.BreakShort: {
		"Stand up and refill your water",
		"Step away from the screen for five minutes",
		"Do a quick standing stretch",
	},
	model.BreakMovement: {
		"Take a short walk around the room",
		"Do ten squats or a few lunges",
		"Climb a flight of stairs",
	},
	model.BreakLong: {
		"Go outside for a fifteen minute walk",
		"Have a proper snack away from your desk",
		"Lie down and rest your eyes",
	},
}

// Input is the live state the advisor inspects.
type Input struct {
	ContinuousMinutes float64
	ContextSwitches   int
	FocusSamples      []float64
}

// Advisor is stateless apart from its activity picker.
type Advisor struct {
	picker Picker
}

// New returns an advisor that uses picker for activity selection.
func New(picker Picker) *Advisor {
	if picker == nil {
		picker = NewTimeSeededPicker()
	}
	return &Advisor{picker: picker}
}

// Advise returns at most one recommendation, or nil.
func (a *Advisor) Advise(in Input) *model.BreakRecommendation {
	minutes := in.ContinuousMinutes

	if minutes >= longBreakMinutes {
		return a.build(model.BreakLong, model.UrgencyHigh, model.DeclineNone,
			fmt.Sprintf("You have worked %d minutes without a break", int(minutes)))
	}

	switch FocusDecline(in.FocusSamples) {
	case model.DeclineLarge:
		return a.build(model.BreakShort, model.UrgencyMedium, model.DeclineLarge,
			"Your focus is declining sharply")
	case model.DeclineModerate:
		return a.build(model.BreakShort, model.UrgencyMedium, model.DeclineModerate,
			"Your focus is starting to slip")
	}

	if in.ContextSwitches > movementSwitches && minutes > movementMinutes {
		return a.build(model.BreakMovement, model.UrgencyMedium, model.DeclineNone,
			fmt.Sprintf("%d context switches suggest restlessness", in.ContextSwitches))
	}
	if minutes >= pomodoroFrom && minutes < pomodoroTo {
		return a.build(model.BreakShort, model.UrgencyLow, model.DeclineNone,
			"A Pomodoro interval is complete")
	}
	if minutes >= eyeFrom && minutes < eyeTo {
		return a.build(model.BreakEye, model.UrgencyLow, model.DeclineNone,
			"Time for the 20-20-20 eye rule")
	}
	if minutes >= microFrom && minutes < microTo {
		return a.build(model.BreakMicro, model.UrgencyLow, model.DeclineNone,
			"A short reset keeps long sessions sustainable")
	}
	return nil
}

// FocusDecline compares the last five samples with the five before them.
func FocusDecline(samples []float64) model.Decline {
	if len(samples) < declineMinSamples {
		return model.DeclineNone
	}
	n := len(samples)
	recent := mean(samples[n-declineSampleWindow:])
	prior := mean(samples[n-declineMinSamples : n-declineSampleWindow])
	drop := prior - recent
	switch {
	case drop > largeDecline:
		return model.DeclineLarge
	case drop > moderateDecline:
		return model.DeclineModerate
	default:
		return model.DeclineNone
	}
}

func (a *Advisor) build(kind model.BreakType, urgency model.Urgency, decline model.Decline, reason string) *model.BreakRecommendation {
	activities := Catalog[kind]
	activity := ""
	if len(activities) > 0 {
		activity = activities[a.picker.Pick(len(activities))]
	}
	return &model.BreakRecommendation{
		Type:            kind,
		DurationMinutes: durations[kind],
		Reason:          reason,
		Urgency:         urgency,
		Activity:        activity,
		Decline:         decline,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
