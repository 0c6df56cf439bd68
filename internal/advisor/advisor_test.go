package advisor

import (
	"testing"

	"github.com/verte-zerg/deepwork/internal/model"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func declining(prior, recent float64) []float64 {
	return append(flat(5, prior), flat(5, recent)...)
}

func TestAdvisePriority(t *testing.T) {
	a := New(IndexPicker(0))
	tests := []struct {
		name    string
		in      Input
		kind    model.BreakType
		urgency model.Urgency
		decline model.Decline
		none    bool
	}{
		{name: "long wins over everything", in: Input{ContinuousMinutes: 90, ContextSwitches: 50, FocusSamples: declining(90, 40)}, kind: model.BreakLong, urgency: model.UrgencyHigh},
		{name: "large decline", in: Input{ContinuousMinutes: 10, FocusSamples: declining(90, 70)}, kind: model.BreakShort, urgency: model.UrgencyMedium, decline: model.DeclineLarge},
		{name: "moderate decline", in: Input{ContinuousMinutes: 10, FocusSamples: declining(90, 80)}, kind: model.BreakShort, urgency: model.UrgencyMedium, decline: model.DeclineModerate},
		{name: "small decline ignored", in: Input{ContinuousMinutes: 10, FocusSamples: declining(90, 85)}, none: true},
		{name: "decline needs ten samples", in: Input{ContinuousMinutes: 10, FocusSamples: append(flat(4, 100), flat(5, 0)...)}, none: true},
		{name: "movement", in: Input{ContinuousMinutes: 31, ContextSwitches: 21}, kind: model.BreakMovement, urgency: model.UrgencyMedium},
		{name: "movement needs more than thirty minutes", in: Input{ContinuousMinutes: 30, ContextSwitches: 21}, none: true},
		{name: "pomodoro", in: Input{ContinuousMinutes: 25}, kind: model.BreakShort, urgency: model.UrgencyLow},
		{name: "pomodoro upper bound exclusive", in: Input{ContinuousMinutes: 30}, none: true},
		{name: "eye", in: Input{ContinuousMinutes: 20.5}, kind: model.BreakEye, urgency: model.UrgencyLow},
		{name: "micro", in: Input{ContinuousMinutes: 50}, kind: model.BreakMicro, urgency: model.UrgencyLow},
		{name: "nothing", in: Input{ContinuousMinutes: 12}, none: true},
		{name: "zero", in: Input{}, none: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.Advise(tc.in)
			if tc.none {
				if rec != nil {
					t.Fatalf("expected no recommendation, got %+v", rec)
				}
				return
			}
			if rec == nil {
				t.Fatalf("expected %s recommendation, got nil", tc.kind)
			}
			if rec.Type != tc.kind || rec.Urgency != tc.urgency || rec.Decline != tc.decline {
				t.Fatalf("expected %s/%s/%q, got %s/%s/%q", tc.kind, tc.urgency, tc.decline, rec.Type, rec.Urgency, rec.Decline)
			}
			if rec.Activity != Catalog[tc.kind][0] {
				t.Fatalf("expected first catalog activity, got %q", rec.Activity)
			}
			if rec.Reason == "" || rec.DurationMinutes <= 0 {
				t.Fatalf("expected reason and duration, got %+v", rec)
			}
		})
	}
}

func TestDeclineBandsDifferInReason(t *testing.T) {
	a := New(IndexPicker(0))
	large := a.Advise(Input{FocusSamples: declining(90, 70)})
	moderate := a.Advise(Input{FocusSamples: declining(90, 80)})
	if large.Reason == moderate.Reason {
		t.Fatalf("expected different reasons for decline bands")
	}
}

func TestSeededPickerIsDeterministic(t *testing.T) {
	a := New(NewRandPicker(42))
	b := New(NewRandPicker(42))
	for i := 0; i < 10; i++ {
		ra := a.Advise(Input{ContinuousMinutes: 95})
		rb := b.Advise(Input{ContinuousMinutes: 95})
		if ra.Activity != rb.Activity {
			t.Fatalf("expected identical picks for identical seeds")
		}
	}
}

func TestIndexPickerWraps(t *testing.T) {
	if got := IndexPicker(7).Pick(3); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := IndexPicker(-1).Pick(3); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
