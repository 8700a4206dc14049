package tracker

import (
	"github.com/samuelfneumann/goppo/event"
)

// Register subscribes each Tracker to the StepEnd channel of l so that
// it tracks every environment step of the training loop that owns l.
// The returned subscriptions can be used to stop tracking.
func Register(l *event.Lifecycle, trackers ...Tracker) []event.Subscription {
	subs := make([]event.Subscription, len(trackers))
	for i, t := range trackers {
		subs[i] = l.StepEnd.On(t.Track)
	}
	return subs
}

// Unregister removes subscriptions made with Register
func Unregister(l *event.Lifecycle, subs []event.Subscription) {
	for _, s := range subs {
		l.StepEnd.Off(s)
	}
}
