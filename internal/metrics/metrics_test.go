package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/subodh038/paysplit/internal/notify"
)

func TestTrackSessions(t *testing.T) {
	m := New(prometheus.NewRegistry())
	hub := &notify.Hub[notify.SessionEvent]{}
	stop := m.TrackSessions(hub)

	hub.Publish(notify.SessionEvent{Kind: notify.SignedIn})
	hub.Publish(notify.SessionEvent{Kind: notify.SignedIn})
	hub.Publish(notify.SessionEvent{Kind: notify.SignedOut})

	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Errorf("ActiveSessions = %v, want 1", got)
	}

	stop()
	hub.Publish(notify.SessionEvent{Kind: notify.SignedIn})
	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Errorf("ActiveSessions after unsubscribe = %v, want 1", got)
	}
}

func TestTrackSplits(t *testing.T) {
	m := New(prometheus.NewRegistry())
	hub := &notify.Hub[notify.SplitEvent]{}
	defer m.TrackSplits(hub)()

	hub.Publish(notify.SplitEvent{Kind: notify.SplitPaid})
	hub.Publish(notify.SplitEvent{Kind: notify.SplitPaid})
	hub.Publish(notify.SplitEvent{Kind: notify.SplitCompleted})

	if got := testutil.ToFloat64(m.SplitEvents.WithLabelValues("participant_paid")); got != 2 {
		t.Errorf("participant_paid = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SplitEvents.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed = %v, want 1", got)
	}
}
