package cdp

import (
	"context"
	"testing"
	"time"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatch(frameID cdpproto.FrameID) (*navigationWatch, *bool) {
	stopped := false
	return &navigationWatch{
		frameID: frameID,
		started: make(chan struct{}),
		settled: make(chan struct{}),
		cancel:  func() { stopped = true },
	}, &stopped
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestNavigationWatchFollowsMainFrame(t *testing.T) {
	w, _ := newTestWatch("main")

	w.handle(&page.EventFrameStartedLoading{FrameID: "child"})
	w.handle(&page.EventFrameNavigated{Frame: &cdpproto.Frame{ID: "child", ParentID: "main"}})
	assert.False(t, closed(w.started), "child frame events are ignored")
	assert.False(t, closed(w.settled))

	w.handle(&page.EventFrameRequestedNavigation{FrameID: "main", Reason: page.ClientNavigationReasonFormSubmissionPost})
	assert.True(t, closed(w.started))
	assert.False(t, closed(w.settled), "a requested navigation has not committed")

	w.handle(&page.EventFrameStartedLoading{FrameID: "main"})
	w.handle(&page.EventFrameNavigated{Frame: &cdpproto.Frame{ID: "main"}})
	assert.True(t, closed(w.settled))

	// Later events must not close the channels twice.
	w.handle(&page.EventFrameStoppedLoading{FrameID: "main"})
}

func TestNavigationWatchSettlesWithoutCommit(t *testing.T) {
	for name, ev := range map[string]any{
		"same document": &page.EventNavigatedWithinDocument{FrameID: "main", URL: "https://homes.test/#results"},
		"stopped (204)": &page.EventFrameStoppedLoading{FrameID: "main"},
	} {
		t.Run(name, func(t *testing.T) {
			w, _ := newTestWatch("main")
			w.handle(ev)
			assert.True(t, closed(w.started))
			assert.True(t, closed(w.settled))
		})
	}
}

func TestNavigationWatchAwaitStart(t *testing.T) {
	ctx := context.Background()

	idle, _ := newTestWatch("main")
	start := time.Now()
	navigating, err := idle.awaitStart(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, navigating)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	busy, _ := newTestWatch("main")
	go busy.handle(&page.EventFrameStartedNavigating{FrameID: "main"})
	navigating, err = busy.awaitStart(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, navigating)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = idle.awaitStart(cancelled, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPendingNavigationHandoff(t *testing.T) {
	d := &Driver{}
	w, stopped := newTestWatch("main")
	w.start()
	d.setPending(w)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	pending := d.takePending()
	require.Same(t, w, pending)
	assert.ErrorIs(t, pending.awaitSettled(ctx), context.DeadlineExceeded)
	assert.Nil(t, d.takePending(), "a pending navigation is handed out once")

	w.handle(&page.EventFrameNavigated{Frame: &cdpproto.Frame{ID: "main"}})
	assert.NoError(t, w.awaitSettled(context.Background()))

	next, _ := newTestWatch("main")
	d.setPending(w)
	d.setPending(next)
	assert.True(t, *stopped, "a replaced watch stops listening")
}
