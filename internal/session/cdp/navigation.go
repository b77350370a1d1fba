package cdp

import (
	"context"
	"sync"
	"time"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// navigationStartGrace is how long Submit waits for the main frame to start
// navigating before concluding the form was handled in-page.
const navigationStartGrace = 500 * time.Millisecond

// navigationWatch follows main-frame events after an action that may
// navigate. started closes once a navigation begins, settled once it commits,
// stays in the document, or is abandoned.
type navigationWatch struct {
	frameID cdpproto.FrameID
	started chan struct{}
	settled chan struct{}

	startOnce  sync.Once
	settleOnce sync.Once
	cancel     context.CancelFunc
}

// watchNavigation registers a target listener for frameID. The listener lives
// until stop or until the tab closes.
func (d *Driver) watchNavigation(frameID cdpproto.FrameID) *navigationWatch {
	lctx, cancel := context.WithCancel(d.tabCtx)
	w := &navigationWatch{
		frameID: frameID,
		started: make(chan struct{}),
		settled: make(chan struct{}),
		cancel:  cancel,
	}
	chromedp.ListenTarget(lctx, w.handle)
	return w
}

// handle runs on chromedp's event loop and must not block.
func (w *navigationWatch) handle(ev any) {
	switch ev := ev.(type) {
	case *page.EventFrameRequestedNavigation:
		if ev.FrameID == w.frameID {
			w.start()
		}
	case *page.EventFrameStartedNavigating:
		if ev.FrameID == w.frameID {
			w.start()
		}
	case *page.EventFrameStartedLoading:
		if ev.FrameID == w.frameID {
			w.start()
		}
	case *page.EventFrameNavigated:
		if ev.Frame != nil && ev.Frame.ID == w.frameID {
			w.start()
			w.settle()
		}
	case *page.EventNavigatedWithinDocument:
		if ev.FrameID == w.frameID {
			w.start()
			w.settle()
		}
	case *page.EventFrameStoppedLoading:
		// A cancelled navigation (204, download) stops loading without a commit.
		if ev.FrameID == w.frameID {
			w.start()
			w.settle()
		}
	}
}

func (w *navigationWatch) start()  { w.startOnce.Do(func() { close(w.started) }) }
func (w *navigationWatch) settle() { w.settleOnce.Do(func() { close(w.settled) }) }
func (w *navigationWatch) stop()   { w.cancel() }

// awaitStart reports whether a navigation began within grace.
func (w *navigationWatch) awaitStart(ctx context.Context, grace time.Duration) (bool, error) {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-w.started:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// awaitSettled blocks until the navigation committed or was abandoned.
func (w *navigationWatch) awaitSettled(ctx context.Context) error {
	select {
	case <-w.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// setPending hands a started navigation to the next WaitForLoad.
func (d *Driver) setPending(w *navigationWatch) {
	d.navMu.Lock()
	prev := d.pending
	d.pending = w
	d.navMu.Unlock()
	if prev != nil {
		prev.stop()
	}
}

func (d *Driver) takePending() *navigationWatch {
	d.navMu.Lock()
	defer d.navMu.Unlock()
	w := d.pending
	d.pending = nil
	return w
}
