// Package session owns one live browser driver and serializes every operation
// against it. Locators produced from a snapshot are resolved here against the
// page as it is now, never as it was when the snapshot was taken.
package session

import (
	"context"

	"github.com/xkilldash9x/souper/internal/locator"
)

// ElementRef is a driver-specific reference to a live element. It is only
// meaningful to the driver that returned it and only until the next action.
type ElementRef any

// Driver is the capability a browser backend provides. Implementations need
// not be safe for concurrent use; Session never calls them concurrently.
//
// Element actions should report browsererr.ErrStaleElement when the element
// has left the document and browsererr.ErrInteraction when it exists but
// cannot take the action. Unclassified errors are treated as interaction
// failures.
type Driver interface {
	// Navigate starts loading url. It may return before the page has loaded.
	Navigate(ctx context.Context, url string) error
	// WaitForLoad blocks until the current page reports it has loaded or ctx
	// expires.
	WaitForLoad(ctx context.Context) error

	CurrentURL(ctx context.Context) (string, error)
	// CurrentHTML returns the serialized live DOM without side effects.
	CurrentHTML(ctx context.Context) (string, error)

	// Resolve finds the element loc describes in the current DOM. found is
	// false, with a nil error, when nothing matches.
	Resolve(ctx context.Context, loc locator.Locator) (ref ElementRef, found bool, err error)

	Click(ctx context.Context, ref ElementRef) error
	SendKeys(ctx context.Context, ref ElementRef, text string) error
	// Submit submits the form owning ref. Waiting for the resulting page is
	// the caller's job.
	Submit(ctx context.Context, ref ElementRef) error
	Text(ctx context.Context, ref ElementRef) (string, error)
	Attribute(ctx context.Context, ref ElementRef, name string) (value string, ok bool, err error)

	Screenshot(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}
