// Package souper drives a real browser and queries its page the way an HTML
// parser would: by CSS selector, by id or by visible text. Every match comes
// back as a Handle that acts on the live element.
//
//	b, err := souper.Launch(ctx, souper.LaunchOptions{Headless: true}, logger)
//	if err != nil { ... }
//	defer b.Close(ctx)
//
//	if err := b.Goto(ctx, "https://www.zillow.com/homes/"); err != nil { ... }
//	box, err := b.FindElementByCSSSelector(ctx, "input[type=text]")
//	...
//	_ = box.SendKeys(ctx, "Seattle, WA")
//	_ = box.Submit(ctx)
//	rent, err := b.FindElementByText(ctx, "For rent")
//	...
//	_ = rent.Click(ctx)
//
// Queries always run against a fresh snapshot of the page; nothing is cached
// between calls. Handles re-resolve their element on every action.
package souper

import (
	"github.com/xkilldash9x/souper/internal/browsererr"
	"github.com/xkilldash9x/souper/internal/query"
)

// Query is one element query: CSS, id or text.
type Query = query.Query

// TextMatch selects exact or substring text matching.
type TextMatch = query.TextMatch

const (
	TextExact    = query.TextExact
	TextContains = query.TextContains
)

// Query constructors.
var (
	ByCSS         = query.ByCSS
	ByID          = query.ByID
	ByText        = query.ByText
	ByPartialText = query.ByPartialText
)

// Error is a classified failure. Match kinds with errors.Is.
type Error = browsererr.Error

// Error kinds.
var (
	ErrParse        = browsererr.ErrParse
	ErrNotFound     = browsererr.ErrNotFound
	ErrLocator      = browsererr.ErrLocator
	ErrStaleElement = browsererr.ErrStaleElement
	ErrInteraction  = browsererr.ErrInteraction
	ErrNavigation   = browsererr.ErrNavigation
	ErrInvalidQuery = browsererr.ErrInvalidQuery
	ErrClosed       = browsererr.ErrClosed
)
