package cdp

import (
	"context"
	"errors"
	"strings"

	"github.com/xkilldash9x/souper/internal/browsererr"
)

// CDP reports node trouble only through message text, so classification is
// by substring. Lower-case.
var (
	staleMarkers = []string{
		"no node with given id",
		"does not belong to the document",
		"could not find node with given id",
		"no node found for given backend id",
		"node is detached",
		"cannot find context with specified id",
		"cannot find object with id",
	}
	interactionMarkers = []string{
		"could not compute box model",
		"could not compute content quads",
		"node is not visible",
		"node is not an element",
		"node is either not visible or not an htmlelement",
		"element is not focusable",
	}
)

// classify maps a raw CDP failure onto the browsererr taxonomy. Context
// errors and already classified errors pass through untouched.
func classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	if browsererr.KindOf(err) != "" || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, m := range staleMarkers {
		if strings.Contains(msg, m) {
			return browsererr.New(browsererr.ErrStaleElement, op, target, err)
		}
	}
	for _, m := range interactionMarkers {
		if strings.Contains(msg, m) {
			return browsererr.New(browsererr.ErrInteraction, op, target, err)
		}
	}
	return err
}
