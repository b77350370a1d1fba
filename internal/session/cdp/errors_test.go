package cdp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/souper/internal/browsererr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want browsererr.Kind
	}{
		{"nil", nil, ""},
		{"missing node", errors.New("No node with given id found (-32000)"), browsererr.ErrStaleElement},
		{"foreign node", errors.New("Node with given id does not belong to the document"), browsererr.ErrStaleElement},
		{"no box", errors.New("Could not compute box model. (-32000)"), browsererr.ErrInteraction},
		{"not visible", fmt.Errorf("wrapped: %w", errors.New("Node is either not visible or not an HTMLElement")), browsererr.ErrInteraction},
		{"already classified", browsererr.Newf(browsererr.ErrNotFound, "find", "", "x"), browsererr.ErrNotFound},
		{"unknown", errors.New("websocket: close 1006"), ""},
		{"deadline", context.DeadlineExceeded, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("click", "/html[1]/body[1]/button[1]", tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.want, browsererr.KindOf(got))
			assert.ErrorIs(t, got, tt.err, "the cause stays in the chain")
		})
	}
}
