package browsererr_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/souper/internal/browsererr"
)

func TestErrorMatchesKind(t *testing.T) {
	err := browsererr.New(browsererr.ErrStaleElement, "click", "/html[1]/body[1]/a[1]", nil)

	assert.True(t, errors.Is(err, browsererr.ErrStaleElement))
	assert.False(t, errors.Is(err, browsererr.ErrInteraction))
	assert.Equal(t, "click: stale element (/html[1]/body[1]/a[1])", err.Error())
}

func TestErrorSurvivesWrapping(t *testing.T) {
	cause := browsererr.New(browsererr.ErrNavigation, "goto", "https://example.com", context.DeadlineExceeded)
	wrapped := fmt.Errorf("script step 1: %w", cause)

	assert.True(t, errors.Is(wrapped, browsererr.ErrNavigation))
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded), "the cause must stay reachable")
	assert.Equal(t, browsererr.ErrNavigation, browsererr.KindOf(wrapped))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, browsererr.Kind(""), browsererr.KindOf(errors.New("plain")))
	assert.Equal(t, browsererr.ErrNotFound, browsererr.KindOf(browsererr.ErrNotFound))
	assert.Equal(t, browsererr.ErrParse, browsererr.KindOf(browsererr.Newf(browsererr.ErrParse, "parse", "", "bad input %d", 3)))
	assert.True(t, browsererr.Is(browsererr.New(browsererr.ErrClosed, "goto", "", nil), browsererr.ErrClosed))
}
