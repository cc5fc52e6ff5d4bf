package providers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

func TestRateLimitErrorString(t *testing.T) {
	err := &RateLimitError{Provider: "abc_fitness", StatusCode: 429, Message: "slow down"}
	assert.Equal(t, "abc_fitness: slow down (status=429)", err.Error())

	rl, ok := AsRateLimitError(err)
	require.True(t, ok)
	assert.Same(t, err, rl)

	assert.Equal(t, "p: provider rate limited", (&RateLimitError{Provider: "p"}).Error())
}

func TestClassifyErrorWrapsTooManyRequests(t *testing.T) {
	statusErr := &retry.StatusError{URL: "http://vendor", StatusCode: http.StatusTooManyRequests, Body: "quota"}
	err := ClassifyError("abc_fitness", statusErr)

	rl, ok := AsRateLimitError(err)
	require.True(t, ok)
	assert.Equal(t, "quota", rl.Message)
	assert.ErrorIs(t, err, statusErr)
}

func TestClassifyErrorPassesOtherErrorsThrough(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, ClassifyError("p", plain))

	notFound := &retry.StatusError{StatusCode: http.StatusNotFound}
	assert.Equal(t, error(notFound), ClassifyError("p", notFound))
}
