package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, "en-IN", opts.Locale)
	assert.Empty(t, opts.ExecutablePath)
	assert.NotEmpty(t, opts.UserAgent)
}

func TestChallengeDetector(t *testing.T) {
	d := NewChallengeDetector()

	assert.True(t, d.IsChallenge("Just a moment..."))
	assert.True(t, d.IsChallenge("Attention Required! | Cloudflare"))
	assert.True(t, d.IsChallenge("ACCESS DENIED"))
	assert.False(t, d.IsChallenge("Search results for dinner set"))
	assert.False(t, d.IsChallenge(""))
}

func TestChallengeDetector_CustomTitles(t *testing.T) {
	d := NewChallengeDetector("Verifying you are human", "  ")

	assert.True(t, d.IsChallenge("verifying you are human. This may take a few seconds."))
	assert.False(t, d.IsChallenge("Just a moment..."))
}

func TestLauncher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLauncher(DefaultOptions(), nil)(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
