package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nugget/chamberwatch/internal/clock"
	"github.com/nugget/chamberwatch/internal/session"
)

func TestBuild_ConvenedWithActivity(t *testing.T) {
	convenedAt := time.Date(2024, 6, 12, 10, 0, 0, 0, clock.Eastern)
	signals := session.Signals{Convened: session.True, ConvenedAt: &convenedAt}
	activity := session.Event{Kind: session.CONVENE, Timestamp: convenedAt, Description: "The House convened."}

	d, err := Build("house", signals, activity, true, convenedAt)
	require.NoError(t, err)

	assert.Contains(t, d.Markdown, "# House")
	assert.Contains(t, d.Markdown, "**Convened:** true")
	assert.Contains(t, d.Markdown, "CONVENE")
	assert.Contains(t, d.HTML, "<h1>House</h1>")
}

func TestBuild_NoActivity(t *testing.T) {
	d, err := Build("senate", session.Signals{}, session.Event{}, false, time.Now())
	require.NoError(t, err)
	assert.Contains(t, d.Markdown, "No recorded activity")
}

func TestBuildActivity_DelegatesToSearch(t *testing.T) {
	now := time.Date(2024, 6, 12, 11, 0, 0, 0, clock.Eastern)
	ts := time.Date(2024, 6, 12, 10, 0, 0, 0, clock.Eastern)
	events := []session.Event{{Kind: session.CONVENE, Timestamp: ts}}

	d, err := BuildActivity("house", session.Signals{}, events, now, now)
	require.NoError(t, err)
	assert.Contains(t, d.Markdown, "CONVENE")
}
