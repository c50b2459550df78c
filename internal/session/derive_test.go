package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDerive_H1_HouseNewlyConvenedToday mirrors scenario H1: a single
// CONVENE today with no ADJOURN.
func TestDerive_H1_HouseNewlyConvenedToday(t *testing.T) {
	convenedAt := mustEastern(t, 2024, 6, 12, 10, 0)
	events := []Event{
		{ID: "h1", Kind: CONVENE, Timestamp: convenedAt, Updated: convenedAt},
	}
	now := mustEastern(t, 2024, 6, 12, 11, 0)

	s := Derive(events, now)

	assert.Equal(t, True, s.Convened)
	require.NotNil(t, s.ConvenedAt)
	assert.True(t, s.ConvenedAt.Equal(convenedAt))
	assert.Nil(t, s.AdjournedAt)
	assert.Nil(t, s.ConvenesAt)
}

// TestDerive_H2_HouseAdjournedWithTomorrowScheduled mirrors H2.
func TestDerive_H2_HouseAdjournedWithTomorrowScheduled(t *testing.T) {
	convenedAt := mustEastern(t, 2024, 6, 12, 10, 0)
	adjournedAt := mustEastern(t, 2024, 6, 12, 16, 30)
	convenesAt := mustEastern(t, 2024, 6, 13, 12, 0)

	events := []Event{
		{ID: "c", Kind: CONVENE, Timestamp: convenedAt, Updated: convenedAt},
		{ID: "a", Kind: ADJOURN, Timestamp: adjournedAt, Updated: adjournedAt},
		{ID: "s", Kind: CONVENESCHEDULED, Timestamp: convenesAt, Updated: adjournedAt},
	}
	now := mustEastern(t, 2024, 6, 12, 18, 0)

	s := Derive(events, now)

	assert.Equal(t, False, s.Convened)
	require.NotNil(t, s.AdjournedAt)
	assert.True(t, s.AdjournedAt.Equal(adjournedAt))
	require.NotNil(t, s.ConvenesAt)
	assert.True(t, s.ConvenesAt.Equal(convenesAt))
}

// TestDerive_S1_ScheduleOnlyFutureConvening mirrors S1: only a
// CONVENE_SCHEDULED is known.
func TestDerive_S1_ScheduleOnlyFutureConvening(t *testing.T) {
	convenesAt := mustEastern(t, 2024, 6, 13, 14, 0)
	events := []Event{
		{Kind: CONVENESCHEDULED, Timestamp: convenesAt},
	}
	now := mustEastern(t, 2024, 6, 12, 9, 0)

	s := Derive(events, now)

	assert.Equal(t, False, s.Convened)
	assert.Nil(t, s.ConvenedAt)
	assert.Nil(t, s.AdjournedAt)
	require.NotNil(t, s.ConvenesAt)
	assert.True(t, s.ConvenesAt.Equal(convenesAt))
}

// TestDerive_S2_InSessionWithPriorDayContinuation mirrors S2: a CONVENE
// at 10:00, a RECESS_TIME, and a CONVENE_SCHEDULED for the next day.
func TestDerive_S2_InSessionWithPriorDayContinuation(t *testing.T) {
	convenedAt := mustEastern(t, 2024, 6, 12, 10, 0)
	recessAt := mustEastern(t, 2024, 6, 12, 18, 30)
	nextConvene := mustEastern(t, 2024, 6, 13, 10, 0)

	events := []Event{
		{Kind: CONVENE, Timestamp: convenedAt},
		{Kind: RECESSTIME, Timestamp: recessAt},
		{Kind: CONVENESCHEDULED, Timestamp: nextConvene},
	}
	now := mustEastern(t, 2024, 6, 12, 11, 0)

	s := Derive(events, now)

	assert.Equal(t, True, s.Convened)
}

// TestDerive_S3_SameInstantSupersession mirrors S3 at the log level:
// after merging CONVENE at the same instant as an existing
// CONVENE_SCHEDULED, exactly one event remains and the signals reflect
// CONVENE having won.
func TestDerive_S3_SameInstantSupersession(t *testing.T) {
	instant := mustEastern(t, 2024, 6, 12, 12, 0)
	l := NewLog([]Event{{Kind: CONVENESCHEDULED, Timestamp: instant}})
	now := mustEastern(t, 2024, 6, 12, 13, 0)

	l.Merge(now, []Event{{Kind: CONVENE, Timestamp: instant}})

	require.Len(t, l.Events(), 1)
	assert.Equal(t, CONVENE, l.Events()[0].Kind)

	s := Derive(l.Events(), now)
	assert.Equal(t, True, s.Convened)
	require.NotNil(t, s.ConvenedAt)
	assert.True(t, s.ConvenedAt.Equal(instant))
}

func TestDerive_NoEvents_Unknown(t *testing.T) {
	s := Derive(nil, time.Now())
	assert.Equal(t, Unknown, s.Convened)
	assert.Nil(t, s.ConvenedAt)
	assert.Nil(t, s.AdjournedAt)
	assert.Nil(t, s.ConvenesAt)
}

func TestDerive_MonotonicityAcrossAdjacentEvents(t *testing.T) {
	c1 := mustEastern(t, 2024, 6, 12, 10, 0)
	a1 := mustEastern(t, 2024, 6, 12, 16, 0)
	events := []Event{
		{Kind: CONVENE, Timestamp: c1},
		{Kind: ADJOURN, Timestamp: a1},
	}

	before := Derive(events, mustEastern(t, 2024, 6, 12, 9, 0))
	during := Derive(events, mustEastern(t, 2024, 6, 12, 12, 0))
	after := Derive(events, mustEastern(t, 2024, 6, 12, 18, 0))

	assert.Equal(t, Unknown, before.Convened)
	assert.Equal(t, True, during.Convened)
	assert.Equal(t, False, after.Convened)
}
