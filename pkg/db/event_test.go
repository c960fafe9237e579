package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindEventsReturnsNewestFirst(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	key := []byte("contract-x")
	require.NoError(t, tx.AddEvent(1, 0, key, []byte("first")))
	require.NoError(t, tx.AddEvent(2, 0, key, []byte("second")))
	require.NoError(t, tx.AddEvent(2, 1, key, []byte("third")))

	evts, err := tx.FindEvents(key)
	require.NoError(t, err)
	require.Len(t, evts, 3)
	assert.Equal(t, []byte("third"), evts[0])
	assert.Equal(t, []byte("second"), evts[1])
	assert.Equal(t, []byte("first"), evts[2])
}

func TestFindEventsIsolatesByKey(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.AddEvent(1, 0, []byte("a"), []byte("event-a")))
	require.NoError(t, tx.AddEvent(1, 0, []byte("b"), []byte("event-b")))

	evts, err := tx.FindEvents([]byte("a"))
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, []byte("event-a"), evts[0])
}

func TestDeleteEventsFromDropsBothIndexes(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	key := []byte("contract-x")
	require.NoError(t, tx.AddEvent(1, 0, key, []byte("keep")))
	require.NoError(t, tx.AddEvent(5, 0, key, []byte("drop-1")))
	require.NoError(t, tx.AddEvent(6, 0, key, []byte("drop-2")))

	require.NoError(t, tx.DeleteEventsFrom(5))

	evts, err := tx.FindEvents(key)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, []byte("keep"), evts[0])
}
