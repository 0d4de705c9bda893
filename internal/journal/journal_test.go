package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTest(t *testing.T, maxEvents int) *Journal {
	t.Helper()

	j, err := New(Config{
		Path:      filepath.Join(t.TempDir(), "journal.db"),
		MaxEvents: maxEvents,
	})
	require.NoError(t, err)
	require.NotNil(t, j)

	t.Cleanup(func() {
		j.Close()
	})

	return j
}

func TestAppendAndRecent(t *testing.T) {
	j := setupTest(t, 0)

	events := []Event{
		{Kind: "host_started", Room: "study", Peer: "vito", Addr: "192.168.1.4:40123"},
		{Kind: "peer_joined", Room: "study", Peer: "anna", Addr: "192.168.1.7"},
		{Kind: "peer_left", Room: "study", Peer: "anna", Addr: "192.168.1.7"},
	}
	for _, ev := range events {
		require.NoError(t, j.Append(ev))
	}

	got, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, "peer_left", got[0].Kind)
	assert.Equal(t, "peer_joined", got[1].Kind)
	assert.Equal(t, "host_started", got[2].Kind)
	assert.Equal(t, "study", got[0].Room)
}

func TestRecentLimit(t *testing.T) {
	j := setupTest(t, 0)

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(Event{Kind: "peer_joined"}))
	}

	got, err := j.Recent(2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRecentOnEmptyJournal(t *testing.T) {
	j := setupTest(t, 0)

	got, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppendStampsTime(t *testing.T) {
	j := setupTest(t, 0)

	before := time.Now()
	require.NoError(t, j.Append(Event{Kind: "shutdown"}))

	got, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Time.Before(before))
}

func TestPruneKeepsNewest(t *testing.T) {
	j := setupTest(t, 3)

	kinds := []string{"a", "b", "c", "d", "e"}
	for _, k := range kinds {
		require.NoError(t, j.Append(Event{Kind: k}))
	}

	got, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].Kind)
	assert.Equal(t, "d", got[1].Kind)
	assert.Equal(t, "c", got[2].Kind)
}

func TestRecordNeverFails(t *testing.T) {
	j := setupTest(t, 0)

	j.Record("host_started", "study", "vito", "192.168.1.4:40123")
	j.Record("shutdown", "", "vito", "")

	got, err := j.Recent(10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := New(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, j.Append(Event{Kind: "host_started", Room: "study"}))
	require.NoError(t, j.Close())

	j2, err := New(Config{Path: path})
	require.NoError(t, err)
	defer j2.Close()

	got, err := j2.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "study", got[0].Room)
}
