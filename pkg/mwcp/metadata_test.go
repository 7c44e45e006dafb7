package mwcp_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/primmus/DC3-MWCP/pkg/mwcp"
	"github.com/primmus/DC3-MWCP/pkg/mwcp/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, disableDedup, disableDebug bool) *mwcp.Store {
	t.Helper()
	tax, err := mwcp.LoadTaxonomy()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return mwcp.NewStore(tax, encoding.NewDefaultHandler(), logger, disableDedup, disableDebug)
}

// TestStoreAddScalar covers the flat-list path: accept, dedup, and the
// outcome reported for each.
func TestStoreAddScalar(t *testing.T) {
	store := newTestStore(t, false, false)

	items := store.Add("mutex", "Global\\abc123")
	require.Len(t, items, 1)
	assert.Equal(t, mwcp.OutcomeAccepted, items[0].Outcome)
	assert.Equal(t, "Global\\abc123", items[0].Value)

	items = store.Add("mutex", "Global\\abc123")
	require.Len(t, items, 1)
	assert.Equal(t, mwcp.OutcomeDuplicate, items[0].Outcome, "Repeated value should be suppressed")

	assert.Equal(t, []string{"Global\\abc123"}, store.Strings("mutex"))
}

// TestStoreAddScalarList verifies a slice of values fans out into one
// item per element.
func TestStoreAddScalarList(t *testing.T) {
	store := newTestStore(t, false, false)

	items := store.Add("address", []string{"10.0.0.1", "10.0.0.2", "10.0.0.1"})
	require.Len(t, items, 3)
	assert.Equal(t, mwcp.OutcomeAccepted, items[0].Outcome)
	assert.Equal(t, mwcp.OutcomeAccepted, items[1].Outcome)
	assert.Equal(t, mwcp.OutcomeDuplicate, items[2].Outcome)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, store.Strings("address"))
}

// TestStoreUnknownKey verifies an undeclared key is dropped with a debug
// entry rather than an error.
func TestStoreUnknownKey(t *testing.T) {
	store := newTestStore(t, false, false)

	items := store.Add("bogus_field", "value")
	require.Len(t, items, 1)
	assert.Equal(t, mwcp.OutcomeDropped, items[0].Outcome)
	assert.Contains(t, store.Strings("debug"),
		"Error adding metadata because bogus_field is not an allowed key")
	assert.False(t, store.HasAny("bogus_field"))
}

// TestStoreEmptyValue verifies nil and empty values are skipped with a
// debug note.
func TestStoreEmptyValue(t *testing.T) {
	store := newTestStore(t, false, false)

	items := store.Add("mutex", nil)
	assert.Equal(t, mwcp.OutcomeDropped, items[0].Outcome)

	items = store.Add("mutex", "")
	assert.Equal(t, mwcp.OutcomeDropped, items[0].Outcome)

	debug := store.Strings("debug")
	assert.Len(t, debug, 2)
	assert.Contains(t, debug, "no values provided for mutex, skipping")
	assert.False(t, store.HasAny("mutex"))
}

// TestStoreTuple covers tuple storage, empty tuple rejection, and dedup
// by exact tuple equality.
func TestStoreTuple(t *testing.T) {
	store := newTestStore(t, false, false)

	items := store.Add("socketaddress", []string{"1.2.3.4", "443", "tcp"})
	require.Len(t, items, 1)
	assert.Equal(t, mwcp.OutcomeAccepted, items[0].Outcome)
	assert.Equal(t, []string{"1.2.3.4", "443", "tcp"}, items[0].Tuple)

	items = store.Add("socketaddress", []string{"1.2.3.4", "443", "tcp"})
	assert.Equal(t, mwcp.OutcomeDuplicate, items[0].Outcome)

	items = store.Add("socketaddress", []string{"1.2.3.4", "443", "udp"})
	assert.Equal(t, mwcp.OutcomeAccepted, items[0].Outcome, "Differing position should not dedup")

	items = store.Add("socketaddress", []string{"", ""})
	assert.Equal(t, mwcp.OutcomeDropped, items[0].Outcome, "All-empty tuple should be dropped")

	assert.Len(t, store.Tuples("socketaddress"), 2)
}

// TestStoreOtherDict verifies dictionary merge semantics: equal values
// dedup, differing values promote the entry to a list keeping both.
func TestStoreOtherDict(t *testing.T) {
	store := newTestStore(t, false, false)

	store.Add("other", map[string]string{"campaign": "alpha", "build": "7"})
	assert.Equal(t, map[string]any{"campaign": "alpha", "build": "7"}, store.Other())

	items := store.Add("other", map[string]string{"campaign": "alpha"})
	assert.Equal(t, mwcp.OutcomeDuplicate, items[0].Outcome)

	items = store.Add("other", map[string]string{"campaign": "beta"})
	assert.Equal(t, mwcp.OutcomeAccepted, items[0].Outcome)
	assert.Equal(t, []string{"alpha", "beta"}, store.Other()["campaign"],
		"Conflicting value should promote the entry, not overwrite it")

	items = store.Add("other", map[string]string{"campaign": "beta"})
	assert.Equal(t, mwcp.OutcomeDuplicate, items[0].Outcome,
		"Value already in the promoted list should dedup")

	store.Add("other", map[string]string{"campaign": "gamma"})
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, store.Other()["campaign"])
	assert.Equal(t, "7", store.Other()["build"], "Unrelated entries stay scalar")
}

// TestStoreOtherDictNonTextValues verifies non-text dictionary values are
// logged and dropped per entry while text entries in the same report land.
func TestStoreOtherDictNonTextValues(t *testing.T) {
	store := newTestStore(t, false, false)

	items := store.Add("other", map[string]any{
		"count":  42,
		"family": "loader",
		"raw":    []byte("bytes ok"),
	})
	require.Len(t, items, 3)

	assert.Equal(t, "bytes ok", store.Other()["raw"])
	assert.Equal(t, "loader", store.Other()["family"])
	assert.NotContains(t, store.Other(), "count")
	assert.Contains(t, store.Strings("debug"),
		"Could not add object of int to metadata under other using key count")

	var dropped int
	for _, it := range items {
		if it.Outcome == mwcp.OutcomeDropped {
			dropped++
		}
	}
	assert.Equal(t, 1, dropped)
}

// TestStoreDebugExemptFromDedup verifies repeated debug messages are all
// kept in order.
func TestStoreDebugExemptFromDedup(t *testing.T) {
	store := newTestStore(t, false, false)

	store.AddDebug("same message")
	store.AddDebug("same message")
	assert.Equal(t, []string{"same message", "same message"}, store.Strings("debug"))
}

// TestStoreDisableDebug verifies the debug channel can be silenced.
func TestStoreDisableDebug(t *testing.T) {
	store := newTestStore(t, false, true)

	store.AddDebug("dropped")
	store.Add("bogus_field", "value")
	assert.Empty(t, store.Strings("debug"))
}

// TestStoreDisableDedup verifies repeated values append when dedup is off.
func TestStoreDisableDedup(t *testing.T) {
	store := newTestStore(t, true, false)

	store.Add("mutex", "m")
	items := store.Add("mutex", "m")
	assert.Equal(t, mwcp.OutcomeAccepted, items[0].Outcome)
	assert.Equal(t, []string{"m", "m"}, store.Strings("mutex"))
}

// TestStoreByteValues verifies byte slices decode to text, including
// UTF-16 values carved straight out of samples.
func TestStoreByteValues(t *testing.T) {
	store := newTestStore(t, false, false)

	store.Add("mutex", []byte("raw-bytes"))
	assert.Equal(t, []string{"raw-bytes"}, store.Strings("mutex"))

	utf16 := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	store.Add("password", utf16)
	assert.Equal(t, []string{"hi"}, store.Strings("password"))
}

// TestStoreSnapshot verifies the snapshot is a deep copy carrying every
// populated field.
func TestStoreSnapshot(t *testing.T) {
	store := newTestStore(t, false, false)
	store.Add("mutex", "m1")
	store.Add("port", []string{"80", "tcp"})
	store.Add("other", map[string]string{"k": "v"})

	store.Add("other", map[string]string{"k": "v2"})

	snap := store.Snapshot()
	assert.Equal(t, []string{"m1"}, snap["mutex"])
	assert.Equal(t, [][]string{{"80", "tcp"}}, snap["port"])
	assert.Equal(t, map[string]any{"k": []string{"v", "v2"}}, snap["other"])

	snap["mutex"].([]string)[0] = "mutated"
	assert.Equal(t, []string{"m1"}, store.Strings("mutex"), "Snapshot mutation should not reach the store")

	snap["other"].(map[string]any)["k"].([]string)[0] = "mutated"
	assert.Equal(t, []string{"v", "v2"}, store.Other()["k"], "Promoted lists should deep-copy into the snapshot")
}

// TestStoreEmpty verifies the zero-report case.
func TestStoreEmpty(t *testing.T) {
	store := newTestStore(t, false, false)
	assert.True(t, store.Empty())
	assert.Empty(t, store.Snapshot())

	store.Add("mutex", "m")
	assert.False(t, store.Empty())
}
