package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cakotreo/nsfminer/pkg/client"
)

func TestRegistryAddAndSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Add(New("pool-a.example:3333", "pool-a.example", 3333, client.FamilyStratum))
	r.Add(New("pool-b.example:3333", "pool-b.example", 3333, client.FamilyStratum))

	snaps := r.Snapshot()
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].Active)
	assert.False(t, snaps[1].Active)
	assert.Equal(t, "pool-a.example:3333", snaps[0].URI)
}

func TestRegistryRemoveRejectsActiveAndOutOfRange(t *testing.T) {
	r := NewRegistry()
	r.Add(New("a", "a", 1, client.FamilyStratum))
	r.Add(New("b", "b", 2, client.FamilyStratum))

	err := r.Remove(0)
	assert.ErrorContains(t, err, "can't remove active")

	err = r.Remove(5)
	assert.ErrorContains(t, err, "out-of-bounds")

	require.NoError(t, r.Remove(1))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRemoveDecrementsCursorPastIndex(t *testing.T) {
	r := NewRegistry()
	r.Add(New("a", "a", 1, client.FamilyStratum))
	r.Add(New("b", "b", 2, client.FamilyStratum))
	r.Add(New("c", "c", 3, client.FamilyStratum))
	r.SetCursor(2)

	require.NoError(t, r.Remove(0))
	cursor, _ := r.Cursor()
	assert.Equal(t, 1, cursor)
	assert.Equal(t, "c", r.Active().Host())
}

func TestRegistryIndexOfCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Add(New("Pool.Example:3333", "Pool.Example", 3333, client.FamilyStratum))
	assert.Equal(t, 0, r.IndexOf("pool.example:3333"))
	assert.Equal(t, -1, r.IndexOf("nowhere"))
}

func TestRegistryRemoveActiveAlwaysLegal(t *testing.T) {
	r := NewRegistry()
	r.Add(New("only", "only", 1, client.FamilyStratum))
	r.RemoveActive()
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Active())
}

func TestDescriptorUnrecoverableAndExit(t *testing.T) {
	d := New("a", "a", 1, client.FamilyStratum)
	assert.False(t, d.Unrecoverable())
	d.MarkUnrecoverable()
	assert.True(t, d.Unrecoverable())

	exit := New(ExitHost, ExitHost, 0, client.FamilySimulation)
	assert.True(t, exit.IsExit())
	assert.False(t, d.IsExit())
}
