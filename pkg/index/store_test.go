package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStore_PublishSwapsActive(t *testing.T) {
	store := NewStore(zap.NewNop())
	assert.Nil(t, store.Acquire())

	v1 := newVersion("v1", 2, []Entry{{Identifier: "a", Vector: v(1, 0)}})
	store.Publish(v1)

	got := store.Acquire()
	require.NotNil(t, got)
	assert.Equal(t, v1.ID(), got.ID())
	store.Release(got)
}

func TestStore_SupersededVersionRetainedWhileHeld(t *testing.T) {
	store := NewStore(zap.NewNop())

	v1 := newVersion("v1", 2, []Entry{{Identifier: "a", Vector: v(1, 0)}})
	store.Publish(v1)

	// A reader pins v1, then v2 is published underneath it.
	held := store.Acquire()
	require.Equal(t, v1.ID(), held.ID())

	v2 := newVersion("v2", 2, []Entry{{Identifier: "b", Vector: v(0, 1)}})
	store.Publish(v2)

	// New readers see v2; the held v1 stays usable.
	fresh := store.Acquire()
	assert.Equal(t, v2.ID(), fresh.ID())
	assert.Equal(t, 2, store.RetainedCount())
	assert.Len(t, held.Search(v(1, 0), 1), 1)

	// Last release of the superseded version drops it.
	store.Release(held)
	assert.Equal(t, 1, store.RetainedCount())

	store.Release(fresh)
	assert.Equal(t, 1, store.RetainedCount())
}

func TestStore_SupersededVersionDroppedWhenUnheld(t *testing.T) {
	store := NewStore(zap.NewNop())

	v1 := newVersion("v1", 2, nil)
	store.Publish(v1)
	v2 := newVersion("v2", 2, nil)
	store.Publish(v2)

	assert.Equal(t, 1, store.RetainedCount())
	assert.Equal(t, v2.ID(), store.Active().ID())
}
