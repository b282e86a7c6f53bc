package complist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/rohc/internal/core"
)

func testItem(kind core.ExtHeaderKind, fill byte) *Item {
	data := make([]byte, 8)
	data[0] = byte(kind)
	for i := 2; i < len(data); i++ {
		data[i] = fill
	}
	return &Item{Kind: kind, Data: data}
}

func items(l *List) []*Item {
	var out []*Item
	for _, e := range l.Elements() {
		out = append(out, e.Item)
	}
	return out
}

func reversed(l *List) []*Item {
	var out []*Item
	for _, e := range l.Backward() {
		out = append(out, e.Item)
	}
	return out
}

func TestListScenario(t *testing.T) {
	l := NewList()
	a := testItem(core.ExtRouting, 0xA)
	b := testItem(core.ExtHopByHop, 0xB)

	l.InsertTail(a, 3)
	l.InsertHead(b, 1)
	assert.Equal(t, []*Item{b, a}, items(l))

	pos, ok := l.PositionOf(a)
	require.True(t, ok)
	assert.Equal(t, 1, pos)

	l.Remove(b)
	assert.Equal(t, []*Item{a}, items(l))
	assert.Equal(t, 1, l.Len())

	e, ok := l.ElementAt(0)
	require.True(t, ok)
	assert.Equal(t, 3, e.Index)
}

func TestZeroValueList(t *testing.T) {
	var l List
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Elements())
	assert.Empty(t, l.Backward())

	_, ok := l.ElementAt(0)
	assert.False(t, ok)

	item := testItem(core.ExtDestination, 1)
	require.NoError(t, l.InsertAt(item, 0, 0))
	assert.Equal(t, []*Item{item}, items(&l))
}

func TestInsertAt(t *testing.T) {
	l := NewList()
	x := testItem(core.ExtHopByHop, 1)
	y := testItem(core.ExtRouting, 2)
	z := testItem(core.ExtDestination, 3)
	w := testItem(core.ExtDestination, 4)

	require.NoError(t, l.InsertAt(x, 0, 0))
	require.NoError(t, l.InsertAt(z, 2, 1))
	require.NoError(t, l.InsertAt(y, 1, 1))
	require.NoError(t, l.InsertAt(w, 3, 3))
	assert.Equal(t, []*Item{x, y, z, w}, items(l))

	for want, it := range []*Item{x, y, z, w} {
		pos, ok := l.PositionOf(it)
		require.True(t, ok)
		assert.Equal(t, want, pos)
	}

	err := l.InsertAt(x, 0, 5)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	err = l.InsertAt(x, 0, -1)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	assert.Equal(t, 4, l.Len())
}

func TestPositionOfUsesIdentity(t *testing.T) {
	l := NewList()
	a := testItem(core.ExtHopByHop, 7)
	twin := testItem(core.ExtHopByHop, 7)
	l.InsertTail(a, 0)

	_, ok := l.PositionOf(twin)
	assert.False(t, ok)

	l.Remove(twin)
	assert.Equal(t, 1, l.Len(), "removing an absent item is a no-op")
}

func TestRemoveOnlyElement(t *testing.T) {
	l := NewList()
	a := testItem(core.ExtAuth, 1)
	l.InsertHead(a, 0)
	l.Remove(a)

	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Elements())
	assert.Empty(t, l.Backward())
	_, ok := l.ElementAt(0)
	assert.False(t, ok)
}

func TestTraversalIntegrity(t *testing.T) {
	l := NewList()
	var all []*Item
	for i := 0; i < 10; i++ {
		all = append(all, testItem(core.ExtDestination, byte(i)))
	}

	for i, it := range all {
		switch i % 3 {
		case 0:
			l.InsertTail(it, i)
		case 1:
			l.InsertHead(it, i)
		default:
			require.NoError(t, l.InsertAt(it, i, l.Len()/2))
		}
	}
	l.Remove(all[4])
	l.Remove(all[0])
	l.Remove(all[9])
	l.InsertTail(all[4], 4)

	fwd := items(l)
	back := reversed(l)
	require.Len(t, fwd, l.Len())
	require.Len(t, back, l.Len())

	seen := map[*Item]bool{}
	for i := range fwd {
		assert.False(t, seen[fwd[i]], "element visited twice")
		seen[fwd[i]] = true
		assert.Same(t, fwd[i], back[len(back)-1-i])
	}
}

func TestArenaReusesSlots(t *testing.T) {
	l := NewList()
	a := testItem(core.ExtHopByHop, 1)
	b := testItem(core.ExtRouting, 2)

	l.InsertTail(a, 0)
	l.InsertTail(b, 1)
	l.Remove(a)
	l.InsertHead(a, 0)

	assert.Len(t, l.elems, 2)
	assert.Equal(t, []*Item{a, b}, items(l))
}

func TestClearKeepsItems(t *testing.T) {
	l := NewList()
	a := testItem(core.ExtHopByHop, 1)
	l.InsertTail(a, 0)
	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.Equal(t, byte(1), a.Data[2])
	l.InsertTail(a, 0)
	assert.Equal(t, 1, l.Len())
}

func TestCloneAndEqual(t *testing.T) {
	l := NewList()
	l.GenID, l.HasGen = 9, true
	l.InsertTail(testItem(core.ExtHopByHop, 1), 0)
	l.InsertTail(testItem(core.ExtRouting, 2), 1)

	c := l.Clone()
	assert.True(t, l.Equal(c))
	assert.Equal(t, uint8(9), c.GenID)

	c.InsertTail(testItem(core.ExtDestination, 3), 2)
	assert.False(t, l.Equal(c))
	assert.Equal(t, 2, l.Len())

	same := NewList()
	same.InsertTail(testItem(core.ExtHopByHop, 1), 0)
	same.InsertTail(testItem(core.ExtRouting, 2), 1)
	assert.True(t, l.Equal(same), "equality compares content, not identity")

	moved := NewList()
	moved.InsertTail(testItem(core.ExtHopByHop, 1), 5)
	moved.InsertTail(testItem(core.ExtRouting, 2), 6)
	assert.False(t, l.Equal(moved), "equality compares indices")
	assert.Equal(t, 16, l.Size())
}
