package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook(t *testing.T) {
	b := NewBook([]Appointment{{ID: "a"}, {ID: "b", Notes: "old"}, {ID: "c"}, {ID: "b", Notes: "new"}})
	require.Equal(t, 3, b.Len())

	got, ok := b.Get("b")
	require.True(t, ok)
	assert.Equal(t, "new", got.Notes)
	assert.Equal(t, []string{"a", "b", "c"}, ids(b.All()))

	b.Put(Appointment{ID: "d"})
	assert.True(t, b.Remove("a"))
	assert.False(t, b.Remove("a"))
	assert.Equal(t, []string{"b", "c", "d"}, ids(b.All()))

	got, ok = b.Get("d")
	require.True(t, ok)
	assert.Equal(t, "d", got.ID)
	assert.Equal(t, []string{"b", "d"}, ids(b.Without("c")))

	all := b.All()
	all[0].Notes = "mutated"
	got, _ = b.Get("b")
	assert.Equal(t, "new", got.Notes)
}
