package poll

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInteractionState_Toggle(t *testing.T) {
	var st InteractionState

	assert.True(t, st.Toggle("plays:42"))
	assert.True(t, st.IsOpen("plays:42"))
	assert.False(t, st.Toggle("plays:42"))
	assert.False(t, st.IsOpen("plays:42"))
	assert.Empty(t, st.OpenKeys())
}

func TestInteractionState_OpenKeysSorted(t *testing.T) {
	var st InteractionState
	st.SetOpen("plays:9", true)
	st.SetOpen("plays:10", true)
	st.SetOpen("standings:1", true)
	st.SetOpen("standings:1", false)

	assert.Equal(t, []string{"plays:10", "plays:9"}, st.OpenKeys())
}

func TestInteractionState_CloneIsDeep(t *testing.T) {
	st := InteractionState{ActiveTab: "plays", ScrollOffset: 3}
	st.SetOpen("plays:1", true)

	c := st.Clone()
	c.SetOpen("plays:2", true)
	c.ActiveTab = "standings"

	assert.Equal(t, []string{"plays:1"}, st.OpenKeys())
	assert.Equal(t, "plays", st.ActiveTab)
	assert.Equal(t, []string{"plays:1", "plays:2"}, c.OpenKeys())
	assert.Equal(t, 3, c.ScrollOffset)
}
