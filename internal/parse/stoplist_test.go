package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopList_FiltersShortNames(t *testing.T) {
	c := DefaultStopListConfig()
	assert.True(t, c.IsFiltered("a"))
	assert.False(t, c.IsFiltered("ab"))
}

func TestStopList_FiltersAmbientBuiltins(t *testing.T) {
	c := DefaultStopListConfig()
	assert.True(t, c.IsFiltered("describe"))
	assert.True(t, c.IsFiltered("console"))
	assert.False(t, c.IsFiltered("computeTotal"))
}

func TestStopList_ExtraNames(t *testing.T) {
	c := DefaultStopListConfig()
	c.Extra = map[string]bool{"myLocalHelper": true}
	assert.True(t, c.IsFiltered("myLocalHelper"))
}
