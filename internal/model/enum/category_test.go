package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" Bazaar ")
	assert.True(t, ok)
	assert.Equal(t, CategoryBazaar, c)

	c, ok = ParseCategory("auctions")
	assert.True(t, ok)
	assert.Equal(t, CategoryAuction, c)

	_, ok = ParseCategory("depth")
	assert.False(t, ok)
}

func TestCategoryIsAvailable(t *testing.T) {
	assert.False(t, _category_beg.IsAvailable())
	assert.False(t, _category_end.IsAvailable())
	for _, c := range Categories() {
		assert.True(t, c.IsAvailable(), c.String())
	}
	assert.Len(t, Categories(), 2)
}
