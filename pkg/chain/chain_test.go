package chain

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChain_Add(t *testing.T) {
	tests := []struct {
		name     string
		items    []string
		expected []string
	}{
		{name: "empty", items: nil, expected: nil},
		{name: "single", items: []string{"a"}, expected: []string{"a"}},
		{name: "registration order kept", items: []string{"a", "b", "c"}, expected: []string{"a", "b", "c"}},
		{name: "duplicates kept", items: []string{"x", "x"}, expected: []string{"x", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Of(tt.items...)
			assert.Equal(t, tt.expected, c.Items())
			assert.Equal(t, len(tt.items), c.Len())
			assert.Equal(t, len(tt.items) == 0, c.IsEmpty())
		})
	}
}

func TestChain_AddIsNonDestructive(t *testing.T) {
	first := Empty[string]().Add("a")
	second := first.Add("b")

	assert.Equal(t, []string{"a"}, first.Items())
	assert.Equal(t, []string{"a", "b"}, second.Items())

	// Two unrelated appends to the same base never see each other.
	left := first.Add("left")
	right := first.Add("right")
	assert.Equal(t, []string{"a", "left"}, left.Items())
	assert.Equal(t, []string{"a", "right"}, right.Items())
	assert.Equal(t, []string{"a"}, first.Items())
}

func TestChain_ItemsReturnsCopy(t *testing.T) {
	c := Of(1, 2, 3)
	items := c.Items()
	items[0] = 42

	assert.Equal(t, []int{1, 2, 3}, c.Items())
}

func TestChain_All(t *testing.T) {
	c := Of("a", "b", "c")

	var seen []string
	for item := range c.All() {
		seen = append(seen, item)
	}
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	// Early exit stops iteration.
	seen = nil
	for item := range c.All() {
		seen = append(seen, item)
		if item == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestChain_Same(t *testing.T) {
	a := Of("a")
	copied := a
	assert.True(t, a.Same(copied))
	assert.False(t, a.Same(a.Add("b")))
	assert.True(t, Empty[int]().Same(Chain[int]{}))
}

func TestChain_ConcurrentReaders(t *testing.T) {
	base := Of(0, 1, 2, 3, 4)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			extended := base.Add(100 + i)
			assert.Equal(t, 6, extended.Len())
			assert.Equal(t, 100+i, extended.Items()[5])
			assert.Equal(t, []int{0, 1, 2, 3, 4}, base.Items())
		}(i)
	}
	wg.Wait()
}
