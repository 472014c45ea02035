// Package chain provides a persistent, append-only ordered list used to
// accumulate policies during setup.
//
// A Chain is a value. Add never modifies the receiver; it returns a new
// Chain that shares every existing node with the original. This makes
// chains safe to hand out to concurrent readers without locking, and cheap
// to capture in snapshots: capturing a chain is copying one pointer.
//
// Usage:
//
//	headers := chain.Empty[string]()
//	v1 := headers.Add("a")
//	v2 := v1.Add("b")
//	v1.Items() // [a]
//	v2.Items() // [a b]
package chain

import "iter"

// node is one link of the chain. Nodes point towards the first
// registered item so that appending is a single allocation.
type node[T any] struct {
	value T
	prev  *node[T]
	len   int
}

// Chain is an immutable ordered sequence of T. The zero value is the
// empty chain.
type Chain[T any] struct {
	last *node[T]
}

// Empty returns the empty chain for T.
func Empty[T any]() Chain[T] {
	return Chain[T]{}
}

// Of builds a chain holding items in the given order.
func Of[T any](items ...T) Chain[T] {
	c := Empty[T]()
	for _, item := range items {
		c = c.Add(item)
	}
	return c
}

// Add returns a chain whose sequence is c followed by item.
// c itself is left untouched.
func (c Chain[T]) Add(item T) Chain[T] {
	return Chain[T]{last: &node[T]{value: item, prev: c.last, len: c.Len() + 1}}
}

// Len returns the number of items in the chain.
func (c Chain[T]) Len() int {
	if c.last == nil {
		return 0
	}
	return c.last.len
}

// IsEmpty reports whether the chain holds no items.
func (c Chain[T]) IsEmpty() bool {
	return c.last == nil
}

// Items returns the items in registration order. The returned slice is
// freshly allocated and may be modified by the caller.
func (c Chain[T]) Items() []T {
	n := c.Len()
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	for cur := c.last; cur != nil; cur = cur.prev {
		n--
		out[n] = cur.value
	}
	return out
}

// All iterates the items in registration order.
func (c Chain[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range c.Items() {
			if !yield(item) {
				return
			}
		}
	}
}

// Same reports whether c and other are the identical chain value,
// which holds when neither has been appended to since one was copied
// from the other.
func (c Chain[T]) Same(other Chain[T]) bool {
	return c.last == other.last
}
