package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Accepts(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.Accepts(5, "Great fit, fast shipping"))
	assert.True(t, p.Accepts(4, "Nice fabric."))
	assert.False(t, p.Accepts(3, "Okay I guess, runs small"))
	assert.False(t, p.Accepts(5, "   "))
	assert.False(t, p.Accepts(5, "good"))
	assert.False(t, p.Accepts(6, "Impossible rating here"))
}

func TestPolicy_Full(t *testing.T) {
	p := Policy{MaxPerProduct: 2}
	assert.False(t, p.Full(1))
	assert.True(t, p.Full(2))

	p.MaxPerProduct = 0
	assert.False(t, p.Full(1000))
}
