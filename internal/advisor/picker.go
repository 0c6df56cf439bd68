package advisor

import (
	"math/rand"
	"time"
)

// Picker selects an index in [0, n).
type Picker interface {
	Pick(n int) int
}

// RandPicker picks uniformly from a seeded source.
type RandPicker struct {
	rnd *rand.Rand
}

// NewRandPicker returns a picker seeded with seed.
func NewRandPicker(seed int64) *RandPicker {
	return &RandPicker{rnd: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededPicker returns a picker seeded with the current time.
func NewTimeSeededPicker() *RandPicker {
	return NewRandPicker(time.Now().UnixNano())
}

// Pick implements Picker.
func (p *RandPicker) Pick(n int) int {
	if n <= 0 {
		return 0
	}
	return p.rnd.Intn(n)
}

// IndexPicker always returns the same index, wrapped into range.
type IndexPicker int

// Pick implements Picker.
func (p IndexPicker) Pick(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(p) % n
	if i < 0 {
		i += n
	}
	return i
}
