package rand

import (
	"crypto/rand"
	"math/big"
)

// Index returns a uniformly distributed random index in [0, n).
// It panics if n <= 0.
func Index(n int) int {
	if n <= 0 {
		panic("rand: Index called with non-positive n")
	}

	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("rand: failed to read from crypto source: " + err.Error())
	}
	return int(idx.Int64())
}

// Pick returns an element of items chosen uniformly at random.
// It panics if items is empty.
func Pick[T any](items []T) T {
	return items[Index(len(items))]
}
