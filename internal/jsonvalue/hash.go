package jsonvalue

import (
	"github.com/mitchellh/hashstructure/v2"
)

// QuickHash hashes a Value's native form with hashstructure, which hashes
// Go maps order-independently. It is used as a fast pre-check before the
// diff engine falls back to a full Equal: a hash mismatch is taken to mean
// the values differ, and a match is confirmed with Equal, because
// hashstructure also gives some distinct values the same hash (a JSON null
// and the number 0 both hash as a zero integer).
func QuickHash(v Value) (uint64, error) {
	return hashstructure.Hash(v.Native(), hashstructure.FormatV2, nil)
}

// QuickEqual reports whether a and b hash identically. Callers that need
// certainty rather than a probabilistic fast path should use Equal.
func QuickEqual(a, b Value) bool {
	ha, errA := QuickHash(a)
	hb, errB := QuickHash(b)
	if errA != nil || errB != nil {
		return Equal(a, b)
	}
	return ha == hb
}
