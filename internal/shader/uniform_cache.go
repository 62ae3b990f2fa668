package shader

import "bytes"

// uniformCache remembers the bytes last uploaded to each uniform location.
type uniformCache map[int32][]byte

// update stores data for loc and reports whether it differs from what was
// stored before. Callers skip the upload when it does not.
func (c uniformCache) update(loc int32, data []byte) bool {
	old, ok := c[loc]
	if ok && bytes.Equal(old, data) {
		return false
	}
	if ok && len(old) == len(data) {
		copy(old, data)
	} else {
		c[loc] = bytes.Clone(data)
	}
	return true
}
