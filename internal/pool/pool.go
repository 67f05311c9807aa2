// Package pool recycles the map/slice allocations the renderer churns
// through while building JSON-shaped entity projections.
package pool

import "sync"

// MapPool pools map[string]interface{} used as rendered entity bodies.
var MapPool = sync.Pool{
	New: func() interface{} {
		return make(map[string]interface{}, 8)
	},
}

// SlicePool pools []interface{} used as rendered array attributes.
var SlicePool = sync.Pool{
	New: func() interface{} {
		return make([]interface{}, 0, 16)
	},
}

// GetMap gets a cleared map from the pool.
func GetMap() map[string]interface{} {
	m := MapPool.Get().(map[string]interface{})
	for k := range m {
		delete(m, k)
	}
	return m
}

// PutMap returns a map to the pool.
func PutMap(m map[string]interface{}) {
	MapPool.Put(m)
}

// GetSlice gets a zero-length slice from the pool.
func GetSlice() []interface{} {
	s := SlicePool.Get().([]interface{})
	return s[:0]
}

// PutSlice returns a slice to the pool.
func PutSlice(s []interface{}) {
	SlicePool.Put(s)
}
