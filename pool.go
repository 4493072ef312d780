package titans

import (
	"sync"
)

var iterPool = make(map[int]map[int]*sync.Pool)

func borrowIterator(rows, cols int) [][]float32 {
	if d, ok := iterPool[rows]; ok {
		if d2, ok := d[cols]; ok {
			return d2.Get().([][]float32)
		}
	}
	retVal := make([][]float32, rows)
	for i := range retVal {
		retVal[i] = make([]float32, cols)
	}
	return retVal
}

// ReturnIterator returns an iterator to the pool for reuse.
func ReturnIterator(rows, cols int, it [][]float32) {
	if d, ok := iterPool[rows]; ok {
		if _, ok := d[cols]; ok {
			iterPool[rows][cols].Put(it)
		} else {
			iterPool[rows][cols] = &sync.Pool{
				New: func() interface{} {
					retVal := make([][]float32, rows)
					for i := range retVal {
						retVal[i] = make([]float32, cols)
					}
					return retVal
				},
			}
			iterPool[rows][cols].Put(it)
		}
	} else {
		iterPool[rows] = make(map[int]*sync.Pool)
		iterPool[rows][cols] = &sync.Pool{
			New: func() interface{} {
				retVal := make([][]float32, rows)
				for i := range retVal {
					retVal[i] = make([]float32, cols)
				}
				return retVal
			},
		}
		iterPool[rows][cols].Put(it)
	}
}
