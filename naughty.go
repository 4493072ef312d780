package titans

import (
	"reflect"
	"unsafe"
)

// MakeIterator makes a rows×cols iterator over a flat image, each row
// aliasing the backing slice.
func MakeIterator(image []float32, rows, cols int) (retVal [][]float32) {
	retVal = borrowIterator(rows, cols)
	for i := range retVal {
		start := i * cols
		hdr := (*reflect.SliceHeader)(unsafe.Pointer(&retVal[i]))
		hdr.Data = uintptr(unsafe.Pointer(&image[start]))
		hdr.Len = cols
		hdr.Cap = cols
	}
	return
}
