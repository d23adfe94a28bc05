// SPDX-License-Identifier: MIT
/*
Package bitint holds the power-of-two helpers used for buffer sizing.

Recording buffers are preallocated to a power of two so that the
capacity grows in the same steps append would take, and stream buffer
sizes are validated as powers of two before they reach PortAudio.

Both functions are allocation free and safe to call from the audio
callback.

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved:

	size = 8:  bits.Len(7) = 3, 1 << 3 = 8
	size = 9:  bits.Len(8) = 4, 1 << 4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Sizes below 1
// return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of two
// has one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
