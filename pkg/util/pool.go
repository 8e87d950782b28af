package util

import "runtime"

// PoolSize returns override when positive, else twice the CPU count
// clamped to [4, 32]. Parser pools and audit workers share this size so
// workers never wait on a parser.
func PoolSize(override int) int {
	if override > 0 {
		return override
	}
	n := runtime.NumCPU() * 2
	if n < 4 {
		n = 4
	}
	if n > 32 {
		n = 32
	}
	return n
}
