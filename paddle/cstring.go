package paddle

import "unsafe"

// CstringToGo converts a C null-terminated string pointer to a Go string.
// The pointer must point to a valid null-terminated string in memory.
// Returns empty string if ptr is 0 (null) or points below the first page,
// which catches sentinel values the native library returns on misuse.
func CstringToGo(ptr uintptr) string {
	if ptr < 4096 {
		return ""
	}

	// Scan for the null terminator through a large but bounded slice.
	// The cap avoids checkptr issues when scanning C-allocated memory:
	// tensor and operator names coming back from the runtime are tiny,
	// so anything past 1MB indicates memory corruption.
	const maxStringLen = 1 << 20
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), maxStringLen)

	var length int
	for i := 0; i < maxStringLen; i++ {
		if bytes[i] == 0 {
			length = i
			break
		}
	}

	return string(bytes[:length])
}

// GoToCstring converts a Go string to a null-terminated byte slice suitable for passing to C functions.
// Returns the byte slice (which must be kept alive by the caller to prevent GC) and a uintptr to its first byte.
//
// IMPORTANT: The caller MUST keep the returned []byte alive for as long as the C function might access it.
// Example usage:
//
//	nameBytes, namePtr := GoToCstring("softmax_0.tmp_0")
//	setTensorNameFunc(handle, namePtr) // nameBytes must stay in scope here
func GoToCstring(s string) ([]byte, uintptr) {
	b := append([]byte(s), 0)
	return b, uintptr(unsafe.Pointer(&b[0]))
}
