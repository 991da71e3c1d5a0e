package dynlib

import (
	"runtime"
	"unsafe"
)

// WithArgv builds a NUL-terminated C argument vector from args, pins it for
// the duration of fn and releases it when fn returns. argv[argc] is NULL.
func WithArgv(args []string, fn func(argc, argv uintptr)) {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	ptrs := make([]uintptr, 0, len(args)+1)
	for _, arg := range args {
		buf := make([]byte, len(arg)+1)
		copy(buf, arg)
		pinner.Pin(&buf[0])
		ptrs = append(ptrs, uintptr(unsafe.Pointer(&buf[0])))
	}
	ptrs = append(ptrs, 0)
	pinner.Pin(&ptrs[0])

	fn(uintptr(len(args)), uintptr(unsafe.Pointer(&ptrs[0])))
}

// WithBytes pins b for the duration of fn. An empty buffer is passed as a
// NULL pointer with zero length.
func WithBytes(b []byte, fn func(ptr, n uintptr)) {
	if len(b) == 0 {
		fn(0, 0)
		return
	}
	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(&b[0])
	fn(uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)))
}

// GoStrings copies a C argument vector into Go strings.
func GoStrings(argc, argv uintptr) []string {
	if argc == 0 || argv == 0 {
		return nil
	}
	ptrs := unsafe.Slice((*uintptr)(unsafe.Pointer(argv)), int(argc))
	out := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, goString(p))
	}
	return out
}

// GoBytes copies n bytes starting at ptr.
func GoBytes(ptr, n uintptr) []byte {
	if ptr == 0 || n == 0 {
		return nil
	}
	return append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(ptr)), int(n))...)
}

func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	start := (*byte)(unsafe.Pointer(p))
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(start), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(start, n))
}
