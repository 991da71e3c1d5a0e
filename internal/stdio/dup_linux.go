package stdio

import "golang.org/x/sys/unix"

// linux/arm64 has no dup2; dup3 is available everywhere.
func dup(oldfd, newfd int) error {
	return unix.Dup3(oldfd, newfd, 0)
}
