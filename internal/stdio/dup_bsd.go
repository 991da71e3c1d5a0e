//go:build darwin || freebsd

package stdio

import "golang.org/x/sys/unix"

func dup(oldfd, newfd int) error {
	return unix.Dup2(oldfd, newfd)
}
