//go:build unix && !linux

package storage

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

type fileStat struct {
	inode      uint64
	isDir      bool
	isRegular  bool
	size       int64
	modTime    time.Time
	uploadTime time.Time
}

func statPath(abs string) (fileStat, error) {
	var st unix.Stat_t
	if err := unix.Lstat(abs, &st); err != nil {
		return fileStat{}, &os.PathError{Op: "lstat", Path: abs, Err: err}
	}

	mode := uint32(st.Mode) & unix.S_IFMT
	mtime := st.Mtim
	return fileStat{
		inode:     uint64(st.Ino),
		isDir:     mode == unix.S_IFDIR,
		isRegular: mode == unix.S_IFREG,
		size:      st.Size,
		modTime:   time.Unix(int64(mtime.Sec), int64(mtime.Nsec)),
	}, nil
}

func writable(abs string) bool {
	return unix.Access(abs, unix.W_OK) == nil
}

func checkLock(abs string) error {
	file, err := os.Open(abs)
	if err != nil {
		return nil
	}
	defer file.Close()

	fd := int(file.Fd())
	if err := unix.Flock(fd, unix.LOCK_SH|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return err
		}
		return nil
	}
	_ = unix.Flock(fd, unix.LOCK_UN)

	return nil
}

func renameNoReplace(src string, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: unix.EEXIST}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("check destination: %w", err)
	}
	return os.Rename(src, dst)
}

func isLockErrno(err error) bool {
	return errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK)
}

func isExistErrno(err error) bool {
	return errors.Is(err, unix.EEXIST) || errors.Is(err, unix.ENOTEMPTY)
}
