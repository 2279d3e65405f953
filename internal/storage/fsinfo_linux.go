//go:build linux

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

// statPath reads inode and birth time through statx. Filesystems that do not
// record a birth time leave uploadTime zero.
func statPath(abs string) (fileStat, error) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, abs, unix.AT_SYMLINK_NOFOLLOW,
		unix.STATX_BASIC_STATS|unix.STATX_BTIME, &stx)
	if err != nil {
		return fileStat{}, &os.PathError{Op: "statx", Path: abs, Err: err}
	}

	mode := uint32(stx.Mode) & unix.S_IFMT
	st := fileStat{
		inode:     stx.Ino,
		isDir:     mode == unix.S_IFDIR,
		isRegular: mode == unix.S_IFREG,
		size:      int64(stx.Size),
		modTime:   time.Unix(stx.Mtime.Sec, int64(stx.Mtime.Nsec)),
	}
	if stx.Mask&unix.STATX_BTIME != 0 && stx.Btime.Sec != 0 {
		st.uploadTime = time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
	}

	return st, nil
}

func writable(abs string) bool {
	return unix.Access(abs, unix.W_OK) == nil
}

// checkLock reports ErrLocked-worthy contention when another open file
// description holds an exclusive flock on abs.
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

// renameNoReplace moves src to dst and fails with EEXIST instead of
// overwriting. Filesystems without RENAME_NOREPLACE fall back to a
// check-then-rename.
func renameNoReplace(src string, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOSYS) {
		return renameChecked(src, dst)
	}
	if err != nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: err}
	}
	return nil
}

func renameChecked(src string, dst string) error {
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
