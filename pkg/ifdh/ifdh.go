// Package ifdh wraps the ifdh data handling command line tool with
// authentication checking, timeouts and other protections.
package ifdh

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LArSoft/larbatch/pkg/auth"
	"github.com/LArSoft/larbatch/pkg/util/log"
)

// Per-command timeouts. Copies can legitimately take a very long
// time, so they get no deadline; directory operations get short ones.
const (
	lsTimeout     = 600 * time.Second
	llTimeout     = 60 * time.Second
	mkdirTimeout  = 60 * time.Second
	mkdirPTimeout = 600 * time.Second
	rmTimeout     = 60 * time.Second
	posixTimeout  = 600 * time.Second
)

// ensureToken is swappable in tests.
var ensureToken = auth.TestToken

// Cp copies a file using "ifdh cp". There is no deadline; large
// transfers run as long as they need to.
func Cp(ctx context.Context, source, destination string) error {
	if err := ensureToken(); err != nil {
		return err
	}
	_, _, err := runCmd(ctx, 0, "ifdh", "cp", source, destination)
	return err
}

// Ls lists a path using "ifdh ls" and returns the output lines.
func Ls(ctx context.Context, path string, depth int) ([]string, error) {
	if err := ensureToken(); err != nil {
		return nil, err
	}
	stdout, _, err := runCmd(ctx, lsTimeout, "ifdh", "ls", path, strconv.Itoa(depth))
	if err != nil {
		return nil, err
	}
	return splitLines(stdout), nil
}

// Ll does a long listing using "ifdh ll" and returns the output lines.
func Ll(ctx context.Context, path string, depth int) ([]string, error) {
	if err := ensureToken(); err != nil {
		return nil, err
	}
	stdout, _, err := runCmd(ctx, llTimeout, "ifdh", "ll", path, strconv.Itoa(depth))
	if err != nil {
		return nil, err
	}
	return splitLines(stdout), nil
}

// Mkdir makes a directory using "ifdh mkdir".
func Mkdir(ctx context.Context, path string) error {
	if err := ensureToken(); err != nil {
		return err
	}
	_, _, err := runCmd(ctx, mkdirTimeout, "ifdh", "mkdir", path)
	return err
}

// MkdirP makes a directory and any missing parents using
// "ifdh mkdir_p".
func MkdirP(ctx context.Context, path string) error {
	if err := ensureToken(); err != nil {
		return err
	}
	_, _, err := runCmd(ctx, mkdirPTimeout, "ifdh", "mkdir_p", path)
	return err
}

// Rmdir removes a directory using "ifdh rmdir".
func Rmdir(ctx context.Context, path string) error {
	if err := ensureToken(); err != nil {
		return err
	}
	_, _, err := runCmd(ctx, rmTimeout, "ifdh", "rmdir", path)
	return err
}

// Mv renames a file using "ifdh mv".
func Mv(ctx context.Context, src, dest string) error {
	if err := ensureToken(); err != nil {
		return err
	}
	_, _, err := runCmd(ctx, rmTimeout, "ifdh", "mv", src, dest)
	return err
}

// Rm deletes a file using "ifdh rm".
func Rm(ctx context.Context, path string) error {
	if err := ensureToken(); err != nil {
		return err
	}
	_, _, err := runCmd(ctx, rmTimeout, "ifdh", "rm", path)
	return err
}

// Chmod changes the mode of a path using "ifdh chmod". A chmod
// failure is reported as a warning rather than an error, since some
// storage backends reject mode changes that don't matter.
func Chmod(ctx context.Context, path string, mode os.FileMode) error {
	if err := ensureToken(); err != nil {
		return err
	}
	modeStr := fmt.Sprintf("%o", uint32(mode.Perm()))
	if _, _, err := runCmd(ctx, rmTimeout, "ifdh", "chmod", modeStr, path); err != nil {
		log.Warnf("ifdh chmod failed for path %s", path)
	}
	return nil
}

// PosixCp copies a file using plain "cp" with a timeout, for
// filesystems where a hung nfs mount would otherwise block forever.
func PosixCp(ctx context.Context, source, destination string) error {
	_, _, err := runCmd(ctx, posixTimeout, "cp", source, destination)
	return err
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
