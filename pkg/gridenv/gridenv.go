// Package gridenv resolves the batch environment this process runs in:
// which experiment it belongs to, which user and role it acts as, and
// where large temporary files may be staged.
package gridenv

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Experiment returns the current experiment name. The following
// places are tried, in order:
//
//  1. Environment variable $EXPERIMENT.
//  2. Environment variable $SAM_EXPERIMENT.
//  3. Hostname (up to "gpvm").
func Experiment() (string, error) {
	for _, ev := range []string{"EXPERIMENT", "SAM_EXPERIMENT"} {
		if exp := os.Getenv(ev); exp != "" {
			return exp, nil
		}
	}
	hostname, err := os.Hostname()
	if err == nil {
		if n := strings.Index(hostname, "gpvm"); n > 0 {
			return hostname[:n], nil
		}
	}
	return "", errors.New("unable to determine experiment")
}

// Role returns the VO role, normally "Analysis" or "Production".
// If environment variable $ROLE is defined, that wins. Otherwise make
// an educated guess based on the user name.
func Role() string {
	if role := os.Getenv("ROLE"); role != "" {
		return role
	}
	if exp, err := Experiment(); err == nil && loginName() == exp+"pro" {
		return "Production"
	}
	return "Analysis"
}

// User returns the authenticated user: the production user when the
// role is Production, the login user otherwise.
func User() string {
	if Role() == "Production" {
		if pro, err := ProUser(); err == nil {
			return pro
		}
	}
	return loginName()
}

// ProUser returns the production user name for the current experiment.
func ProUser() (string, error) {
	exp, err := Experiment()
	if err != nil {
		return "", err
	}
	return exp + "pro", nil
}

func loginName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

// ScratchDir returns the path of a scratch directory which can be
// used for creating large temporary files. The scratch directory
// should not be in dCache. The search order is:
//
//  1. Environment variable $TMPDIR.
//  2. Environment variable $SCRATCH.
//  3. Path /scratch/<experiment>/<user>.
//  4. Path /exp/<experiment>/data/users/<user>.
//
// An error is returned if the scratch directory doesn't exist or is
// not writeable.
func ScratchDir() (string, error) {
	scratch := ""
	if dir := os.Getenv("TMPDIR"); dir != "" {
		scratch = dir
	} else if dir := os.Getenv("SCRATCH"); dir != "" {
		scratch = dir
	} else {
		exp, err := Experiment()
		if err != nil {
			return "", err
		}
		scratch = filepath.Join("/scratch", exp, User())
		if !writableDir(scratch) {
			scratch = filepath.Join("/exp", exp, "data/users", User())
		}
	}
	if scratch == "" {
		return "", errors.New("no scratch directory specified")
	}
	if !writableDir(scratch) {
		return "", errors.Errorf("scratch directory %s does not exist or is not writeable", scratch)
	}
	return scratch, nil
}

func writableDir(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return false
	}
	// An effective-uid access check; good enough for choosing a
	// scratch area.
	f, err := os.CreateTemp(path, ".wtest")
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(f.Name())
	return true
}

// Mountpoint returns the mountpoint of a given path. Symbolic links
// and relative paths are resolved first.
func Mountpoint(path string) string {
	p, err := filepath.EvalSymlinks(path)
	if err == nil {
		path = p
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	for !isMount(path) {
		dir := filepath.Dir(path)
		if len(dir) >= len(path) {
			return dir
		}
		path = dir
	}
	return path
}

func isMount(path string) bool {
	parent := filepath.Dir(path)
	if parent == path {
		return true
	}
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return false
	}
	pfi, err := os.Stat(parent)
	if err != nil {
		return false
	}
	dev, ok := deviceOf(fi)
	pdev, pok := deviceOf(pfi)
	return ok && pok && dev != pdev
}

// fastIsDirSkip lists file suffixes that can never be directories in
// a batch work area; skipping them avoids i/o on dCache.
var fastIsDirSkip = []string{".list", ".root", ".txt", ".fcl", ".out", ".err", ".sh", ".stat"}

// FastIsDir is like a stat-based directory check, but faster by
// avoiding unnecessary i/o on paths that are obviously plain files.
func FastIsDir(path string) bool {
	for _, suffix := range fastIsDirSkip {
		if strings.HasSuffix(path, suffix) {
			return false
		}
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// DollarEscape escapes dollar signs in a string by prepending a
// backslash, leaving already-escaped dollars alone.
func DollarEscape(s string) string {
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '$' && (len(result) == 0 || result[len(result)-1] != '\\') {
			result = append(result, '\\')
		}
		result = append(result, c)
	}
	return string(result)
}
