// Package auth manages grid authentication state: kerberos tickets
// and bearer tokens obtained through the htgettoken/httokendecode
// tools. Results are sticky for the life of the process, matching
// the way interactive sessions authenticate once up front.
package auth

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/LArSoft/larbatch/pkg/gridenv"
	"github.com/LArSoft/larbatch/pkg/util/log"
)

const vaultServer = "htvaultprod.fnal.gov"

var (
	mu       sync.Mutex
	ticketOK bool
	tokenOK  bool
)

// TestTicket tests whether the user has a valid kerberos ticket and
// returns an error if not.
func TestTicket() error {
	mu.Lock()
	defer mu.Unlock()
	if ticketOK {
		return nil
	}
	cmd := exec.Command("klist", "-s")
	if err := cmd.Run(); err != nil {
		return errors.New("please get a kerberos ticket")
	}
	ticketOK = true
	return nil
}

// GetToken gets a bearer token by calling htgettoken.
func GetToken() error {
	mu.Lock()
	defer mu.Unlock()
	return getTokenLocked()
}

func getTokenLocked() error {
	tokenOK = false

	exp, err := gridenv.Experiment()
	if err != nil {
		return err
	}
	args := []string{"-a", vaultServer, "-i", exp}
	if role := strings.ToLower(gridenv.Role()); role == "production" {
		args = append(args, "-r", role)
	}

	cmd := exec.Command("htgettoken", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "htgettoken")
	}
	tokenOK = true
	return nil
}

// TestToken tests whether the user has a valid bearer token. If not,
// it tries to get a new one.
func TestToken() error {
	mu.Lock()
	defer mu.Unlock()
	if tokenOK {
		return nil
	}

	// Try running httokendecode, which succeeds only when a
	// decodable token is already in place.
	if err := exec.Command("httokendecode").Run(); err == nil {
		tokenOK = true
		return nil
	}
	return getTokenLocked()
}

// UseTokenAuth expresses a preference for token authentication.
// It does the following:
//
//  1. Unsets environment variable BEARER_TOKEN, if set.
//  2. Sets or overrides environment variable BEARER_TOKEN_FILE to
//     point to a unique-ish file path. If a file already exists at
//     this path, it is deleted.
func UseTokenAuth(tool string) error {
	os.Unsetenv("BEARER_TOKEN")

	tmpdir := os.Getenv("TMPDIR")
	if tmpdir == "" {
		tmpdir = "/tmp"
	}
	name := fmt.Sprintf("bt_%s_%d_%d", tool, os.Getuid(), os.Getpid())
	path := filepath.Join(tmpdir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove stale token file %s", path)
	}
	log.Debugf("bearer token file = %s", path)
	return os.Setenv("BEARER_TOKEN_FILE", path)
}

// BearerToken returns the current bearer token for use in an
// Authorization header: $BEARER_TOKEN if set, otherwise the contents
// of $BEARER_TOKEN_FILE, otherwise the default per-uid token file.
func BearerToken() (string, error) {
	if tok := os.Getenv("BEARER_TOKEN"); tok != "" {
		return tok, nil
	}
	path := os.Getenv("BEARER_TOKEN_FILE")
	if path == "" {
		runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
		if runtimeDir == "" {
			runtimeDir = "/tmp"
		}
		path = filepath.Join(runtimeDir, fmt.Sprintf("bt_u%d", os.Getuid()))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read bearer token")
	}
	return strings.TrimSpace(string(data)), nil
}

// Reset forgets all sticky authentication state. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ticketOK = false
	tokenOK = false
}
