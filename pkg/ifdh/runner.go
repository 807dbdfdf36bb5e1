package ifdh

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/LArSoft/larbatch/pkg/util/log"
)

// killDelay is how long a subprocess gets to exit after SIGTERM
// before it is killed outright.
const killDelay = 10 * time.Second

// CmdError is returned when a wrapped command exits nonzero.
type CmdError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CmdError) Error() string {
	return fmt.Sprintf("command %q failed with status %d: %s",
		strings.Join(e.Args, " "), e.ExitCode, strings.TrimSpace(e.Stderr))
}

// scrubbedEnv returns the process environment with X509_USER_CERT
// and X509_USER_KEY removed. They confuse ifdh, or rather the
// underlying tools. The original tools mutated the global
// environment and restored it afterwards; scrubbing only the child
// environment gives the same effect without the mutation.
func scrubbedEnv() []string {
	env := os.Environ()
	out := env[:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, "X509_USER_CERT=") || strings.HasPrefix(kv, "X509_USER_KEY=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// runCmd runs the command with a scrubbed environment and an optional
// timeout, capturing standard output and standard error. On nonzero
// exit it returns a *CmdError.
func runCmd(ctx context.Context, timeout time.Duration, name string, args ...string) (string, string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.Command(name, args...)
	cmd.Env = scrubbedEnv()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("Exec: %s %s", name, strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return "", "", errors.Wrapf(err, "start %s", name)
	}

	waitErr := waitOrStop(ctx, cmd, syscall.SIGTERM, killDelay)
	if waitErr != nil {
		if ctx.Err() != nil {
			return stdout.String(), stderr.String(),
				errors.Wrapf(ctx.Err(), "command %q timed out", name)
		}
		rc := -1
		if cmd.ProcessState != nil {
			rc = cmd.ProcessState.ExitCode()
		}
		return stdout.String(), stderr.String(), &CmdError{
			Args:     append([]string{name}, args...),
			ExitCode: rc,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
	}
	return stdout.String(), stderr.String(), nil
}

// waitOrStop waits for the already-started command by calling its
// Wait method. If the command does not return before ctx is done, it
// is sent the given interrupt signal, and killed outright once
// killDelay has elapsed without it exiting.
func waitOrStop(ctx context.Context, cmd *exec.Cmd, interrupt os.Signal, killDelay time.Duration) error {
	errc := make(chan error)
	go func() {
		select {
		case errc <- nil:
			return
		case <-ctx.Done():
		}

		log.Warnf("Terminating subprocess %s.", cmd.Path)
		err := cmd.Process.Signal(interrupt)
		if err == nil {
			err = ctx.Err() // report ctx.Err() as the reason we interrupted
		} else if err.Error() == "os: process already finished" {
			errc <- nil
			return
		}

		if killDelay > 0 {
			timer := time.NewTimer(killDelay)
			select {
			case errc <- err:
				timer.Stop()
				return
			case <-timer.C:
			}
			// Wait still hasn't returned; kill the process harder.
			_ = cmd.Process.Kill()
		}

		errc <- err
	}()

	waitErr := cmd.Wait()
	if interruptErr := <-errc; interruptErr != nil {
		return interruptErr
	}
	return waitErr
}
