package gridenv

import (
	"os"

	"github.com/pkg/errors"
)

// ParseModeString parses the ten-character file mode string as
// returned by "ls -l" (and by "ifdh ll") and returns the equivalent
// file mode bit mask.
func ParseModeString(modeStr string) (os.FileMode, error) {
	if len(modeStr) != 10 {
		return 0, errors.Errorf("bad mode string %q", modeStr)
	}

	var mode os.FileMode

	// File type.
	switch modeStr[0] {
	case 'b':
		mode |= os.ModeDevice
	case 'c':
		mode |= os.ModeDevice | os.ModeCharDevice
	case 'd':
		mode |= os.ModeDir
	case 'l':
		mode |= os.ModeSymlink
	case 'p':
		mode |= os.ModeNamedPipe
	case 's':
		mode |= os.ModeSocket
	case '-':
		// Regular file.
	default:
		return 0, errors.Errorf("bad file type %q in mode string %q", modeStr[0], modeStr)
	}

	// User triad (includes setuid).
	if modeStr[1] == 'r' {
		mode |= 0400
	}
	if modeStr[2] == 'w' {
		mode |= 0200
	}
	switch modeStr[3] {
	case 'x':
		mode |= 0100
	case 's':
		mode |= os.ModeSetuid | 0100
	case 'S':
		mode |= os.ModeSetuid
	}

	// Group triad (includes setgid).
	if modeStr[4] == 'r' {
		mode |= 0040
	}
	if modeStr[5] == 'w' {
		mode |= 0020
	}
	switch modeStr[6] {
	case 'x':
		mode |= 0010
	case 's':
		mode |= os.ModeSetgid | 0010
	case 'S':
		mode |= os.ModeSetgid
	}

	// World triad (includes sticky bit).
	if modeStr[7] == 'r' {
		mode |= 0004
	}
	if modeStr[8] == 'w' {
		mode |= 0002
	}
	switch modeStr[9] {
	case 'x':
		mode |= 0001
	case 't':
		mode |= os.ModeSticky | 0001
	case 'T':
		mode |= os.ModeSticky
	}

	return mode, nil
}
