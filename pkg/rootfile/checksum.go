package rootfile

import (
	"hash/adler32"
	"io"
	"os"

	"github.com/pkg/errors"
)

const adler32Mod = 65521

// adler0FromAdler1 converts a standard adler32 checksum (initial
// value 1, as computed by dCache and hash/adler32) into the
// zero-seeded variant stored by enstore and SAM.
func adler0FromAdler1(crc uint32, filesize int64) uint32 {
	size := uint32(filesize % adler32Mod)
	s1 := crc & 0xffff
	s2 := (crc >> 16) & 0xffff
	s1 = (s1 + adler32Mod - 1) % adler32Mod
	s2 = (s2 + adler32Mod - size) % adler32Mod
	return s2<<16 + s1
}

// EnstoreChecksum computes the enstore-compatible adler32 checksum
// of a file.
func EnstoreChecksum(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "checksum")
	}
	defer f.Close()

	h := adler32.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, errors.Wrapf(err, "checksum %s", path)
	}
	return adler0FromAdler1(h.Sum32(), n), nil
}
