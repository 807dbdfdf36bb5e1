package rootfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/LArSoft/larbatch/pkg/util/log"
)

// Checksum is the crc block of a SAM metadata record.
type Checksum struct {
	Value string `json:"crc_value"`
	Type  string `json:"crc_type"`
}

// FileMetadata is the external (file-level) part of a SAM metadata
// record. Numeric fields are strings, matching what SAM expects.
type FileMetadata struct {
	FileName string      `json:"file_name"`
	FileSize string      `json:"file_size"`
	CRC      Checksum    `json:"crc"`
	Events   string      `json:"events,omitempty"`
	Subruns  [][2]uint64 `json:"subruns,omitempty"`
}

// Metadata extracts SAM external metadata from a file: name, size,
// and enstore checksum always; event count and run/subrun pairs when
// the file is a readable ROOT file.
func Metadata(path string) (*FileMetadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "metadata %s", path)
	}
	crc, err := EnstoreChecksum(path)
	if err != nil {
		return nil, err
	}
	md := &FileMetadata{
		FileName: filepath.Base(path),
		FileSize: strconv.FormatInt(fi.Size(), 10),
		CRC: Checksum{
			Value: strconv.FormatUint(uint64(crc), 10),
			Type:  "adler 32 crc type",
		},
	}

	if !strings.HasSuffix(path, ".root") {
		return md, nil
	}

	f, err := groot.Open(path)
	if err != nil {
		// Not a readable ROOT file; file-level metadata stands.
		log.WithError(err).Warnf("cannot open %s as a ROOT file", path)
		return md, nil
	}
	defer f.Close()

	if events, ok := treeFromFile(f, "Events"); ok {
		md.Events = strconv.FormatInt(events.Entries(), 10)
	}
	if subruns, ok := treeFromFile(f, "SubRuns"); ok {
		md.Subruns = readSubruns(subruns)
	}
	return md, nil
}

// readSubruns collects the distinct run/subrun pairs from a SubRuns
// tree. The auxiliary branch layout varies between art versions, so
// failures are tolerated and yield no pairs.
func readSubruns(tree rtree.Tree) [][2]uint64 {
	var run, subrun uint32
	r, err := rtree.NewReader(tree, []rtree.ReadVar{
		{Name: "SubRunAuxiliary.id_.run_.run_", Value: &run},
		{Name: "SubRunAuxiliary.id_.subRun_", Value: &subrun},
	})
	if err != nil {
		log.WithError(err).Warnf("cannot read SubRuns auxiliary branches")
		return nil
	}
	defer r.Close()

	var pairs [][2]uint64
	seen := make(map[[2]uint64]bool)
	err = r.Read(func(ctx rtree.RCtx) error {
		pair := [2]uint64{uint64(run), uint64(subrun)}
		if !seen[pair] {
			seen[pair] = true
			pairs = append(pairs, pair)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Warnf("error reading SubRuns tree")
		return nil
	}
	return pairs
}
