package rootfile

import (
	"hash/adler32"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"
)

func TestAdler0FromAdler1(t *testing.T) {
	// A zero-seeded adler32 of data d equals the conversion of the
	// standard (one-seeded) adler32 of d.
	data := []byte("The quick brown fox jumps over the lazy dog")
	std := adler32.Checksum(data)

	// Zero-seeded reference, computed directly.
	var s1, s2 uint32
	for _, b := range data {
		s1 = (s1 + uint32(b)) % adler32Mod
		s2 = (s2 + s1) % adler32Mod
	}
	want := s2<<16 + s1

	assert.Equal(t, want, adler0FromAdler1(std, int64(len(data))))
}

func TestAdler0FromAdler1Empty(t *testing.T) {
	// Standard adler32 of no data is 1; zero-seeded is 0.
	assert.Equal(t, uint32(0), adler0FromAdler1(adler32.Checksum(nil), 0))
}

func TestEnstoreChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	data := []byte("some file payload")
	assert.NoError(t, os.WriteFile(path, data, 0644))

	crc, err := EnstoreChecksum(path)
	assert.NoError(t, err)
	assert.Equal(t, adler0FromAdler1(adler32.Checksum(data), int64(len(data))), crc)
}

func TestMetadataPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	data := []byte("not a root file")
	assert.NoError(t, os.WriteFile(path, data, 0644))

	md, err := Metadata(path)
	assert.NoError(t, err)
	assert.Equal(t, "plain.txt", md.FileName)
	assert.Equal(t, strconv.Itoa(len(data)), md.FileSize)
	assert.Equal(t, "adler 32 crc type", md.CRC.Type)
	assert.NotEmpty(t, md.CRC.Value)
	assert.Empty(t, md.Events)
	assert.Empty(t, md.Subruns)
}

func TestMetadataMissingFile(t *testing.T) {
	_, err := Metadata("/no/such/file.root")
	assert.Error(t, err)
}

// writeTree writes a one-branch tree with n float64 entries.
func writeTree(t *testing.T, path, name string, n int) {
	t.Helper()

	f, err := groot.Create(path)
	assert.NoError(t, err)
	var x float64
	w, err := rtree.NewWriter(f, name, []rtree.WriteVar{{Name: "x", Value: &x}})
	assert.NoError(t, err)
	for i := 0; i < n; i++ {
		x = float64(i)
		if _, err := w.Write(); err != nil {
			t.Fatalf("write entry %d: %s", i, err)
		}
	}
	assert.NoError(t, w.Close())
	assert.NoError(t, f.Close())
}

func TestBranchSizesWrittenTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sizes.root")
	writeTree(t, path, "tree", 1000)

	f, err := groot.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	tree, ok := treeFromFile(f, "tree")
	assert.True(t, ok)
	b := tree.Branch("x")
	assert.NotNil(t, b)

	tot, zip := branchSizes(b)
	assert.Greater(t, tot, int64(0))
	assert.Greater(t, zip, int64(0))
}

func TestStatSkipsNonProductBranches(t *testing.T) {
	// Branch details are reported only for wrapped data products of
	// the Events tree; plain branches and other trees stay entry-only.
	path := filepath.Join(t.TempDir(), "plain.root")
	writeTree(t, path, "ntuple", 100)

	fs, err := Stat(path, 2)
	assert.NoError(t, err)
	assert.Len(t, fs.Trees, 1)
	assert.Equal(t, "ntuple", fs.Trees[0].Name)
	assert.Equal(t, int64(100), fs.Trees[0].Entries)
	assert.Empty(t, fs.Trees[0].Branches)
}

func TestDataProductFilters(t *testing.T) {
	assert.True(t, isDataProduct("art::Wrapper<vector<recob::Hit> >"))
	assert.False(t, isDataProduct("art::EventAuxiliary"))
	assert.False(t, isDataProduct("TBranch"))

	assert.True(t, isWrappedObject("recob::Hits_gaushit__Reco.obj"))
	assert.False(t, isWrappedObject("recob::Hits_gaushit__Reco.present"))
	assert.False(t, isWrappedObject("EventAuxiliary"))
}

func TestAggregate(t *testing.T) {
	f1 := &FileStat{Name: "f1.root", Files: 1, Trees: []TreeStat{
		{Name: "Events", Entries: 10, Branches: []BranchStat{
			{Name: "hits.obj", TotBytes: 100, ZipBytes: 40},
			{Name: "tracks.obj", TotBytes: 50, ZipBytes: 30},
		}},
		{Name: "SubRuns", Entries: 1},
	}}
	f2 := &FileStat{Name: "f2.root", Files: 1, Trees: []TreeStat{
		{Name: "Events", Entries: 5, Branches: []BranchStat{
			{Name: "hits.obj", TotBytes: 60, ZipBytes: 20},
		}},
	}}

	total := Aggregate([]*FileStat{f1, f2})
	assert.Equal(t, 2, total.Files)
	assert.Len(t, total.Trees, 2)
	assert.Equal(t, "Events", total.Trees[0].Name)
	assert.Equal(t, int64(15), total.Trees[0].Entries)
	assert.Equal(t, int64(160), total.Trees[0].Branches[0].TotBytes)
	assert.Equal(t, int64(60), total.Trees[0].Branches[0].ZipBytes)
	assert.Equal(t, int64(1), total.Trees[1].Entries)
}

func TestSortOrders(t *testing.T) {
	fs := &FileStat{Trees: []TreeStat{
		{Name: "Events", Branches: []BranchStat{
			{Name: "b", TotBytes: 10, ZipBytes: 90},
			{Name: "a", TotBytes: 30, ZipBytes: 10},
			{Name: "c", TotBytes: 20, ZipBytes: 50},
		}},
	}}

	fs.Sort(SortByName)
	assert.Equal(t, "a", fs.Trees[0].Branches[0].Name)
	assert.Equal(t, "c", fs.Trees[0].Branches[2].Name)

	fs.Sort(SortByTotBytes)
	assert.Equal(t, "a", fs.Trees[0].Branches[0].Name)
	assert.Equal(t, "b", fs.Trees[0].Branches[2].Name)

	fs.Sort(SortByZipBytes)
	assert.Equal(t, "b", fs.Trees[0].Branches[0].Name)
	assert.Equal(t, "a", fs.Trees[0].Branches[2].Name)
}
