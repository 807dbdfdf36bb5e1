package dcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerPath(t *testing.T) {
	assert.Equal(t, "/pnfs/fnal.gov/usr/uboone/scratch/f.root",
		ServerPath("/pnfs/uboone/scratch/f.root"))
	// Already in server form.
	assert.Equal(t, "/pnfs/fnal.gov/usr/uboone/scratch/f.root",
		ServerPath("/pnfs/fnal.gov/usr/uboone/scratch/f.root"))
	// Not dCache.
	assert.Equal(t, "/exp/uboone/data/f.root", ServerPath("/exp/uboone/data/f.root"))
}

func TestXRootDURI(t *testing.T) {
	assert.Equal(t, "root://fndcadoor.fnal.gov:1094/pnfs/fnal.gov/usr/uboone/f.root",
		XRootDURI("/pnfs/uboone/f.root"))
	assert.Equal(t, "/tmp/f.root", XRootDURI("/tmp/f.root"))
}

func TestGridFTPURI(t *testing.T) {
	assert.Equal(t, "gsiftp://fndcadoor.fnal.gov/pnfs/fnal.gov/usr/uboone/f.root",
		GridFTPURI("/pnfs/uboone/f.root"))
	assert.Equal(t, "/tmp/f.root", GridFTPURI("/tmp/f.root"))
}

func TestFictitiousServers(t *testing.T) {
	assert.Equal(t, "uboonedata:", BlueArcServer("uboone"))
	assert.Equal(t, "fnal-dcache:", DCacheServer())
}

func TestNFSServer(t *testing.T) {
	t.Setenv("EXPERIMENT", "icarus")
	assert.Equal(t, "icarusgpvm01.fnal.gov", NFSServer())
}
