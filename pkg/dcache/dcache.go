// Package dcache knows how to convert local /pnfs paths into the
// various remote forms understood by the data handling tools.
package dcache

import (
	"os"
	"strings"
)

const (
	server     = "fndcadoor.fnal.gov"
	xrootdPort = "1094"
	longPrefix = "/pnfs/fnal.gov/usr/"
)

// Server returns the dCache server.
func Server() string {
	return server
}

// XRootDServerPort returns the xrootd server and port as <server>:<port>.
func XRootDServerPort() string {
	return server + ":" + xrootdPort
}

// NFSServer returns the node name of a computer with login access
// that has the /pnfs filesystem nfs-mounted. This makes use of the
// $EXPERIMENT environment variable (as does ifdh), which must be set.
func NFSServer() string {
	return os.Getenv("EXPERIMENT") + "gpvm01.fnal.gov"
}

// BlueArcServer returns the fictitious disk server node name used by
// SAM for bluearc disks.
func BlueArcServer(experiment string) string {
	return experiment + "data:"
}

// DCacheServer returns the fictitious disk server node name used by
// SAM for dCache disks.
func DCacheServer() string {
	return "fnal-dcache:"
}

// ServerPath converts a local pnfs path to the path on the dCache
// server. The input path is returned unchanged if it isn't on dCache
// or is already in server form.
func ServerPath(path string) string {
	if strings.HasPrefix(path, "/pnfs/") && !strings.HasPrefix(path, longPrefix) {
		return longPrefix + path[len("/pnfs/"):]
	}
	return path
}

// XRootDURI converts a pnfs path to an xrootd uri. The input path is
// returned unchanged if it isn't on dCache.
func XRootDURI(path string) string {
	if strings.HasPrefix(path, "/pnfs/") {
		return "root://" + XRootDServerPort() + ServerPath(path)
	}
	return path
}

// GridFTPURI converts a pnfs path to a gridftp uri. The input path is
// returned unchanged if it isn't on dCache.
func GridFTPURI(path string) string {
	if strings.HasPrefix(path, "/pnfs/") {
		return "gsiftp://" + server + ServerPath(path)
	}
	return path
}
