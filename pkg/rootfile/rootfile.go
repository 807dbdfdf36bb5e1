// Package rootfile inspects ROOT and artroot files: validity
// checking, SAM metadata extraction, and per-branch size statistics.
// Files are read through go-hep's groot, never by hand-rolled format
// code.
package rootfile

import (
	"github.com/pkg/errors"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
)

// IsArtROOT reports whether path is a valid artroot file. To
// qualify, the file must open cleanly and contain an Events TTree
// and a RootFileDB key.
func IsArtROOT(path string) (bool, error) {
	f, err := groot.Open(path)
	if err != nil {
		return false, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	hasEvents := false
	hasDB := false
	for _, key := range f.Keys() {
		switch key.Name() {
		case "Events":
			if _, ok := treeFromFile(f, "Events"); ok {
				hasEvents = true
			}
		case "RootFileDB":
			hasDB = true
		}
	}
	return hasEvents && hasDB, nil
}

// treeFromFile fetches a named object and reports whether it is a
// TTree.
func treeFromFile(f *riofs.File, name string) (rtree.Tree, bool) {
	obj, err := f.Get(name)
	if err != nil {
		return nil, false
	}
	tree, ok := obj.(rtree.Tree)
	return tree, ok
}
