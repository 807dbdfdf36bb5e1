package rootfile

import (
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"
)

// SortOrder selects how branch statistics are ordered.
type SortOrder int

const (
	SortByName SortOrder = iota
	SortByTotBytes
	SortByZipBytes
)

// BranchStat holds the size statistics of one branch.
type BranchStat struct {
	Name     string       `json:"name"`
	TotBytes int64        `json:"tot_bytes"`
	ZipBytes int64        `json:"zip_bytes"`
	Sub      []BranchStat `json:"sub,omitempty"`
}

// TreeStat holds the statistics of one tree.
type TreeStat struct {
	Name     string       `json:"name"`
	Entries  int64        `json:"entries"`
	Branches []BranchStat `json:"branches,omitempty"`
}

// FileStat holds the statistics of one file, or of several files
// aggregated.
type FileStat struct {
	Name  string     `json:"name"`
	Files int        `json:"files"`
	Trees []TreeStat `json:"trees"`
}

const eventsTree = "Events"

// isDataProduct reports whether an Events-tree branch carries a
// wrapped data product.
func isDataProduct(class string) bool {
	return strings.HasPrefix(class, "art::Wrapper<")
}

// isWrappedObject reports whether a sub-branch holds the wrapped
// object payload rather than a wrapper bookkeeping member.
func isWrappedObject(name string) bool {
	return strings.HasSuffix(name, ".obj")
}

// branchSizes reads the byte counters of a branch. groot keeps them
// in unexported fields of its concrete branch types (all of which
// embed tbranch), so they are read by reflection. Branch types
// without the counters report zero.
func branchSizes(b rtree.Branch) (tot, zip int64) {
	rv := reflect.ValueOf(b)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return 0, 0
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return 0, 0
	}
	tv := rv.FieldByName("totBytes")
	zv := rv.FieldByName("zipBytes")
	if tv.Kind() != reflect.Int64 || zv.Kind() != reflect.Int64 {
		return 0, 0
	}
	return tv.Int(), zv.Int()
}

func branchStat(b rtree.Branch, level int) BranchStat {
	bs := BranchStat{Name: b.Name()}
	bs.TotBytes, bs.ZipBytes = branchSizes(b)
	if level >= 2 {
		for _, sub := range b.Branches() {
			bs.Sub = append(bs.Sub, branchStat(sub, level-1))
		}
	}
	return bs
}

// Stat reads the tree statistics of one ROOT file. At level 0 only
// tree entry counts are collected; level 1 adds the sizes of the
// Events tree's data-product payload branches; level 2 adds the
// member branches of each wrapped object.
func Stat(path string, level int) (*FileStat, error) {
	f, err := groot.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	defer f.Close()

	fs := &FileStat{Name: path, Files: 1}
	for _, key := range f.Keys() {
		tree, ok := treeFromFile(f, key.Name())
		if !ok {
			continue
		}
		ts := TreeStat{Name: key.Name(), Entries: tree.Entries()}
		if level >= 1 && key.Name() == eventsTree {
			for _, b := range tree.Branches() {
				if !isDataProduct(b.Class()) {
					continue
				}
				for _, sub := range b.Branches() {
					if !isWrappedObject(sub.Name()) {
						continue
					}
					ts.Branches = append(ts.Branches, branchStat(sub, level))
				}
			}
		}
		fs.Trees = append(fs.Trees, ts)
	}
	return fs, nil
}

// Aggregate merges per-file statistics into one record, summing
// entries and byte counts of same-named trees and branches.
func Aggregate(stats []*FileStat) *FileStat {
	total := &FileStat{Name: "total"}
	treeIdx := make(map[string]int)
	type branchKey struct{ tree, branch string }
	branchIdx := make(map[branchKey]int)

	for _, fs := range stats {
		total.Files += fs.Files
		for _, ts := range fs.Trees {
			ti, ok := treeIdx[ts.Name]
			if !ok {
				ti = len(total.Trees)
				treeIdx[ts.Name] = ti
				total.Trees = append(total.Trees, TreeStat{Name: ts.Name})
			}
			total.Trees[ti].Entries += ts.Entries
			for _, bs := range ts.Branches {
				k := branchKey{ts.Name, bs.Name}
				bi, ok := branchIdx[k]
				if !ok {
					bi = len(total.Trees[ti].Branches)
					branchIdx[k] = bi
					total.Trees[ti].Branches = append(total.Trees[ti].Branches,
						BranchStat{Name: bs.Name})
				}
				total.Trees[ti].Branches[bi].TotBytes += bs.TotBytes
				total.Trees[ti].Branches[bi].ZipBytes += bs.ZipBytes
			}
		}
	}
	return total
}

// Sort orders every tree's branches by the given key. Size orders
// are descending, name order ascending.
func (fs *FileStat) Sort(by SortOrder) {
	for i := range fs.Trees {
		sortBranches(fs.Trees[i].Branches, by)
	}
}

func sortBranches(branches []BranchStat, by SortOrder) {
	sort.SliceStable(branches, func(i, j int) bool {
		switch by {
		case SortByTotBytes:
			return branches[i].TotBytes > branches[j].TotBytes
		case SortByZipBytes:
			return branches[i].ZipBytes > branches[j].ZipBytes
		default:
			return branches[i].Name < branches[j].Name
		}
	})
	for i := range branches {
		sortBranches(branches[i].Sub, by)
	}
}
