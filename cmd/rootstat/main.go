// Command rootstat prints tree and branch statistics of ROOT files.
//
// Usage:
//
//	rootstat [options] file.root [file2.root ...]
//	rootstat [options] @files.list
//
// Arguments starting with @ name a text file holding one ROOT file
// path per line.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/LArSoft/larbatch/pkg/rootfile"
)

var helpFlag bool
var level int
var nfile int
var all bool
var sortTot bool
var sortZip bool
var sortName bool

func init() {
	flag.BoolVar(&helpFlag, "h", false, "show usage and exit")
	flag.IntVar(&level, "level", 1, "branch detail level (0=trees, 1=branches, 2=sub-branches)")
	flag.IntVar(&nfile, "nfile", 0, "process at most this many files (0 = all)")
	flag.BoolVar(&all, "all", false, "print per-file statistics as well as the total")
	flag.BoolVar(&sortTot, "s1", false, "sort branches by uncompressed size")
	flag.BoolVar(&sortZip, "s2", false, "sort branches by compressed size (default)")
	flag.BoolVar(&sortName, "s3", false, "sort branches by name")
}

func usage(rc int) int {
	fmt.Fprintf(os.Stderr, "usage: %s [options] file.root [@files.list ...]\n", os.Args[0])
	flag.PrintDefaults()
	return rc
}

// expandArgs replaces @list arguments with the lines of the named
// file.
func expandArgs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "@") {
			paths = append(paths, arg)
			continue
		}
		f, err := os.Open(arg[1:])
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			words := strings.Fields(scanner.Text())
			if len(words) > 0 {
				paths = append(paths, words[0])
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func sortOrder() rootfile.SortOrder {
	switch {
	case sortTot:
		return rootfile.SortByTotBytes
	case sortName:
		return rootfile.SortByName
	default:
		return rootfile.SortByZipBytes
	}
}

func compression(tot, zip int64) float64 {
	if zip == 0 {
		return 0
	}
	return float64(tot) / float64(zip)
}

func printStat(w io.Writer, fs *rootfile.FileStat) {
	fmt.Fprintf(w, "%s (%d files)\n", fs.Name, fs.Files)
	for _, ts := range fs.Trees {
		fmt.Fprintf(w, "  %s: %d entries\n", ts.Name, ts.Entries)
		var ntot, nzip int64
		for _, bs := range ts.Branches {
			fmt.Fprintf(w, "%14d%14d%8.2f  %s\n",
				bs.TotBytes, bs.ZipBytes, compression(bs.TotBytes, bs.ZipBytes), bs.Name)
			for _, sub := range bs.Sub {
				fmt.Fprintf(w, "%14d%14d%8.2f    %s\n",
					sub.TotBytes, sub.ZipBytes, compression(sub.TotBytes, sub.ZipBytes), sub.Name)
			}
			ntot += bs.TotBytes
			nzip += bs.ZipBytes
		}
		if len(ts.Branches) > 0 {
			fmt.Fprintf(w, "%14d%14d%8.2f  All branches\n", ntot, nzip, compression(ntot, nzip))
			var avgTot, avgZip float64
			if ts.Entries > 0 {
				avgTot = 1e-6 * float64(ntot) / float64(ts.Entries)
				avgZip = 1e-6 * float64(nzip) / float64(ts.Entries)
			}
			fmt.Fprintf(w, "%10d events.\n", ts.Entries)
			fmt.Fprintf(w, "%7.2f Mb average size per event.\n", avgTot)
			fmt.Fprintf(w, "%7.2f Mb average zipped size per event.\n", avgZip)
		}
	}
}

func _main() int {
	flag.Parse()

	if helpFlag {
		return usage(0)
	}
	if flag.NArg() == 0 {
		return usage(127)
	}

	paths, err := expandArgs(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't read file list: %s\n", err)
		return 1
	}
	if nfile > 0 && len(paths) > nfile {
		paths = paths[:nfile]
	}

	order := sortOrder()
	var stats []*rootfile.FileStat
	for _, path := range paths {
		fs, err := rootfile.Stat(path, level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			return 2
		}
		stats = append(stats, fs)
		if all || len(paths) == 1 {
			fs.Sort(order)
			printStat(os.Stdout, fs)
		}
	}

	if len(paths) > 1 {
		total := rootfile.Aggregate(stats)
		total.Sort(order)
		printStat(os.Stdout, total)
	}
	return 0
}

func main() {
	os.Exit(_main())
}
