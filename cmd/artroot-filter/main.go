// Command artroot-filter reads file names from standard input, one
// per line, and writes the names of valid artroot files to standard
// output. Unreadable files and plain ROOT files are dropped
// silently.
//
// Examples:
//
//	ls -1 *.root | artroot-filter
//	artroot-filter < files.list
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/LArSoft/larbatch/pkg/rootfile"
)

var helpFlag bool

func init() {
	flag.BoolVar(&helpFlag, "h", false, "show usage and exit")
}

func usage(rc int) int {
	fmt.Fprintf(os.Stderr, "usage: %s < file-list\n", os.Args[0])
	flag.PrintDefaults()
	return rc
}

func _main() int {
	flag.Parse()

	if helpFlag {
		return usage(0)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		// Keep the first word of each line; blank lines are skipped.
		words := strings.Fields(scanner.Text())
		if len(words) == 0 {
			continue
		}
		path := words[0]
		ok, err := rootfile.IsArtROOT(path)
		if err != nil {
			continue
		}
		if ok {
			fmt.Println(path)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %s\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(_main())
}
