// Command root-metadata extracts SAM external metadata from a ROOT
// file and prints it as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/LArSoft/larbatch/pkg/rootfile"
)

var helpFlag bool
var output string

func init() {
	flag.BoolVar(&helpFlag, "h", false, "show usage and exit")
	flag.StringVar(&output, "o", "", "write JSON to this file instead of stdout")
}

func usage(rc int) int {
	fmt.Fprintf(os.Stderr, "usage: %s [options] file.root\n", os.Args[0])
	flag.PrintDefaults()
	return rc
}

func _main() int {
	flag.Parse()

	if helpFlag {
		return usage(0)
	}
	if flag.NArg() != 1 {
		return usage(127)
	}

	md, err := rootfile.Metadata(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return 1
	}

	text, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't encode metadata: %s\n", err)
		return 1
	}

	out := os.Stdout
	if output != "" {
		out, err = os.Create(output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "can't create output file: %s\n", err)
			return 2
		}
		defer out.Close()
	}
	fmt.Fprintln(out, string(text))
	return 0
}

func main() {
	os.Exit(_main())
}
