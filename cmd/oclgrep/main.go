// Command oclgrep searches FILE for all positions matching REGEX and prints
// one zero-based match offset per line, counted in UTF-32 code points of
// the (possibly normalized) input.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/crepererum/oclgrep"
	"github.com/crepererum/oclgrep/internal/device"
	"github.com/crepererum/oclgrep/internal/oclerr"
	"github.com/crepererum/oclgrep/internal/textio"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	normalizeRegex bool
	normalizeFile  bool
	printGraph     bool
	printProfile   bool
	noOutput       bool
}

func run(args []string, stdout, stderr io.Writer) int {
	// before anything else, even flag parsing, check if we're working on
	// an UTF8 system
	if !textio.LocaleIsUTF8(os.Getenv) {
		fmt.Fprintln(stderr, "sorry, this program only works on UTF8 systems")
		return 1
	}

	fs := flag.NewFlagSet("oclgrep", flag.ContinueOnError)
	fs.SetOutput(stdout)

	var opts options
	fs.BoolVar(&opts.normalizeRegex, "normalize-regex", false, "apply NFKC normalization to regex")
	fs.BoolVar(&opts.normalizeFile, "normalize-file", false, "apply NFKC normalization to data from input file")
	fs.BoolVar(&opts.printGraph, "print-graph", false, "print graph data to stdout")
	fs.BoolVar(&opts.printProfile, "print-profile", false, "print engine profiling data to stdout")
	fs.BoolVar(&opts.noOutput, "no-output", false, "do not print actual output (for debug reasons)")
	fs.Usage = func() {
		fmt.Fprintln(stdout, "oclgrep [options] REGEX FILE")
		fmt.Fprintln(stdout, "Allowed options:")
		fs.PrintDefaults()
	}

	// --help prints usage and still exits non-zero.
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if err := grep(fs.Args(), opts, stdout, stderr); err != nil {
		var userErr *oclerr.User
		if errors.As(err, &userErr) {
			fmt.Fprintln(stderr, userErr.Error())
			return 1
		}
		fmt.Fprintln(stderr, "=========================================================================")
		fmt.Fprintln(stderr, "there was an internal error, please report this as a bug")
		fmt.Fprintln(stderr, "================================= ERROR =================================")
		fmt.Fprintln(stderr, err.Error())
		fmt.Fprintln(stderr, "=========================================================================")
		return 1
	}
	return 0
}

func grep(args []string, opts options, stdout, stderr io.Writer) error {
	if len(args) != 2 {
		return oclerr.NewUser("expected exactly REGEX and FILE, got %d arguments", len(args))
	}
	regexArg, fileArg := args[0], args[1]

	data, err := os.ReadFile(fileArg)
	if err != nil {
		return oclerr.NewUser("file does not exist!")
	}
	if len(data) == 0 {
		return oclerr.NewUser("Empty files cannot be processed!")
	}

	pattern, err := textio.Decode([]byte(regexArg))
	if err != nil {
		return err
	}
	content, err := textio.Decode(data)
	if err != nil {
		return err
	}

	if opts.normalizeRegex {
		pattern = textio.NormalizeNFKC(pattern)
	}
	if opts.normalizeFile {
		// reported offsets index the normalized text, not the file bytes
		content = textio.NormalizeNFKC(content)
	}

	re, err := oclgrep.Compile(pattern)
	if err != nil {
		return err
	}
	if opts.printGraph {
		fmt.Fprint(stdout, re.DumpGraph())
	}

	eng, err := oclgrep.NewEngine(device.DefaultConfig())
	if err != nil {
		return err
	}
	if opts.printProfile {
		log.New(stderr, "", 0).Printf("selected device: %s", eng.Device().Name)
	}

	result, err := eng.Run(re, content)
	if err != nil {
		return err
	}

	if opts.printProfile {
		if prof := eng.LastProfile(); prof != nil {
			fmt.Fprintln(stdout, prof.String())
		}
	}

	if !opts.noOutput {
		for _, idx := range result {
			fmt.Fprintln(stdout, idx)
		}
	}
	return nil
}
