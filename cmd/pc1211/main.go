// Command pc1211 loads a PC-1211 BASIC source file into a program store and,
// depending on the flags given, lists it, dumps its byte encoding, and/or
// runs it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/fstark/pc1211/ecode"
	"github.com/fstark/pc1211/pstore"
	"github.com/fstark/pc1211/token"
	"github.com/fstark/pc1211/vm"
	"github.com/pkg/errors"
)

// areadValueFlag is a custom flag.Value for --aread-value, following
// cmd/retro/main.go's cellSizeBits pattern of wrapping a typed default
// behind Set/String/Get.
type areadValueFlag struct {
	set bool
	v   float64
}

func (f *areadValueFlag) String() string { return strconv.FormatFloat(f.v, 'g', -1, 64) }
func (f *areadValueFlag) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrap(err, "--aread-value")
	}
	f.set, f.v = true, v
	return nil
}
func (f *areadValueFlag) Get() interface{} { return f.v }

// areadStringFlag is the string counterpart of areadValueFlag.
type areadStringFlag struct {
	set bool
	v   string
}

func (f *areadStringFlag) String() string     { return f.v }
func (f *areadStringFlag) Set(s string) error { f.set, f.v = true, s; return nil }
func (f *areadStringFlag) Get() interface{}   { return f.v }

// atExit reports err the way the specification requires (a single line on
// stderr) and sets the process exit code, following cmd/retro/main.go's
// deferred atExit convention.
func atExit(err error) {
	if err == nil {
		return
	}
	if rerr, ok := errors.Cause(err).(*ecode.Error); ok {
		fmt.Fprintf(os.Stderr, "%v\n", rerr)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%v\n", err)
	os.Exit(1)
}

// loadProgram reads path line by line, tokenizing each non-empty line into
// store. Empty file lines are skipped, matching the source file format.
func loadProgram(path string) (*pstore.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open source file")
	}
	defer f.Close()

	store := pstore.New()
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		raw := scan.Text()
		trimmed := raw
		for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t') {
			trimmed = trimmed[1:]
		}
		if trimmed == "" {
			continue
		}
		lineNum, body, err := token.ParseLine(raw)
		if err != nil {
			return nil, err
		}
		toks, err := token.TokenizeLine(body, lineNum)
		if err != nil {
			return nil, err
		}
		if err := store.AddLine(lineNum, toks); err != nil {
			return nil, err
		}
	}
	if err := scan.Err(); err != nil {
		return nil, errors.Wrap(err, "read source file")
	}
	return store, nil
}

func main() {
	var err error
	defer func() { atExit(err) }()

	fs := flag.NewFlagSet("pc1211", flag.ExitOnError)
	doList := fs.Bool("list", false, "print a human-readable listing of the loaded program")
	doDump := fs.Bool("dump", false, "print a byte-level disassembly of the loaded program")
	doRun := fs.Bool("run", false, "execute the loaded program")
	var areadValue areadValueFlag
	var areadString areadStringFlag
	fs.Var(&areadValue, "aread-value", "preload the AREAD register with numeric `N`")
	fs.Var(&areadString, "aread-string", "preload the AREAD register with string `S`")
	fs.Parse(os.Args[1:])

	if fs.NArg() < 1 {
		err = errors.New("usage: pc1211 [flags] <source-file>")
		return
	}

	var store *pstore.Store
	store, err = loadProgram(fs.Arg(0))
	if err != nil {
		return
	}

	if *doList {
		listProgram(os.Stdout, store)
	}
	if *doDump {
		if err = dumpProgram(os.Stdout, store); err != nil {
			return
		}
	}
	if !*doRun {
		return
	}

	var opts []vm.Option
	if areadValue.set {
		opts = append(opts, vm.WithAreadValue(areadValue.v))
	}
	if areadString.set {
		opts = append(opts, vm.WithAreadString(areadString.v))
	}

	var interp *vm.Interpreter
	interp, err = vm.New(store, opts...)
	if err != nil {
		return
	}
	err = interp.Run()
}
