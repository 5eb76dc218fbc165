package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/davecgh/go-spew/spew"
	"github.com/fstark/pc1211/internal/ngi"
	"github.com/fstark/pc1211/pstore"
	"github.com/fstark/pc1211/token"
)

// dumpProgram prints the variable array's current state via a structured
// spew.Sdump, followed by a byte-level disassembly of every record,
// grounded on runtime.c's disassemble_program/disassemble_tokens, using an
// ErrWriter to track output errors the way cmd/retro/dump.go does for its
// own stack/memory dump.
func dumpProgram(w io.Writer, store *pstore.Store) error {
	ew := &ngi.ErrWriter{W: w}
	fmt.Fprint(ew, "variables:\n")
	fmt.Fprint(ew, spew.Sdump(store.Vars()))

	rec, ok := store.FirstLine()
	for ok {
		fmt.Fprintf(ew, "line %d (%d bytes)\n", rec.Line, len(rec.Tokens))
		pos := 0
		for pos < len(rec.Tokens) {
			op := token.Tok(rec.Tokens[pos])
			fmt.Fprintf(ew, "  %02X %s", byte(op), op.Name())
			switch op {
			case token.Num:
				v := math.Float64frombits(binary.LittleEndian.Uint64(rec.Tokens[pos+1:]))
				fmt.Fprintf(ew, " %g", v)
			case token.Str:
				n := int(rec.Tokens[pos+1])
				fmt.Fprintf(ew, " %q", string(rec.Tokens[pos+2:pos+2+n]))
			case token.Var, token.Svar:
				fmt.Fprintf(ew, " #%d", rec.Tokens[pos+1])
			}
			fmt.Fprint(ew, "\n")
			next, err := token.Skip(rec.Tokens, pos)
			if err != nil {
				break
			}
			pos = next
		}
		rec, ok = store.NextLine(rec)
	}
	return ew.Cause
}
