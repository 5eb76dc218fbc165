package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fstark/pc1211/pstore"
	"github.com/fstark/pc1211/token"
)

var (
	lineNumStyle = lipgloss.NewStyle().Bold(true)
	stringStyle  = lipgloss.NewStyle().Italic(true)
)

// listProgram renders every line in ascending order in a human-readable
// form, grounded on runtime.c's cmd_list/cmd_list_line token walk.
func listProgram(w io.Writer, store *pstore.Store) {
	rec, ok := store.FirstLine()
	if !ok {
		fmt.Fprintln(w, "No program loaded.")
		return
	}
	for ok {
		fmt.Fprintf(w, "%s %s\n", lineNumStyle.Render(fmt.Sprintf("%d", rec.Line)), renderTokens(rec.Tokens))
		rec, ok = store.NextLine(rec)
	}
}

// renderTokens walks one line's token stream and produces readable BASIC
// text for it, stopping at T_EOL.
func renderTokens(toks []byte) string {
	var b strings.Builder
	pos := 0
	needSpace := false
	for pos < len(toks) && token.Tok(toks[pos]) != token.EOL {
		if needSpace {
			b.WriteByte(' ')
		}
		needSpace = true

		switch token.Tok(toks[pos]) {
		case token.Num:
			v := readDouble(toks, pos+1)
			fmt.Fprintf(&b, "%g", v)
			pos += 9
		case token.Str:
			n := int(toks[pos+1])
			fmt.Fprintf(&b, "%s", stringStyle.Render(fmt.Sprintf("%q", string(toks[pos+2:pos+2+n]))))
			pos += 2 + n
		case token.Var:
			b.WriteByte('A' + toks[pos+1] - 1)
			pos += 2
		case token.Svar:
			b.WriteByte('A' + toks[pos+1] - 1)
			b.WriteByte('$')
			pos += 2
		case token.Vidx, token.Svix:
			if token.Tok(toks[pos]) == token.Svix {
				b.WriteString("A$(")
			} else {
				b.WriteString("A(")
			}
			pos++
			pos = renderNestedExpr(&b, toks, pos)
		case token.Comma:
			b.WriteByte(',')
			needSpace = false
			pos++
		case token.Semi:
			b.WriteByte(';')
			needSpace = false
			pos++
		case token.Colon:
			b.WriteString(" : ")
			needSpace = false
			pos++
		default:
			b.WriteString(token.Tok(toks[pos]).Name())
			pos++
		}
	}
	return b.String()
}

// renderNestedExpr renders the index expression of a T_VIDX/T_SVIDX
// reference up to and including its T_ENDX closer, returning the position
// just past it.
func renderNestedExpr(b *strings.Builder, toks []byte, pos int) int {
	for pos < len(toks) && token.Tok(toks[pos]) != token.Endx {
		switch token.Tok(toks[pos]) {
		case token.Num:
			v := readDouble(toks, pos+1)
			fmt.Fprintf(b, "%g", v)
			pos += 9
		case token.Var:
			b.WriteByte('A' + toks[pos+1] - 1)
			pos += 2
		case token.Plus:
			b.WriteByte('+')
			pos++
		case token.Minus:
			b.WriteByte('-')
			pos++
		case token.Mul:
			b.WriteByte('*')
			pos++
		case token.Div:
			b.WriteByte('/')
			pos++
		case token.Pow:
			b.WriteByte('^')
			pos++
		case token.LP:
			b.WriteByte('(')
			pos++
		case token.RP:
			b.WriteByte(')')
			pos++
		default:
			pos++
		}
	}
	if pos < len(toks) && token.Tok(toks[pos]) == token.Endx {
		pos++
	}
	b.WriteByte(')')
	return pos
}

func readDouble(toks []byte, pos int) float64 {
	bits := binary.LittleEndian.Uint64(toks[pos:])
	return math.Float64frombits(bits)
}
