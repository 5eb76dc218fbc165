package vm

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fstark/pc1211/ecode"
	"github.com/fstark/pc1211/pstore"
	"github.com/fstark/pc1211/token"
)

// step executes exactly one statement token at the current PC, mirroring
// vm_execute_statement's opcode switch.
func (i *Interpreter) step() error {
	switch i.cur() {
	case token.Str:
		return i.execLabel()
	case token.Var:
		return i.execVarAssign()
	case token.Svar:
		return i.execSvarAssign()
	case token.Vidx:
		return i.execVidxAssign()
	case token.Svix:
		return i.execSvidxAssign()
	case token.Let:
		return i.execLet()
	case token.Print:
		return i.execPrint()
	case token.Goto:
		return i.execGoto()
	case token.If:
		return i.execIf()
	case token.Gosub:
		return i.execGosub()
	case token.Return:
		return i.execReturn()
	case token.For:
		return i.execFor()
	case token.Next:
		return i.execNext()
	case token.End, token.Stop:
		i.running = false
		return nil
	case token.Rem:
		i.skipToEOL()
		return nil
	case token.Colon:
		i.pc++
		return nil
	case token.EOL:
		return i.execEOL()
	case token.Input:
		return i.execInput()
	case token.Aread:
		return i.execAread()
	case token.Degree:
		i.pc++
		i.angleMode = Degree
		return nil
	case token.Radian:
		i.pc++
		i.angleMode = Radian
		return nil
	case token.Grad:
		i.pc++
		i.angleMode = Grad
		return nil
	case token.Clear:
		i.pc++
		i.store.ClearVars()
		return nil
	case token.Beep:
		i.pc++
		fmt.Fprint(i.out, "\a")
		return nil
	case token.Pause:
		return i.execPause()
	case token.Using:
		i.skipToEOL()
		return nil
	default:
		return i.runErr(ecode.SyntaxError)
	}
}

func (i *Interpreter) skipToEOL() {
	for i.cur() != token.EOL {
		next, err := token.Skip(i.img, i.pc)
		if err != nil {
			i.pc = len(i.img)
			return
		}
		i.pc = next
	}
}

// execLabel skips the T_STR token that opens a label line — its payload is
// already registered with the program store, so at statement position it
// is pure no-op text.
func (i *Interpreter) execLabel() error {
	i.pc++ // T_STR
	n := int(i.img[i.pc])
	i.pc += 1 + n
	return nil
}

func (i *Interpreter) finishNumAssign(idx, max int) error {
	if i.cur() != token.EqAssign {
		return i.runErr(ecode.SyntaxError)
	}
	i.pc++
	val, err := i.evalExpression()
	if err != nil {
		return err
	}
	if idx < 1 || idx > max {
		return i.runErr(ecode.IndexOutOfRange)
	}
	cell := i.store.Var(idx)
	cell.Type = pstore.NumType
	cell.Num = val
	return nil
}

func (i *Interpreter) finishStrAssign(idx, max int) error {
	if i.cur() != token.EqAssign {
		return i.runErr(ecode.SyntaxError)
	}
	i.pc++
	if i.cur() != token.Str {
		return i.runErr(ecode.SyntaxError)
	}
	i.pc++
	n := int(i.img[i.pc])
	i.pc++
	s := string(i.img[i.pc : i.pc+n])
	i.pc += n
	if idx < 1 || idx > max {
		return i.runErr(ecode.IndexOutOfRange)
	}
	cell := i.store.Var(idx)
	cell.Type = pstore.StrType
	cell.Str = s
	return nil
}

func (i *Interpreter) execVarAssign() error {
	i.pc++
	idx := int(i.img[i.pc])
	i.pc++
	return i.finishNumAssign(idx, 26)
}

func (i *Interpreter) execSvarAssign() error {
	i.pc++
	idx := int(i.img[i.pc])
	i.pc++
	return i.finishStrAssign(idx, 26)
}

func (i *Interpreter) execVidxAssign() error {
	i.pc++ // T_VIDX, no index byte
	idxVal, err := i.evalExpression()
	if err != nil {
		return err
	}
	i.expectEndx()
	return i.finishNumAssign(int(idxVal), pstore.MaxVars)
}

func (i *Interpreter) execSvidxAssign() error {
	i.pc++ // T_SVIDX, no index byte
	idxVal, err := i.evalExpression()
	if err != nil {
		return err
	}
	i.expectEndx()
	return i.finishStrAssign(int(idxVal), pstore.MaxVars)
}

// execLet handles the explicit LET form, which accepts any of the four
// assignment targets.
func (i *Interpreter) execLet() error {
	i.pc++ // T_LET
	switch i.cur() {
	case token.Var:
		i.pc++
		idx := int(i.img[i.pc])
		i.pc++
		return i.finishNumAssign(idx, 26)
	case token.Svar:
		i.pc++
		idx := int(i.img[i.pc])
		i.pc++
		return i.finishStrAssign(idx, 26)
	case token.Vidx:
		i.pc++
		idxVal, err := i.evalExpression()
		if err != nil {
			return err
		}
		i.expectEndx()
		return i.finishNumAssign(int(idxVal), pstore.MaxVars)
	case token.Svix:
		i.pc++
		idxVal, err := i.evalExpression()
		if err != nil {
			return err
		}
		i.expectEndx()
		return i.finishStrAssign(int(idxVal), pstore.MaxVars)
	default:
		return i.runErr(ecode.SyntaxError)
	}
}

// formatNumber renders a double the way the AREAD number-to-string
// conversion is specified: "%.6g"-style, six significant digits.
func formatNumber(v float64) string {
	return fmt.Sprintf("%.6g", v)
}

// printArgs walks the current statement's argument list, writing each
// piece to i.out, until a T_COLON or T_EOL terminates it. Shared by PRINT
// and PAUSE, which the specification gives identical printing behavior.
func (i *Interpreter) printArgs() error {
	for i.cur() != token.Colon && i.cur() != token.EOL {
		switch i.cur() {
		case token.Comma, token.Semi:
			fmt.Fprint(i.out, " ")
			i.pc++
		case token.Str:
			i.pc++
			n := int(i.img[i.pc])
			i.pc++
			fmt.Fprint(i.out, string(i.img[i.pc:i.pc+n]))
			i.pc += n
		case token.Svar:
			i.pc++
			idx := int(i.img[i.pc])
			i.pc++
			if idx < 1 || idx > 26 {
				return i.runErr(ecode.IndexOutOfRange)
			}
			cell := i.store.Var(idx)
			if cell.Type == pstore.StrType {
				fmt.Fprint(i.out, cell.Str)
			}
		case token.Svix:
			i.pc++
			idxVal, err := i.evalExpression()
			if err != nil {
				return err
			}
			i.expectEndx()
			idx := int(idxVal)
			if idx < 1 || idx > pstore.MaxVars {
				return i.runErr(ecode.IndexOutOfRange)
			}
			cell := i.store.Var(idx)
			if cell.Type == pstore.StrType {
				fmt.Fprint(i.out, cell.Str)
			}
		default:
			val, err := i.evalExpression()
			if err != nil {
				return err
			}
			fmt.Fprint(i.out, formatNumber(val))
		}
	}
	return nil
}

func (i *Interpreter) clearAread() {
	i.aread = aread{}
}

func (i *Interpreter) execPrint() error {
	i.pc++ // T_PRINT
	if err := i.printArgs(); err != nil {
		return err
	}
	fmt.Fprint(i.out, "\n")
	i.clearAread()
	return nil
}

func (i *Interpreter) execPause() error {
	i.pc++ // T_PAUSE
	if err := i.printArgs(); err != nil {
		return err
	}
	fmt.Fprint(i.out, "\n")
	if i.sleep != nil {
		i.sleep(100 * time.Millisecond)
	}
	i.clearAread()
	return nil
}

// resolveTarget evaluates a GOTO/GOSUB/THEN branch target: a string
// literal label, a string-variable label, or a numeric line-number
// expression.
func (i *Interpreter) resolveTarget() (uint16, error) {
	switch i.cur() {
	case token.Str:
		i.pc++
		n := int(i.img[i.pc])
		i.pc++
		name := string(i.img[i.pc : i.pc+n])
		i.pc += n
		line := i.store.FindLabel(name)
		if line == 0 {
			return 0, i.runErr(ecode.BadLineNumber)
		}
		return line, nil
	case token.Svar:
		i.pc++
		idx := int(i.img[i.pc])
		i.pc++
		if idx < 1 || idx > 26 {
			return 0, i.runErr(ecode.IndexOutOfRange)
		}
		cell := i.store.Var(idx)
		if cell.Type != pstore.StrType {
			return 0, i.runErr(ecode.TypeMismatch)
		}
		line := i.store.FindLabel(cell.Str)
		if line == 0 {
			return 0, i.runErr(ecode.BadLineNumber)
		}
		return line, nil
	default:
		n, err := i.evalExpression()
		if err != nil {
			return 0, err
		}
		return uint16(n), nil
	}
}

func (i *Interpreter) jumpTo(line uint16) error {
	rec, ok := i.store.FindLine(line)
	if !ok {
		return i.runErr(ecode.BadLineNumber)
	}
	i.pc = i.store.TokenOffset(rec)
	i.currentLine = line
	return nil
}

func (i *Interpreter) execGoto() error {
	i.pc++ // T_GOTO
	line, err := i.resolveTarget()
	if err != nil {
		return err
	}
	return i.jumpTo(line)
}

func (i *Interpreter) execGosub() error {
	i.pc++ // T_GOSUB
	line, err := i.resolveTarget()
	if err != nil {
		return err
	}
	if i.callTop >= CallStackDepth {
		return i.runErr(ecode.StackOverflow)
	}
	i.callStack[i.callTop] = callFrame{returnPC: i.pc, returnLine: i.currentLine}
	i.callTop++
	return i.jumpTo(line)
}

func (i *Interpreter) execReturn() error {
	i.pc++ // T_RETURN
	if i.callTop <= 0 {
		return i.runErr(ecode.ReturnWithoutGosub)
	}
	i.callTop--
	frame := i.callStack[i.callTop]
	i.pc = frame.returnPC
	i.currentLine = frame.returnLine
	return nil
}

// execIf implements both IF forms. It first scans ahead (without consuming
// the main PC) to see whether a T_THEN appears before the line's T_EOL.
func (i *Interpreter) execIf() error {
	i.pc++ // T_IF

	thenPos, hasThen := i.scanForThen()

	if hasThen {
		cond, err := i.evalCondition()
		if err != nil {
			return err
		}
		i.pc = thenPos + 1 // skip T_THEN
		if cond {
			line, err := i.resolveTarget()
			if err != nil {
				return err
			}
			return i.jumpTo(line)
		}
		i.skipToEOL()
		return nil
	}

	// No THEN: single-pass clean design — evalCondition naturally stops
	// with the cursor on the following statement.
	cond, err := i.evalCondition()
	if err != nil {
		return err
	}
	if !cond {
		i.skipToEOL()
	}
	return nil
}

// scanForThen walks tokens from the current PC looking for T_THEN before
// T_EOL, without disturbing i.pc.
func (i *Interpreter) scanForThen() (int, bool) {
	pos := i.pc
	for token.Tok(i.img[pos]) != token.Then && token.Tok(i.img[pos]) != token.EOL {
		next, err := token.Skip(i.img, pos)
		if err != nil {
			return pos, false
		}
		pos = next
	}
	return pos, token.Tok(i.img[pos]) == token.Then
}

func (i *Interpreter) execFor() error {
	i.pc++ // T_FOR
	if i.cur() != token.Var {
		return i.runErr(ecode.SyntaxError)
	}
	i.pc++
	varIdx := int(i.img[i.pc])
	i.pc++
	if i.cur() != token.EqAssign {
		return i.runErr(ecode.SyntaxError)
	}
	i.pc++
	start, err := i.evalExpression()
	if err != nil {
		return err
	}
	if i.cur() != token.To {
		return i.runErr(ecode.SyntaxError)
	}
	i.pc++
	limit, err := i.evalExpression()
	if err != nil {
		return err
	}
	step := 1.0
	if i.cur() == token.Step {
		i.pc++
		step, err = i.evalExpression()
		if err != nil {
			return err
		}
	}
	if step == 0 {
		return i.runErr(ecode.ForStepZero)
	}
	if varIdx < 1 || varIdx > 26 {
		return i.runErr(ecode.IndexOutOfRange)
	}
	cell := i.store.Var(varIdx)
	cell.Type = pstore.NumType
	cell.Num = start

	resumePC := i.resumePointAfterFor()

	var enters bool
	if step > 0 {
		enters = start <= limit
	} else {
		enters = start >= limit
	}
	if !enters {
		// The loop body never runs at all: a FOR whose start is already past
		// its limit in the direction of step skips straight to the
		// statement following its matching NEXT, without ever pushing a
		// frame (so that NEXT, if control somehow returns, does not find a
		// loop it never entered).
		skip := i.skipPastMatchingNext(resumePC)
		i.pc = skip
		i.currentLine = i.lineContaining(skip)
		return nil
	}

	if i.forTop >= ForStackDepth {
		return i.runErr(ecode.StackOverflow)
	}
	i.forStack[i.forTop] = forFrame{resumePC: uint16(resumePC), varIdx: varIdx, limit: limit, step: step}
	i.forTop++
	return nil
}

// skipPastMatchingNext walks forward from pos, which is positioned at the
// start of a FOR loop's body, counting nested T_FOR/T_NEXT pairs by lexical
// order until it finds the NEXT that closes this FOR, and returns the
// position immediately after that NEXT (and its optional named variable).
// Used only when a loop's entry condition already fails, so the body must
// be skipped in its entirety.
func (i *Interpreter) skipPastMatchingNext(pos int) int {
	depth := 1
	for depth > 0 && pos < len(i.img) {
		switch token.Tok(i.img[pos]) {
		case token.For:
			depth++
			pos++
		case token.Next:
			depth--
			pos++
			if pos < len(i.img) && token.Tok(i.img[pos]) == token.Var {
				pos += 2
			}
		case token.EOL:
			pos = i.advancePastEOL(pos)
		default:
			next, err := token.Skip(i.img, pos)
			if err != nil {
				return pos
			}
			pos = next
		}
	}
	return pos
}

// advancePastEOL returns the offset of the first token of the record that
// follows the one whose T_EOL sits at pos, or len(i.img) if pos's record
// was the last one.
func (i *Interpreter) advancePastEOL(pos int) int {
	next := pos + 1
	if next < len(i.img) {
		return next + 4 // past the next record's u16 len + u16 line_num header
	}
	return next
}

// resumePointAfterFor computes the PC a NEXT jumps back to: the statement
// after a same-line colon, or the first statement of the following line.
func (i *Interpreter) resumePointAfterFor() int {
	if i.cur() == token.Colon {
		return i.pc + 1
	}
	pos := i.pc
	for token.Tok(i.img[pos]) != token.EOL {
		next, err := token.Skip(i.img, pos)
		if err != nil {
			return pos
		}
		pos = next
	}
	return i.advancePastEOL(pos)
}

func (i *Interpreter) execNext() error {
	i.pc++ // T_NEXT
	hasVar := false
	namedIdx := 0
	if i.cur() == token.Var {
		i.pc++
		namedIdx = int(i.img[i.pc])
		i.pc++
		hasVar = true
	}

	var frame forFrame
	if hasVar {
		found := -1
		for idx := i.forTop - 1; idx >= 0; idx-- {
			if i.forStack[idx].varIdx == namedIdx {
				found = idx
				break
			}
		}
		if found < 0 {
			return i.runErr(ecode.NextWithoutFor)
		}
		frame = i.forStack[found]
		i.forTop = found
	} else {
		if i.forTop <= 0 {
			return i.runErr(ecode.NextWithoutFor)
		}
		i.forTop--
		frame = i.forStack[i.forTop]
	}

	if frame.varIdx < 1 || frame.varIdx > 26 {
		return i.runErr(ecode.IndexOutOfRange)
	}
	cell := i.store.Var(frame.varIdx)
	if cell.Type != pstore.NumType {
		return i.runErr(ecode.TypeMismatch)
	}
	cell.Num += frame.step

	var cont bool
	if frame.step > 0 {
		cont = cell.Num <= frame.limit
	} else {
		cont = cell.Num >= frame.limit
	}

	if cont {
		if i.forTop >= ForStackDepth {
			return i.runErr(ecode.StackOverflow)
		}
		i.forStack[i.forTop] = frame
		i.forTop++
		i.pc = int(frame.resumePC)
		i.currentLine = i.lineContaining(i.pc)
	}
	return nil
}

// lineContaining returns the line number of the record that contains pc,
// used to keep current_line accurate after a NEXT jumps across lines.
func (i *Interpreter) lineContaining(pc int) uint16 {
	rec, ok := i.store.FirstLine()
	for ok {
		start := i.store.TokenOffset(rec)
		if pc >= start && pc < start+len(rec.Tokens) {
			return rec.Line
		}
		rec, ok = i.store.NextLine(rec)
	}
	return i.currentLine
}

func (i *Interpreter) execEOL() error {
	rec, ok := i.store.FindLine(i.currentLine)
	if !ok {
		i.running = false
		return nil
	}
	next, ok := i.store.NextLine(rec)
	if !ok {
		i.running = false
		return nil
	}
	i.pc = i.store.TokenOffset(next)
	i.currentLine = next.Line
	return nil
}

func (i *Interpreter) readLine() (string, error) {
	fmt.Fprint(i.out, "? ")
	line, err := i.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (i *Interpreter) execInput() error {
	i.pc++ // T_INPUT
	switch i.cur() {
	case token.Var:
		i.pc++
		idx := int(i.img[i.pc])
		i.pc++
		if idx < 1 || idx > 26 {
			return i.runErr(ecode.IndexOutOfRange)
		}
		line, err := i.readLine()
		if err != nil {
			return err
		}
		v, _ := strconv.ParseFloat(strings.TrimSpace(line), 64)
		cell := i.store.Var(idx)
		cell.Type = pstore.NumType
		cell.Num = v
		return nil
	case token.Svar:
		i.pc++
		idx := int(i.img[i.pc])
		i.pc++
		if idx < 1 || idx > 26 {
			return i.runErr(ecode.IndexOutOfRange)
		}
		line, err := i.readLine()
		if err != nil {
			return err
		}
		cell := i.store.Var(idx)
		cell.Type = pstore.StrType
		cell.Str = upperTrunc(line)
		return nil
	case token.Vidx:
		i.pc++
		idxVal, err := i.evalExpression()
		if err != nil {
			return err
		}
		i.expectEndx()
		idx := int(idxVal)
		if idx < 1 || idx > pstore.MaxVars {
			return i.runErr(ecode.IndexOutOfRange)
		}
		line, err := i.readLine()
		if err != nil {
			return err
		}
		v, _ := strconv.ParseFloat(strings.TrimSpace(line), 64)
		cell := i.store.Var(idx)
		cell.Type = pstore.NumType
		cell.Num = v
		return nil
	case token.Svix:
		i.pc++
		idxVal, err := i.evalExpression()
		if err != nil {
			return err
		}
		i.expectEndx()
		idx := int(idxVal)
		if idx < 1 || idx > pstore.MaxVars {
			return i.runErr(ecode.IndexOutOfRange)
		}
		line, err := i.readLine()
		if err != nil {
			return err
		}
		cell := i.store.Var(idx)
		cell.Type = pstore.StrType
		cell.Str = upperTrunc(line)
		return nil
	default:
		return i.runErr(ecode.SyntaxError)
	}
}

// areadInto stores the AREAD register's current value into idx, converting
// kind as needed, then clears the register.
func (i *Interpreter) areadInto(idx int, asString bool) error {
	cell := i.store.Var(idx)
	if asString {
		cell.Type = pstore.StrType
		if i.aread.isString {
			cell.Str = i.aread.str
		} else {
			cell.Str = formatNumber(i.aread.num)
		}
	} else {
		cell.Type = pstore.NumType
		if i.aread.isString {
			v, _ := strconv.ParseFloat(strings.TrimSpace(i.aread.str), 64)
			cell.Num = v
		} else {
			cell.Num = i.aread.num
		}
	}
	i.clearAread()
	return nil
}

func (i *Interpreter) execAread() error {
	i.pc++ // T_AREAD
	switch i.cur() {
	case token.Var:
		i.pc++
		idx := int(i.img[i.pc])
		i.pc++
		if idx < 1 || idx > 26 {
			return i.runErr(ecode.IndexOutOfRange)
		}
		return i.areadInto(idx, false)
	case token.Svar:
		i.pc++
		idx := int(i.img[i.pc])
		i.pc++
		if idx < 1 || idx > 26 {
			return i.runErr(ecode.IndexOutOfRange)
		}
		return i.areadInto(idx, true)
	case token.Vidx:
		i.pc++
		idxVal, err := i.evalExpression()
		if err != nil {
			return err
		}
		i.expectEndx()
		idx := int(idxVal)
		if idx < 1 || idx > pstore.MaxVars {
			return i.runErr(ecode.IndexOutOfRange)
		}
		return i.areadInto(idx, false)
	case token.Svix:
		i.pc++
		idxVal, err := i.evalExpression()
		if err != nil {
			return err
		}
		i.expectEndx()
		idx := int(idxVal)
		if idx < 1 || idx > pstore.MaxVars {
			return i.runErr(ecode.IndexOutOfRange)
		}
		return i.areadInto(idx, true)
	default:
		return i.runErr(ecode.SyntaxError)
	}
}
