// Package token defines the PC-1211 byte-coded token alphabet and the
// primitives for walking a token stream one instruction at a time.
package token

import "github.com/pkg/errors"

// Tok is a single token opcode in a tokenized program line.
type Tok byte

// Structural and literal tokens.
const (
	EOL  Tok = 0x00 // end of a statement line; no inline payload
	Num  Tok = 0x01 // literal number; followed by 8 bytes (float64, LE)
	Str  Tok = 0x02 // literal string; followed by 1 length byte + bytes
	Var  Tok = 0x03 // simple variable reference; followed by 1 index byte
	Vidx Tok = 0x04 // indexed variable reference A(expr); nested expression follows
	Svar Tok = 0x05 // simple string-variable reference; followed by 1 index byte
	Svix Tok = 0x06 // indexed string-variable reference; nested expression follows
	Endx Tok = 0xFF // closes a T_VIDX/T_SVIDX nested expression
)

// Operators.
const (
	EqAssign Tok = 0x10
	Plus     Tok = 0x11
	Minus    Tok = 0x12
	Mul      Tok = 0x13
	Div      Tok = 0x14
	Pow      Tok = 0x15
	LP       Tok = 0x16
	RP       Tok = 0x17
	Comma    Tok = 0x18
	Semi     Tok = 0x19
	Colon    Tok = 0x1A
	Eq       Tok = 0x1B
	Ne       Tok = 0x1C
	Lt       Tok = 0x1D
	Le       Tok = 0x1E
	Gt       Tok = 0x1F
	Ge       Tok = 0x20
)

// Math functions.
const (
	Sin Tok = 0x30
	Cos Tok = 0x31
	Tan Tok = 0x32
	Asn Tok = 0x33
	Acs Tok = 0x34
	Atn Tok = 0x35
	Log Tok = 0x36
	Ln  Tok = 0x37
	Exp Tok = 0x38
	Sqr Tok = 0x39
	Dms Tok = 0x3A
	Deg Tok = 0x3B
	Int Tok = 0x3C
	Abs Tok = 0x3D
	Sgn Tok = 0x3E
)

// Statements.
const (
	Let    Tok = 0x40
	Print  Tok = 0x41
	Input  Tok = 0x42
	If     Tok = 0x43
	Then   Tok = 0x44
	Goto   Tok = 0x45
	Gosub  Tok = 0x46
	Return Tok = 0x47
	For    Tok = 0x48
	To     Tok = 0x49
	Step   Tok = 0x4A
	Next   Tok = 0x4B
	End    Tok = 0x4C
	Stop   Tok = 0x4D
	Rem    Tok = 0x4E
)

// Mode and device statements.
const (
	Degree Tok = 0x50
	Radian Tok = 0x51
	Grad   Tok = 0x52
	Clear  Tok = 0x53
	Beep   Tok = 0x54
	Pause  Tok = 0x55
	Aread  Tok = 0x56
	Using  Tok = 0x57
)

var names = map[Tok]string{
	EOL: "EOL", Num: "NUM", Str: "STR", Var: "VAR", Vidx: "VIDX",
	Svar: "SVAR", Svix: "SVIDX", Endx: "ENDX",
	EqAssign: "=", Plus: "+", Minus: "-", Mul: "*", Div: "/", Pow: "^",
	LP: "(", RP: ")", Comma: ",", Semi: ";", Colon: ":",
	Eq: "=", Ne: "<>", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
	Sin: "SIN", Cos: "COS", Tan: "TAN", Asn: "ASN", Acs: "ACS", Atn: "ATN",
	Log: "LOG", Ln: "LN", Exp: "EXP", Sqr: "SQR", Dms: "DMS", Deg: "DEG",
	Int: "INT", Abs: "ABS", Sgn: "SGN",
	Let: "LET", Print: "PRINT", Input: "INPUT", If: "IF", Then: "THEN",
	Goto: "GOTO", Gosub: "GOSUB", Return: "RETURN", For: "FOR", To: "TO",
	Step: "STEP", Next: "NEXT", End: "END", Stop: "STOP", Rem: "REM",
	Degree: "DEGREE", Radian: "RADIAN", Grad: "GRAD", Clear: "CLEAR",
	Beep: "BEEP", Pause: "PAUSE", Aread: "AREAD", Using: "USING",
}

// Name returns the canonical BASIC spelling for t, or "???" for an
// unrecognized opcode byte.
func (t Tok) Name() string {
	if n, ok := names[t]; ok {
		return n
	}
	return "???"
}

// Skip returns the offset of the token immediately following the one at
// buf[pos], by consuming exactly the inline operand bytes that opcode
// carries. It does not recurse into T_VIDX/T_SVIDX nested expressions: it
// steps over the bare opcode only — callers that need to skip a whole indexed
// reference must walk until they see T_ENDX themselves, mirroring how the
// byte-threaded VM resumes execution one token at a time rather than
// pre-parsing a tree.
func Skip(buf []byte, pos int) (int, error) {
	if pos < 0 || pos >= len(buf) {
		return 0, errors.Errorf("token.Skip: pos %d out of range (len %d)", pos, len(buf))
	}
	op := Tok(buf[pos])
	switch op {
	case Num:
		if pos+9 > len(buf) {
			return 0, errors.Errorf("token.Skip: truncated NUM token at %d", pos)
		}
		return pos + 9, nil
	case Str:
		if pos+2 > len(buf) {
			return 0, errors.Errorf("token.Skip: truncated STR token at %d", pos)
		}
		n := int(buf[pos+1])
		if pos+2+n > len(buf) {
			return 0, errors.Errorf("token.Skip: truncated STR payload at %d", pos)
		}
		return pos + 2 + n, nil
	case Var, Svar:
		if pos+2 > len(buf) {
			return 0, errors.Errorf("token.Skip: truncated VAR token at %d", pos)
		}
		return pos + 2, nil
	case Vidx, Svix:
		// Bare opcode: every indexed reference addresses the same shared
		// 512-cell array regardless of which letter introduced it, so no
		// index byte follows. The nested expression that follows is a
		// separate run of tokens terminated by T_ENDX, walked by the
		// caller rather than skipped here.
		return pos + 1, nil
	default:
		return pos + 1, nil
	}
}
