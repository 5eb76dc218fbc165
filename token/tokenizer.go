package token

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/fstark/pc1211/ecode"
)

// keywords holds each keyword's full spelling and its optional abbreviated
// form (ending in '.'), matching the calculator's own keyword table so that
// e.g. "P." tokenizes identically to "PRINT".
var keywords = []struct {
	word, abbrev string
	tok          Tok
}{
	{"SIN", "SI.", Sin}, {"COS", "", Cos}, {"TAN", "TA.", Tan},
	{"ASN", "AS.", Asn}, {"ACS", "AC.", Acs}, {"ATN", "AT.", Atn},
	{"LOG", "LO.", Log}, {"LN", "", Ln}, {"EXP", "EX.", Exp},
	{"SQR", "", Sqr}, {"DMS", "DM.", Dms}, {"DEG", "", Deg},
	{"INT", "", Int}, {"ABS", "AB.", Abs}, {"SGN", "SG.", Sgn},

	{"LET", "LE.", Let}, {"PRINT", "P.", Print}, {"INPUT", "I.", Input},
	{"IF", "", If}, {"THEN", "T.", Then}, {"GOTO", "G.", Goto},
	{"GOSUB", "GOS.", Gosub}, {"RETURN", "RE.", Return}, {"FOR", "F.", For},
	{"TO", "", To}, {"STEP", "STE.", Step}, {"NEXT", "N.", Next},
	{"END", "E.", End}, {"STOP", "S.", Stop}, {"REM", "", Rem},

	{"DEGREE", "DEG.", Degree}, {"RADIAN", "RA.", Radian}, {"GRAD", "", Grad},
	{"CLEAR", "CL.", Clear}, {"BEEP", "B.", Beep}, {"PAUSE", "PA.", Pause},
	{"AREAD", "A.", Aread}, {"USING", "U.", Using},
}

// ErrSet accumulates tokenize errors across a whole source file, following
// the accumulating-error pattern used by the assembler's own parser.
type ErrSet []error

func (e ErrSet) Error() string {
	var b strings.Builder
	for i, err := range e {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// scanner walks one line of BASIC source, emitting token bytes into buf.
type scanner struct {
	src  string
	pos  int
	line uint16
	buf  []byte
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

func (s *scanner) emit(op Tok) {
	s.buf = append(s.buf, byte(op))
}

func (s *scanner) emitNum(v float64) {
	s.buf = append(s.buf, byte(Num))
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	s.buf = append(s.buf, b[:]...)
}

// maxStrLen is the cell and literal string capacity (STR_MAX).
const maxStrLen = 7

func (s *scanner) emitStr(lit string) error {
	lit = strings.ToUpper(lit)
	if len(lit) > maxStrLen {
		lit = lit[:maxStrLen]
	}
	s.buf = append(s.buf, byte(Str), byte(len(lit)))
	s.buf = append(s.buf, lit...)
	return nil
}

func (s *scanner) emitVarIndex(base Tok, idx int) {
	s.buf = append(s.buf, byte(base), byte(idx))
}

// TokenizeLine tokenizes the statement text of one source line into a
// line-record token stream ending in T_EOL. The line number has already been
// stripped by the caller (ParseLine); lineNumber is only used to tag errors.
func TokenizeLine(src string, lineNumber uint16) ([]byte, error) {
	s := &scanner{src: src, line: lineNumber}
	if err := s.tokenizeStatements(); err != nil {
		return nil, err
	}
	s.emit(EOL)
	if len(s.buf) > maxLineBytes {
		return nil, ecode.New(ecode.LineTooLong, lineNumber)
	}
	return s.buf, nil
}

// maxLineBytes is the tokenized-line size ceiling (LINE_TOO_LONG).
const maxLineBytes = 256

// ParseLine splits a raw source line into its leading line number and the
// remaining statement text, mirroring tokenize_line's own leading-digits
// scan in the original implementation.
func ParseLine(raw string) (uint16, string, error) {
	raw = strings.TrimRight(raw, "\r\n")
	i := 0
	for i < len(raw) && raw[i] == ' ' {
		i++
	}
	start := i
	for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
		i++
	}
	if i == start {
		return 0, "", ecode.New(ecode.BadLineNumber, 0)
	}
	n, err := strconv.Atoi(raw[start:i])
	if err != nil || n <= 0 || n > 999 {
		return 0, "", ecode.New(ecode.BadLineNumber, 0)
	}
	return uint16(n), raw[i:], nil
}

func (s *scanner) tokenizeStatements() error {
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return nil
		}
		c := s.peek()
		switch {
		case c == '"':
			if err := s.parseString(); err != nil {
				return err
			}
		case c >= '0' && c <= '9' || c == '.':
			s.parseNumber()
		case c == '+':
			s.pos++
			s.emit(Plus)
		case c == '-':
			s.pos++
			s.emit(Minus)
		case c == '*':
			s.pos++
			s.emit(Mul)
		case c == '/':
			s.pos++
			s.emit(Div)
		case c == '^':
			s.pos++
			s.emit(Pow)
		case c == '(':
			s.pos++
			s.emit(LP)
		case c == ')':
			s.pos++
			s.emit(RP)
		case c == ',':
			s.pos++
			s.emit(Comma)
		case c == ';':
			s.pos++
			s.emit(Semi)
		case c == ':':
			s.pos++
			s.emit(Colon)
		case c == '=':
			s.pos++
			s.emit(EqAssign)
		case c == '<':
			s.pos++
			if s.peek() == '>' {
				s.pos++
				s.emit(Ne)
			} else if s.peek() == '=' {
				s.pos++
				s.emit(Le)
			} else {
				s.emit(Lt)
			}
		case c == '>':
			s.pos++
			if s.peek() == '=' {
				s.pos++
				s.emit(Ge)
			} else {
				s.emit(Gt)
			}
		case isAlpha(c):
			if err := s.parseWord(); err != nil {
				return err
			}
		default:
			return ecode.New(ecode.SyntaxError, s.line)
		}
	}
}

func isAlpha(c byte) bool {
	return unicode.IsLetter(rune(c)) && ((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z'))
}

func isWordChar(c byte) bool {
	return isAlpha(c) || c == '.' || c == '$'
}

func (s *scanner) parseNumber() {
	start := s.pos
	for s.pos < len(s.src) && (s.src[s.pos] >= '0' && s.src[s.pos] <= '9' || s.src[s.pos] == '.') {
		s.pos++
	}
	if s.pos < len(s.src) && (s.src[s.pos] == 'E' || s.src[s.pos] == 'e') {
		s.pos++
		if s.pos < len(s.src) && (s.src[s.pos] == '+' || s.src[s.pos] == '-') {
			s.pos++
		}
		for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
			s.pos++
		}
	}
	v, _ := strconv.ParseFloat(s.src[start:s.pos], 64)
	s.emitNum(v)
}

func (s *scanner) parseString() error {
	s.pos++ // opening quote
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] != '"' {
		s.pos++
	}
	if s.pos >= len(s.src) {
		return ecode.New(ecode.SyntaxError, s.line)
	}
	lit := s.src[start:s.pos]
	s.pos++ // closing quote
	return s.emitStr(lit)
}

// parseWord handles REM (the rest of the line becomes one T_STR literal),
// keyword matching, math function
// names, and variable references including indexed A(expr) and string
// variable A$ / A$(expr) forms.
func (s *scanner) parseWord() error {
	start := s.pos
	for s.pos < len(s.src) && isWordChar(s.src[s.pos]) {
		s.pos++
	}
	word := strings.ToUpper(s.src[start:s.pos])

	if word == "REM" {
		s.emit(Rem)
		s.skipSpace()
		comment := strings.TrimRight(s.src[s.pos:], " \t")
		s.pos = len(s.src)
		if comment != "" {
			return s.emitStr(comment)
		}
		return nil
	}

	if tok, ok := matchKeyword(word); ok {
		s.emit(tok)
		return nil
	}

	// Single-letter variable, optionally string-tagged with '$' and
	// optionally indexed with (expr). Every indexed form — whichever
	// letter introduces it — addresses the same shared 512-cell array,
	// so T_VIDX/T_SVIDX carry no index byte of their own.
	bare := strings.TrimSuffix(word, "$")
	if len(bare) == 1 && bare[0] >= 'A' && bare[0] <= 'Z' {
		letter := bare[0]
		idx := int(letter - 'A' + 1)
		isString := strings.HasSuffix(word, "$")
		s.skipSpace()
		if s.peek() == '(' {
			s.pos++ // consume '('
			if isString {
				s.emit(Svix)
			} else {
				s.emit(Vidx)
			}
			if err := s.tokenizeParenExpr(); err != nil {
				return err
			}
			return nil
		}
		if isString {
			s.emitVarIndex(Svar, idx)
		} else {
			s.emitVarIndex(Var, idx)
		}
		return nil
	}
	return ecode.New(ecode.SyntaxError, s.line)
}

// tokenizeParenExpr tokenizes the contents of an indexed reference up to and
// including its closing ')', terminating the nested token run with T_ENDX.
func (s *scanner) tokenizeParenExpr() error {
	depth := 1
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return ecode.New(ecode.SyntaxError, s.line)
		}
		if s.peek() == ')' {
			depth--
			s.pos++
			if depth == 0 {
				s.emit(Endx)
				return nil
			}
			s.emit(RP)
			continue
		}
		if s.peek() == '(' {
			depth++
			s.pos++
			s.emit(LP)
			continue
		}
		before := s.pos
		if err := s.tokenizeOneExprToken(); err != nil {
			return err
		}
		if s.pos == before {
			return ecode.New(ecode.SyntaxError, s.line)
		}
	}
}

// tokenizeOneExprToken emits exactly one token of an expression, reusing the
// same per-character dispatch as tokenizeStatements but without consuming
// statement-only punctuation.
func (s *scanner) tokenizeOneExprToken() error {
	c := s.peek()
	switch {
	case c == '"':
		return s.parseString()
	case c >= '0' && c <= '9' || c == '.':
		s.parseNumber()
		return nil
	case c == '+':
		s.pos++
		s.emit(Plus)
	case c == '-':
		s.pos++
		s.emit(Minus)
	case c == '*':
		s.pos++
		s.emit(Mul)
	case c == '/':
		s.pos++
		s.emit(Div)
	case c == '^':
		s.pos++
		s.emit(Pow)
	case c == ',':
		s.pos++
		s.emit(Comma)
	case c == '<':
		s.pos++
		if s.peek() == '>' {
			s.pos++
			s.emit(Ne)
		} else if s.peek() == '=' {
			s.pos++
			s.emit(Le)
		} else {
			s.emit(Lt)
		}
	case c == '>':
		s.pos++
		if s.peek() == '=' {
			s.pos++
			s.emit(Ge)
		} else {
			s.emit(Gt)
		}
	case c == '=':
		s.pos++
		s.emit(EqAssign)
	case isAlpha(c):
		return s.parseWord()
	default:
		return ecode.New(ecode.SyntaxError, s.line)
	}
	return nil
}

func matchKeyword(word string) (Tok, bool) {
	for _, k := range keywords {
		if k.word == word || (k.abbrev != "" && k.abbrev == word) {
			return k.tok, true
		}
	}
	return 0, false
}
