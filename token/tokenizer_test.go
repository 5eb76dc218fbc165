package token

import (
	"strings"
	"testing"

	"github.com/fstark/pc1211/ecode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenize(t *testing.T, src string) []byte {
	t.Helper()
	lineNum, body, err := ParseLine(src)
	require.NoError(t, err)
	toks, err := TokenizeLine(body, lineNum)
	require.NoError(t, err)
	return toks
}

func TestParseLineExtractsNumber(t *testing.T) {
	n, body, err := ParseLine("  10 PRINT 1")
	require.NoError(t, err)
	assert.Equal(t, uint16(10), n)
	assert.Equal(t, " PRINT 1", body)
}

func TestParseLineRejectsBadLineNumber(t *testing.T) {
	_, _, err := ParseLine("0 PRINT 1")
	assert.Equal(t, ecode.BadLineNumber, err.(*ecode.Error).Code)

	_, _, err = ParseLine("PRINT 1")
	assert.Equal(t, ecode.BadLineNumber, err.(*ecode.Error).Code)

	_, _, err = ParseLine("1000 PRINT 1")
	assert.Equal(t, ecode.BadLineNumber, err.(*ecode.Error).Code)
}

func TestTokenizeNumberLiteral(t *testing.T) {
	toks := tokenize(t, "10 3.5")
	assert.Equal(t, Num, Tok(toks[0]))
	next, err := Skip(toks, 0)
	require.NoError(t, err)
	assert.Equal(t, EOL, Tok(toks[next]))
}

func TestTokenizeStringLiteralUppercasedAndTruncated(t *testing.T) {
	toks := tokenize(t, `10 "hello world"`)
	assert.Equal(t, Str, Tok(toks[0]))
	n := int(toks[1])
	assert.Equal(t, 7, n)
	assert.Equal(t, "HELLO W", string(toks[2:2+n]))
}

func TestTokenizeUnterminatedStringIsSyntaxError(t *testing.T) {
	_, body, err := ParseLine(`10 PRINT "hello`)
	require.NoError(t, err)
	_, err = TokenizeLine(body, 10)
	require.Error(t, err)
	assert.Equal(t, ecode.SyntaxError, err.(*ecode.Error).Code)
}

func TestTokenizeVariableAndIndexedForms(t *testing.T) {
	toks := tokenize(t, "10 B=A(2)")
	assert.Equal(t, Var, Tok(toks[0]))
	assert.Equal(t, byte(2), toks[1]) // B -> slot 2
	assert.Equal(t, EqAssign, Tok(toks[2]))
	assert.Equal(t, Vidx, Tok(toks[3]))
}

func TestTokenizeStringVariable(t *testing.T) {
	toks := tokenize(t, `10 A$="HI"`)
	assert.Equal(t, Svar, Tok(toks[0]))
	assert.Equal(t, byte(1), toks[1])
}

func TestKeywordAbbreviationsMatchFullSpelling(t *testing.T) {
	full := tokenize(t, "10 PRINT 1")
	abbrev := tokenize(t, "10 P. 1")
	assert.Equal(t, Print, Tok(full[0]))
	assert.Equal(t, Print, Tok(abbrev[0]))
}

func TestKeywordMatchIsCaseInsensitive(t *testing.T) {
	toks := tokenize(t, "10 print 1")
	assert.Equal(t, Print, Tok(toks[0]))
}

func TestRemSwallowsRestOfLine(t *testing.T) {
	// The whole remainder becomes a single T_STR payload (colons and quotes
	// inside it are just comment text, not further tokens), subject to the
	// same 7-byte/uppercase literal encoding as any other string literal.
	toks := tokenize(t, `10 REM this : is "all" comment`)
	assert.Equal(t, Rem, Tok(toks[0]))
	assert.Equal(t, Str, Tok(toks[1]))
	n := int(toks[2])
	assert.Equal(t, 7, n)
	assert.Equal(t, "THIS : ", string(toks[3:3+n]))
	next, err := Skip(toks, 1)
	require.NoError(t, err)
	assert.Equal(t, EOL, Tok(toks[next]))
}

func TestTokenizeLineTooLong(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("A=A+1:")
	}
	_, err := TokenizeLine(b.String(), 10)
	require.Error(t, err)
	assert.Equal(t, ecode.LineTooLong, err.(*ecode.Error).Code)
}

func TestCompoundComparisonOperators(t *testing.T) {
	toks := tokenize(t, "10 IF A<>1")
	assert.Equal(t, If, Tok(toks[0]))
	// A -> Var, then <>
	assert.Equal(t, Var, Tok(toks[1]))
	assert.Equal(t, Ne, Tok(toks[3]))
}
