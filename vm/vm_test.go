package vm

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/fstark/pc1211/ecode"
	"github.com/fstark/pc1211/pstore"
	"github.com/fstark/pc1211/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build compiles src (one numbered line per text line, newline-separated)
// into a fresh program store.
func build(t *testing.T, src string) *pstore.Store {
	t.Helper()
	store := pstore.New()
	for _, raw := range strings.Split(strings.TrimSpace(src), "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		lineNum, body, err := token.ParseLine(raw)
		require.NoError(t, err)
		toks, err := token.TokenizeLine(body, lineNum)
		require.NoError(t, err)
		require.NoError(t, store.AddLine(lineNum, toks))
	}
	return store
}

func runOK(t *testing.T, src string, opts ...Option) string {
	t.Helper()
	store := build(t, src)
	var out bytes.Buffer
	interp, err := New(store, append([]Option{WithOutput(&out), noSleep()}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, interp.Run())
	return out.String()
}

func runErr(t *testing.T, src string) *ecode.Error {
	t.Helper()
	store := build(t, src)
	interp, err := New(store, WithOutput(&bytes.Buffer{}), noSleep())
	require.NoError(t, err)
	runErr := interp.Run()
	require.Error(t, runErr)
	rerr, ok := runErr.(*ecode.Error)
	require.True(t, ok, "expected *ecode.Error, got %T: %v", runErr, runErr)
	return rerr
}

func noSleep() Option {
	return func(i *Interpreter) error {
		i.sleep = func(time.Duration) {}
		return nil
	}
}

func TestArithmeticPrecedence(t *testing.T) {
	out := runOK(t, `10 PRINT 2+3*4`)
	assert.Equal(t, "14\n", out)
}

func TestPowerIsRightAssociative(t *testing.T) {
	out := runOK(t, `10 PRINT 2^3^2`)
	assert.Equal(t, "512\n", out) // 2^(3^2) = 2^9
}

func TestSharedArrayAliasing(t *testing.T) {
	out := runOK(t, "10 A=5\n20 B=A(1)\n30 PRINT B\n")
	assert.Equal(t, "5\n", out)
}

func TestDivisionByZero(t *testing.T) {
	rerr := runErr(t, `10 PRINT 1/0`)
	assert.Equal(t, ecode.DivisionByZero, rerr.Code)
}

func TestSqrNegativeIsMathDomain(t *testing.T) {
	rerr := runErr(t, `10 PRINT SQR(-1)`)
	assert.Equal(t, ecode.MathDomain, rerr.Code)
}

func TestNumericReadOfStringCellIsTypeMismatch(t *testing.T) {
	rerr := runErr(t, "10 A$=\"HI\"\n20 PRINT A*2\n")
	assert.Equal(t, ecode.TypeMismatch, rerr.Code)
}

func TestStringComparisonEquality(t *testing.T) {
	out := runOK(t, "10 A$=\"HI\"\n20 IF A$=\"HI\" PRINT 1\n")
	assert.Equal(t, "1\n", out)
}

func TestStringComparisonOrderingIsTypeMismatch(t *testing.T) {
	rerr := runErr(t, "10 A$=\"HI\"\n20 IF A$<\"ZZ\" PRINT 1\n")
	assert.Equal(t, ecode.TypeMismatch, rerr.Code)
}

func TestForStepNegativeZeroIterations(t *testing.T) {
	out := runOK(t, "10 FOR I=1 TO 5 STEP -1 : PRINT I : NEXT I\n20 PRINT 99\n")
	assert.Equal(t, "99\n", out)
}

func TestNamedNextDiscardsIntervening(t *testing.T) {
	// NEXT I on line 30 always finds I beneath J on the FOR stack, so every
	// pass through the outer loop discards the inner FOR J frame before it
	// ever reaches a NEXT J — J is pushed and dropped once per outer pass
	// without ever completing a second iteration of its own. The outer loop
	// still runs its normal two passes (I=1, I=2) and, as with any FOR/NEXT
	// loop whose final value is read after it exits, I is left one step past
	// its limit.
	src := "10 FOR I=1 TO 2\n20 FOR J=1 TO 2\n30 NEXT I\n40 PRINT I\n"
	out := runOK(t, src)
	assert.Equal(t, "3\n", out)
}

func TestReturnWithoutGosub(t *testing.T) {
	rerr := runErr(t, `10 RETURN`)
	assert.Equal(t, ecode.ReturnWithoutGosub, rerr.Code)
}

func TestNextWithoutFor(t *testing.T) {
	rerr := runErr(t, `10 NEXT I`)
	assert.Equal(t, ecode.NextWithoutFor, rerr.Code)
}

func TestGotoBadLineNumber(t *testing.T) {
	rerr := runErr(t, `10 GOTO 999`)
	assert.Equal(t, ecode.BadLineNumber, rerr.Code)
}

func TestAngleModeDegree(t *testing.T) {
	out := runOK(t, "10 PRINT SIN(90)\n", WithAngleMode(Degree))
	assert.Equal(t, "1\n", out)
}

func TestDmsDegRoundTrip(t *testing.T) {
	d := dmsFromDecimal(30.5025)
	back := decimalFromDMS(d)
	assert.InDelta(t, 30.5025, back, 1e-9)
}

func TestPauseUsesSamePrintingAsPrint(t *testing.T) {
	out := runOK(t, `10 PAUSE "X",1`)
	assert.Equal(t, "X 1\n", out)
}

func TestIndexedAssignOutOfRangeHigh(t *testing.T) {
	rerr := runErr(t, `10 A(513)=1`)
	assert.Equal(t, ecode.IndexOutOfRange, rerr.Code)
}

func TestBeepWritesBell(t *testing.T) {
	out := runOK(t, `10 BEEP`)
	assert.Equal(t, "\a", out)
}

func TestExpressionDepthBeyondCapacityOverflows(t *testing.T) {
	var b strings.Builder
	b.WriteString("10 PRINT ")
	for i := 0; i < ExprStackDepth+4; i++ {
		b.WriteString("(")
	}
	b.WriteString("1")
	for i := 0; i < ExprStackDepth+4; i++ {
		b.WriteString(")")
	}
	rerr := runErr(t, b.String())
	assert.Equal(t, ecode.StackOverflow, rerr.Code)
}

func TestIsFiniteRejectsInfAndNaN(t *testing.T) {
	assert.False(t, isFinite(math.Inf(1)))
	assert.False(t, isFinite(math.NaN()))
	assert.True(t, isFinite(1.0))
}
