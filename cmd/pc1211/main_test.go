package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fstark/pc1211/ecode"
	"github.com/fstark/pc1211/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runSource writes src to a temp file, loads it, and runs it with the given
// options, returning stdout and the run error (nil on normal termination).
func runSource(t *testing.T, src string, opts ...vm.Option) (string, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.bas")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	store, err := loadProgram(path)
	require.NoError(t, err)

	var out bytes.Buffer
	interp, err := vm.New(store, append([]vm.Option{vm.WithOutput(&out)}, opts...)...)
	require.NoError(t, err)

	return out.String(), interp.Run()
}

func TestScenarioArithmeticAndPrint(t *testing.T) {
	out, err := runSource(t, "10 A=1: B=2: PRINT A+B\n")
	assert.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestScenarioForNextLoop(t *testing.T) {
	out, err := runSource(t, "10 FOR I=1 TO 3 : PRINT I : NEXT I\n")
	assert.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestScenarioGosubReturn(t *testing.T) {
	src := "10 GOSUB 100\n20 PRINT \"X\"\n30 END\n100 PRINT \"Y\"\n110 RETURN\n"
	out, err := runSource(t, src)
	assert.NoError(t, err)
	assert.Equal(t, "Y\nX\n", out)
}

func TestScenarioDivisionByZero(t *testing.T) {
	_, err := runSource(t, "10 A=1/0\n")
	require.Error(t, err)
	rerr, ok := err.(*ecode.Error)
	require.True(t, ok)
	assert.Equal(t, ecode.DivisionByZero, rerr.Code)
	assert.Equal(t, uint16(10), rerr.Line)
	assert.Equal(t, "Error 1 at line 10: Division by zero", rerr.Error())
}

func TestScenarioIndexOutOfRange(t *testing.T) {
	_, err := runSource(t, "10 A(600)=1\n")
	require.Error(t, err)
	rerr, ok := err.(*ecode.Error)
	require.True(t, ok)
	assert.Equal(t, ecode.IndexOutOfRange, rerr.Code)
	assert.Contains(t, rerr.Error(), "Error 4 at line 10: Index out of range")
}

func TestScenarioForStepZero(t *testing.T) {
	_, err := runSource(t, "10 FOR I=1 TO 2 STEP 0 : NEXT I\n")
	require.Error(t, err)
	rerr, ok := err.(*ecode.Error)
	require.True(t, ok)
	assert.Equal(t, ecode.ForStepZero, rerr.Code)
	assert.Contains(t, rerr.Error(), "FOR step cannot be zero")
	assert.Equal(t, uint16(10), rerr.Line)
}

func TestScenarioAreadPreload(t *testing.T) {
	out, err := runSource(t, "10 AREAD A : PRINT A*2\n", vm.WithAreadValue(7))
	assert.NoError(t, err)
	assert.Equal(t, "14\n", out)
}

func TestScenarioLabelLoop(t *testing.T) {
	src := "10 \"LOOP\" A=A+1 : IF A<3 GOTO \"LOOP\"\n20 PRINT A\n"
	out, err := runSource(t, src)
	assert.NoError(t, err)
	assert.Equal(t, "3\n", out)
}
