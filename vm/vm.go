// Package vm implements the byte-threaded virtual machine: a recursive
// descent expression evaluator and a statement dispatcher operating
// directly over a pstore.Store's token buffer.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fstark/pc1211/ecode"
	"github.com/fstark/pc1211/pstore"
	"github.com/pkg/errors"
)

// AngleMode selects how trigonometric function arguments/results are
// converted to and from radians.
type AngleMode int

const (
	Radian AngleMode = iota
	Degree
	Grad
)

// Stack depth limits, fixed capacity per the three-stack VM-state design.
const (
	ExprStackDepth = 32
	CallStackDepth = 16
	ForStackDepth  = 16
)

type callFrame struct {
	returnPC   int
	returnLine uint16
}

type forFrame struct {
	resumePC uint16 // pc_after_for, as an offset into the image
	varIdx   int
	limit    float64
	step     float64
}

type aread struct {
	isString bool
	num      float64
	str      string
}

// Interpreter owns all mutable VM state: program counter, current line,
// running flag, angle mode, the AREAD staging register, and the three
// fixed-capacity stacks. There is no global state; every run gets its own
// value, so interpreters are safe to use concurrently as long as each one
// is driven by a single goroutine.
type Interpreter struct {
	store *pstore.Store
	img   []byte

	pc          int
	currentLine uint16
	running     bool
	angleMode   AngleMode

	exprStack [ExprStackDepth]float64
	exprTop   int

	callStack [CallStackDepth]callFrame
	callTop   int

	forStack [ForStackDepth]forFrame
	forTop   int

	aread aread

	out   io.Writer
	in    *bufio.Reader
	sleep func(time.Duration)
}

// Option configures an Interpreter at construction time.
type Option func(*Interpreter) error

// WithAngleMode sets the initial angle mode (default Radian).
func WithAngleMode(m AngleMode) Option {
	return func(i *Interpreter) error {
		i.angleMode = m
		return nil
	}
}

// WithOutput directs PRINT/PAUSE/BEEP output to w (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(i *Interpreter) error {
		i.out = w
		return nil
	}
}

// WithInput sources INPUT reads from r (default os.Stdin).
func WithInput(r io.Reader) Option {
	return func(i *Interpreter) error {
		i.in = bufio.NewReader(r)
		return nil
	}
}

// WithAreadValue preloads the AREAD register with a numeric value.
func WithAreadValue(v float64) Option {
	return func(i *Interpreter) error {
		i.aread = aread{isString: false, num: v}
		return nil
	}
}

// WithAreadString preloads the AREAD register with a string value,
// uppercased and truncated to the cell string capacity.
func WithAreadString(s string) Option {
	return func(i *Interpreter) error {
		i.aread = aread{isString: true, str: upperTrunc(s)}
		return nil
	}
}

// New builds an Interpreter bound to store, applying opts in order.
func New(store *pstore.Store, opts ...Option) (*Interpreter, error) {
	i := &Interpreter{
		store: store,
		out:   os.Stdout,
		in:    bufio.NewReader(os.Stdin),
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, errors.Wrap(err, "vm.New")
		}
	}
	return i, nil
}

// Run executes the loaded program from its first line until it halts
// (END/STOP, falling off the last line, or an error). A panic escaping the
// statement dispatcher (a defensive backstop for a malformed image; should
// not happen against a well-formed pstore.Store) is converted into a
// wrapped error instead of crashing the host process.
func (i *Interpreter) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(fmt.Errorf("%v", r), "recovered panic @pc=%d at line %d", i.pc, i.currentLine)
		}
	}()

	i.img = i.store.Image()
	first, ok := i.store.FirstLine()
	if !ok {
		return nil
	}
	i.pc = i.store.TokenOffset(first)
	i.currentLine = first.Line
	i.running = true

	for i.running {
		if err := i.step(); err != nil {
			return err
		}
	}
	return nil
}

func upperTrunc(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	if len(b) > pstore.MaxStrLen {
		b = b[:pstore.MaxStrLen]
	}
	return string(b)
}

// runErr builds an *ecode.Error at the interpreter's current line.
func (i *Interpreter) runErr(code ecode.Code) error {
	return ecode.New(code, i.currentLine)
}
