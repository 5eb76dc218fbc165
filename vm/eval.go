package vm

import (
	"encoding/binary"
	"math"

	"github.com/fstark/pc1211/ecode"
	"github.com/fstark/pc1211/pstore"
	"github.com/fstark/pc1211/token"
)

func (i *Interpreter) cur() token.Tok {
	if i.pc >= len(i.img) {
		return token.EOL
	}
	return token.Tok(i.img[i.pc])
}

// enterExpr/exitExpr bound expression-evaluator recursion to the VM's fixed
// expression-stack depth: each nested evalExpression (parenthesized
// sub-expression, function argument, indexed-variable index) claims one
// slot and releases it on return. Unary minus recurses through evalFactor
// and claims no slot.
func (i *Interpreter) enterExpr() error {
	if i.exprTop >= ExprStackDepth {
		return i.runErr(ecode.StackOverflow)
	}
	i.exprTop++
	return nil
}

func (i *Interpreter) exitExpr() {
	i.exprTop--
}

// evalExpression implements expression ::= term ((+|-) term)*.
func (i *Interpreter) evalExpression() (float64, error) {
	if err := i.enterExpr(); err != nil {
		return 0, err
	}
	defer i.exitExpr()

	result, err := i.evalTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch i.cur() {
		case token.Plus:
			i.pc++
			rhs, err := i.evalTerm()
			if err != nil {
				return 0, err
			}
			result += rhs
		case token.Minus:
			i.pc++
			rhs, err := i.evalTerm()
			if err != nil {
				return 0, err
			}
			result -= rhs
		default:
			return result, nil
		}
	}
}

// evalTerm implements term ::= power ((*|/) power)*.
func (i *Interpreter) evalTerm() (float64, error) {
	result, err := i.evalPower()
	if err != nil {
		return 0, err
	}
	for {
		switch i.cur() {
		case token.Mul:
			i.pc++
			rhs, err := i.evalPower()
			if err != nil {
				return 0, err
			}
			result *= rhs
		case token.Div:
			i.pc++
			rhs, err := i.evalPower()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, i.runErr(ecode.DivisionByZero)
			}
			result /= rhs
		default:
			return result, nil
		}
	}
}

// evalPower implements power ::= factor ('^' power)?, right-associative.
func (i *Interpreter) evalPower() (float64, error) {
	result, err := i.evalFactor()
	if err != nil {
		return 0, err
	}
	if i.cur() == token.Pow {
		i.pc++
		exponent, err := i.evalPower()
		if err != nil {
			return 0, err
		}
		result = math.Pow(result, exponent)
		if !isFinite(result) {
			return 0, i.runErr(ecode.MathOverflow)
		}
	}
	return result, nil
}

// evalFactor implements factor ::= number | variable | A(expr) | (expr) |
// -factor | math function call.
func (i *Interpreter) evalFactor() (float64, error) {
	switch i.cur() {
	case token.Num:
		i.pc++
		v := i.readDouble()
		return v, nil

	case token.Var:
		i.pc++
		idx := int(i.img[i.pc])
		i.pc++
		if idx < 1 || idx > 26 {
			return 0, i.runErr(ecode.IndexOutOfRange)
		}
		cell := i.store.Var(idx)
		if cell.Type != pstore.NumType {
			return 0, i.runErr(ecode.TypeMismatch)
		}
		return cell.Num, nil

	case token.Vidx:
		i.pc++
		idxVal, err := i.evalExpression()
		if err != nil {
			return 0, err
		}
		i.expectEndx()
		idx := int(idxVal)
		if idx < 1 || idx > pstore.MaxVars {
			return 0, i.runErr(ecode.IndexOutOfRange)
		}
		cell := i.store.Var(idx)
		if cell.Type != pstore.NumType {
			return 0, i.runErr(ecode.TypeMismatch)
		}
		return cell.Num, nil

	case token.LP:
		i.pc++
		result, err := i.evalExpression()
		if err != nil {
			return 0, err
		}
		if i.cur() != token.RP {
			return 0, i.runErr(ecode.SyntaxError)
		}
		i.pc++
		return result, nil

	case token.Minus:
		i.pc++
		v, err := i.evalFactor()
		if err != nil {
			return 0, err
		}
		return -v, nil

	case token.Sin, token.Cos, token.Tan, token.Asn, token.Acs, token.Atn,
		token.Log, token.Ln, token.Exp, token.Sqr, token.Dms, token.Deg,
		token.Int, token.Abs, token.Sgn:
		return i.evalMathFunc(i.cur())

	default:
		return 0, i.runErr(ecode.SyntaxError)
	}
}

func (i *Interpreter) readDouble() float64 {
	bits := binary.LittleEndian.Uint64(i.img[i.pc:])
	i.pc += 8
	return math.Float64frombits(bits)
}

func (i *Interpreter) expectEndx() {
	if i.cur() == token.Endx {
		i.pc++
	}
}

// evalMathFunc evaluates fn(expr), the single-argument math functions.
func (i *Interpreter) evalMathFunc(fn token.Tok) (float64, error) {
	i.pc++ // opcode
	if i.cur() != token.LP {
		return 0, i.runErr(ecode.SyntaxError)
	}
	i.pc++
	arg, err := i.evalExpression()
	if err != nil {
		return 0, err
	}
	if i.cur() == token.RP {
		i.pc++
	}

	switch fn {
	case token.Sin:
		return math.Sin(i.toRadians(arg)), nil
	case token.Cos:
		return math.Cos(i.toRadians(arg)), nil
	case token.Tan:
		return math.Tan(i.toRadians(arg)), nil
	case token.Asn:
		if arg < -1 || arg > 1 {
			return 0, i.runErr(ecode.MathDomain)
		}
		return i.fromRadians(math.Asin(arg)), nil
	case token.Acs:
		if arg < -1 || arg > 1 {
			return 0, i.runErr(ecode.MathDomain)
		}
		return i.fromRadians(math.Acos(arg)), nil
	case token.Atn:
		return i.fromRadians(math.Atan(arg)), nil
	case token.Log:
		if arg <= 0 {
			return 0, i.runErr(ecode.MathDomain)
		}
		return math.Log10(arg), nil
	case token.Ln:
		if arg <= 0 {
			return 0, i.runErr(ecode.MathDomain)
		}
		return math.Log(arg), nil
	case token.Exp:
		result := math.Exp(arg)
		if !isFinite(result) {
			return 0, i.runErr(ecode.MathOverflow)
		}
		return result, nil
	case token.Sqr:
		if arg < 0 {
			return 0, i.runErr(ecode.MathDomain)
		}
		return math.Sqrt(arg), nil
	case token.Abs:
		return math.Abs(arg), nil
	case token.Int:
		return math.Floor(arg), nil
	case token.Sgn:
		switch {
		case arg < 0:
			return -1, nil
		case arg > 0:
			return 1, nil
		default:
			return 0, nil
		}
	case token.Dms:
		return dmsFromDecimal(arg), nil
	case token.Deg:
		return decimalFromDMS(arg), nil
	default:
		return 0, i.runErr(ecode.SyntaxError)
	}
}

func (i *Interpreter) toRadians(angle float64) float64 {
	switch i.angleMode {
	case Degree:
		return angle * (math.Pi / 180.0)
	case Grad:
		return angle * (math.Pi / 200.0)
	default:
		return angle
	}
}

func (i *Interpreter) fromRadians(radians float64) float64 {
	switch i.angleMode {
	case Degree:
		return radians * (180.0 / math.Pi)
	case Grad:
		return radians * (200.0 / math.Pi)
	default:
		return radians
	}
}

// dmsFromDecimal converts decimal degrees to DD.MMSS format, sign-preserving.
func dmsFromDecimal(arg float64) float64 {
	abs := math.Abs(arg)
	degrees := math.Floor(abs)
	decimalPart := abs - degrees
	totalMinutes := decimalPart * 60.0
	minutes := math.Floor(totalMinutes)
	decimalSeconds := (totalMinutes - minutes) * 60.0
	result := degrees + (minutes / 100.0) + (decimalSeconds / 10000.0)
	if arg < 0 {
		return -result
	}
	return result
}

// decimalFromDMS converts DD.MMSS format to decimal degrees, sign-preserving.
func decimalFromDMS(arg float64) float64 {
	abs := math.Abs(arg)
	degrees := math.Floor(abs)
	fractional := abs - degrees
	minutesPart := fractional * 100.0
	minutes := math.Floor(minutesPart)
	secondsPart := (minutesPart - minutes) * 100.0
	result := degrees + (minutes / 60.0) + (secondsPart / 3600.0)
	if arg < 0 {
		return -result
	}
	return result
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// value is a tagged operand used where a numeric expression and a string
// operand (literal, string variable, indexed string variable) can both
// appear — the operands of an IF condition. PRINT/PAUSE argument lists are
// read separately by printArgs.
type value struct {
	isStr bool
	num   float64
	str   string
}

// evalValue reads one operand: a string form if the next token introduces
// one, otherwise a full numeric expression.
func (i *Interpreter) evalValue() (value, error) {
	switch i.cur() {
	case token.Str:
		i.pc++
		n := int(i.img[i.pc])
		i.pc++
		s := string(i.img[i.pc : i.pc+n])
		i.pc += n
		return value{isStr: true, str: s}, nil
	case token.Svar:
		i.pc++
		idx := int(i.img[i.pc])
		i.pc++
		if idx < 1 || idx > 26 {
			return value{}, i.runErr(ecode.IndexOutOfRange)
		}
		cell := i.store.Var(idx)
		if cell.Type != pstore.StrType {
			return value{isStr: true, str: ""}, nil
		}
		return value{isStr: true, str: cell.Str}, nil
	case token.Svix:
		i.pc++
		idxVal, err := i.evalExpression()
		if err != nil {
			return value{}, err
		}
		i.expectEndx()
		idx := int(idxVal)
		if idx < 1 || idx > pstore.MaxVars {
			return value{}, i.runErr(ecode.IndexOutOfRange)
		}
		cell := i.store.Var(idx)
		if cell.Type != pstore.StrType {
			return value{isStr: true, str: ""}, nil
		}
		return value{isStr: true, str: cell.Str}, nil
	default:
		n, err := i.evalExpression()
		if err != nil {
			return value{}, err
		}
		return value{num: n}, nil
	}
}

// evalCondition evaluates `operand comparison-op operand`, as used by IF.
// Numeric comparisons support the full set {=,<>,<,<=,>,>=}; string
// comparisons support only {=,<>} and otherwise raise TypeMismatch. A
// string operand compared against a numeric one is also a TypeMismatch.
func (i *Interpreter) evalCondition() (bool, error) {
	left, err := i.evalValue()
	if err != nil {
		return false, err
	}
	op := i.cur()
	switch op {
	case token.EqAssign, token.Eq, token.Ne, token.Lt, token.Le, token.Gt, token.Ge:
		i.pc++
	default:
		return false, i.runErr(ecode.SyntaxError)
	}
	right, err := i.evalValue()
	if err != nil {
		return false, err
	}

	if left.isStr != right.isStr {
		return false, i.runErr(ecode.TypeMismatch)
	}
	if left.isStr {
		switch op {
		case token.EqAssign, token.Eq:
			return left.str == right.str, nil
		case token.Ne:
			return left.str != right.str, nil
		default:
			return false, i.runErr(ecode.TypeMismatch)
		}
	}
	switch op {
	case token.EqAssign, token.Eq:
		return left.num == right.num, nil
	case token.Ne:
		return left.num != right.num, nil
	case token.Lt:
		return left.num < right.num, nil
	case token.Le:
		return left.num <= right.num, nil
	case token.Gt:
		return left.num > right.num, nil
	case token.Ge:
		return left.num >= right.num, nil
	}
	return false, i.runErr(ecode.SyntaxError)
}
