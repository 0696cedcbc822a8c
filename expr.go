package carve

import "strconv"

// Op identifies a primitive field operation. The eval package compiles
// trees of these operations into flat evaluator programs.
type Op uint8

const (
	OpConst Op = iota
	OpVarX
	OpVarY
	OpVarZ
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMin
	OpMax
	OpNeg
	OpAbs
	OpSquare
	OpSqrt
	OpSin
	OpCos
	OpExp
)

// NumArgs returns how many operands the operation consumes.
func (op Op) NumArgs() int {
	switch {
	case op <= OpVarZ:
		return 0
	case op <= OpMax:
		return 2
	default:
		return 1
	}
}

// String returns a short lower-case mnemonic for the operation.
func (op Op) String() string {
	switch op {
	case OpConst:
		return "const"
	case OpVarX:
		return "x"
	case OpVarY:
		return "y"
	case OpVarZ:
		return "z"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	case OpNeg:
		return "neg"
	case OpAbs:
		return "abs"
	case OpSquare:
		return "square"
	case OpSqrt:
		return "sqrt"
	case OpSin:
		return "sin"
	case OpCos:
		return "cos"
	case OpExp:
		return "exp"
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}

type exprNode struct {
	op   Op
	c    float64 // constant value when op == OpConst
	a, b *exprNode
}

// Expr is an immutable field expression. The zero Expr is invalid;
// build expressions from X, Y, Z and Const and combine them with the
// arithmetic methods and the package-level CSG functions.
type Expr struct {
	n *exprNode
}

// X returns the expression evaluating to the x coordinate.
func X() Expr { return Expr{n: &exprNode{op: OpVarX}} }

// Y returns the expression evaluating to the y coordinate.
func Y() Expr { return Expr{n: &exprNode{op: OpVarY}} }

// Z returns the expression evaluating to the z coordinate.
func Z() Expr { return Expr{n: &exprNode{op: OpVarZ}} }

// Const returns a constant expression.
func Const(v float64) Expr { return Expr{n: &exprNode{op: OpConst, c: v}} }

// Zero reports whether e is the invalid zero Expr.
func (e Expr) Zero() bool { return e.n == nil }

// Op returns the operation at the root of the expression.
func (e Expr) Op() Op { return e.n.op }

// Const returns the value of a OpConst expression.
func (e Expr) Const() float64 { return e.n.c }

// Args returns the operands of the expression. b is the zero Expr
// for unary operations, both are zero for leaf operations.
func (e Expr) Args() (a, b Expr) {
	return Expr{n: e.n.a}, Expr{n: e.n.b}
}

func binary(op Op, a, b Expr) Expr {
	if a.Zero() || b.Zero() {
		panic("carve: zero Expr operand")
	}
	return Expr{n: &exprNode{op: op, a: a.n, b: b.n}}
}

func unary(op Op, a Expr) Expr {
	if a.Zero() {
		panic("carve: zero Expr operand")
	}
	return Expr{n: &exprNode{op: op, a: a.n}}
}

// Add returns e + o.
func (e Expr) Add(o Expr) Expr { return binary(OpAdd, e, o) }

// Sub returns e - o.
func (e Expr) Sub(o Expr) Expr { return binary(OpSub, e, o) }

// Mul returns e * o.
func (e Expr) Mul(o Expr) Expr { return binary(OpMul, e, o) }

// Div returns e / o.
func (e Expr) Div(o Expr) Expr { return binary(OpDiv, e, o) }

// Min returns min(e, o).
func (e Expr) Min(o Expr) Expr { return binary(OpMin, e, o) }

// Max returns max(e, o).
func (e Expr) Max(o Expr) Expr { return binary(OpMax, e, o) }

// Neg returns -e.
func (e Expr) Neg() Expr { return unary(OpNeg, e) }

// Abs returns |e|.
func (e Expr) Abs() Expr { return unary(OpAbs, e) }

// Square returns e*e as a single operation.
func (e Expr) Square() Expr { return unary(OpSquare, e) }

// Sqrt returns the square root of e.
func (e Expr) Sqrt() Expr { return unary(OpSqrt, e) }

// Sin returns the sine of e.
func (e Expr) Sin() Expr { return unary(OpSin, e) }

// Cos returns the cosine of e.
func (e Expr) Cos() Expr { return unary(OpCos, e) }

// Exp returns the natural exponential of e.
func (e Expr) Exp() Expr { return unary(OpExp, e) }

// AddConst returns e + v.
func (e Expr) AddConst(v float64) Expr { return e.Add(Const(v)) }

// SubConst returns e - v.
func (e Expr) SubConst(v float64) Expr { return e.Sub(Const(v)) }

// MulConst returns e * v.
func (e Expr) MulConst(v float64) Expr { return e.Mul(Const(v)) }

// Union returns the boolean union of the argument fields.
func Union(s ...Expr) Expr {
	if len(s) == 0 {
		panic("carve: Union of nothing")
	}
	u := s[0]
	for _, e := range s[1:] {
		u = u.Min(e)
	}
	return u
}

// Intersect returns the boolean intersection of the argument fields.
func Intersect(s ...Expr) Expr {
	if len(s) == 0 {
		panic("carve: Intersect of nothing")
	}
	u := s[0]
	for _, e := range s[1:] {
		u = u.Max(e)
	}
	return u
}

// Difference returns the field a with b removed.
func Difference(a, b Expr) Expr { return a.Max(b.Neg()) }

// Offset grows the solid by r (shrinks it for negative r).
func Offset(e Expr, r float64) Expr { return e.SubConst(r) }
