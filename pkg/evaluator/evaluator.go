package evaluator

import (
	"fmt"
	"math"
	"strings"

	"github.com/stevedore-io/stevedore/pkg/types"
)

// Evaluator is a compiled expression. Compile once per configuration value
// and evaluate against a fresh property bag per host.
type Evaluator struct {
	src  string
	prog *ternary
}

// Compile parses an expression. A syntax error is a ConfigurationError so
// that the caller surfaces it as a request-time error, not a crash.
func Compile(src string) (*Evaluator, error) {
	prog, err := exprParser.ParseString("", src)
	if err != nil {
		return nil, &types.ConfigurationError{Expression: src, Reason: err.Error()}
	}
	return &Evaluator{src: src, prog: prog}, nil
}

// Source returns the original expression text.
func (e *Evaluator) Source() string { return e.src }

// Eval evaluates the expression against a read-only property bag. Values
// are float64, bool, or string.
func (e *Evaluator) Eval(props map[string]interface{}) (interface{}, error) {
	v, err := e.evalTernary(e.prog, props)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// EvalBool evaluates and requires a boolean result.
func (e *Evaluator) EvalBool(props map[string]interface{}) (bool, error) {
	v, err := e.Eval(props)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, e.errf("result is %T, expected bool", v)
	}
	return b, nil
}

// EvalFloat evaluates and requires a numeric result.
func (e *Evaluator) EvalFloat(props map[string]interface{}) (float64, error) {
	v, err := e.Eval(props)
	if err != nil {
		return 0, err
	}
	n, ok := v.(float64)
	if !ok {
		return 0, e.errf("result is %T, expected number", v)
	}
	return n, nil
}

func (e *Evaluator) errf(format string, args ...interface{}) error {
	return &types.ConfigurationError{Expression: e.src, Reason: fmt.Sprintf(format, args...)}
}

func (e *Evaluator) evalTernary(t *ternary, props map[string]interface{}) (interface{}, error) {
	cond, err := e.evalOr(t.Cond, props)
	if err != nil {
		return nil, err
	}
	if t.Then == nil {
		return cond, nil
	}
	b, ok := cond.(bool)
	if !ok {
		return nil, e.errf("ternary condition is %T, expected bool", cond)
	}
	if b {
		return e.evalTernary(t.Then, props)
	}
	return e.evalTernary(t.Else, props)
}

func (e *Evaluator) evalOr(o *orExpr, props map[string]interface{}) (interface{}, error) {
	left, err := e.evalAnd(o.Left, props)
	if err != nil {
		return nil, err
	}
	if len(o.Right) == 0 {
		return left, nil
	}
	acc, ok := left.(bool)
	if !ok {
		return nil, e.errf("operand of 'or' is %T, expected bool", left)
	}
	for _, term := range o.Right {
		if acc {
			// Short circuit; operands are side-effect free so skipping
			// evaluation is observationally equivalent.
			return true, nil
		}
		v, err := e.evalAnd(term, props)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, e.errf("operand of 'or' is %T, expected bool", v)
		}
		acc = acc || b
	}
	return acc, nil
}

func (e *Evaluator) evalAnd(a *andExpr, props map[string]interface{}) (interface{}, error) {
	left, err := e.evalComparison(a.Left, props)
	if err != nil {
		return nil, err
	}
	if len(a.Right) == 0 {
		return left, nil
	}
	acc, ok := left.(bool)
	if !ok {
		return nil, e.errf("operand of 'and' is %T, expected bool", left)
	}
	for _, term := range a.Right {
		if !acc {
			return false, nil
		}
		v, err := e.evalComparison(term, props)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, e.errf("operand of 'and' is %T, expected bool", v)
		}
		acc = acc && b
	}
	return acc, nil
}

func (e *Evaluator) evalComparison(c *comparison, props map[string]interface{}) (interface{}, error) {
	left, err := e.evalSum(c.Left, props)
	if err != nil {
		return nil, err
	}
	if c.Op == "" {
		return left, nil
	}
	right, err := e.evalSum(c.Right, props)
	if err != nil {
		return nil, err
	}

	switch c.Op {
	case "==":
		return equals(left, right), nil
	case "!=":
		return !equals(left, right), nil
	}

	ln, lok := left.(float64)
	rn, rok := right.(float64)
	if lok && rok {
		switch c.Op {
		case "<":
			return ln < rn, nil
		case "<=":
			return ln <= rn, nil
		case ">":
			return ln > rn, nil
		case ">=":
			return ln >= rn, nil
		}
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		switch c.Op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return nil, e.errf("cannot compare %T %s %T", left, c.Op, right)
}

func equals(a, b interface{}) bool {
	return a == b
}

func (e *Evaluator) evalSum(s *sum, props map[string]interface{}) (interface{}, error) {
	acc, err := e.evalProduct(s.Left, props)
	if err != nil {
		return nil, err
	}
	for _, op := range s.Ops {
		right, err := e.evalProduct(op.Term, props)
		if err != nil {
			return nil, err
		}
		an, aok := acc.(float64)
		bn, bok := right.(float64)
		if !aok || !bok {
			return nil, e.errf("operand of %q is not a number", op.Op)
		}
		if op.Op == "+" {
			acc = an + bn
		} else {
			acc = an - bn
		}
	}
	return acc, nil
}

func (e *Evaluator) evalProduct(p *product, props map[string]interface{}) (interface{}, error) {
	acc, err := e.evalUnary(p.Left, props)
	if err != nil {
		return nil, err
	}
	for _, op := range p.Ops {
		right, err := e.evalUnary(op.Term, props)
		if err != nil {
			return nil, err
		}
		an, aok := acc.(float64)
		bn, bok := right.(float64)
		if !aok || !bok {
			return nil, e.errf("operand of %q is not a number", op.Op)
		}
		switch op.Op {
		case "*":
			acc = an * bn
		case "/":
			if bn == 0 {
				return nil, e.errf("division by zero")
			}
			acc = an / bn
		case "%":
			if bn == 0 {
				return nil, e.errf("division by zero")
			}
			acc = math.Mod(an, bn)
		}
	}
	return acc, nil
}

func (e *Evaluator) evalUnary(u *unary, props map[string]interface{}) (interface{}, error) {
	if u.Right != nil {
		v, err := e.evalUnary(u.Right, props)
		if err != nil {
			return nil, err
		}
		switch u.Op {
		case "-":
			n, ok := v.(float64)
			if !ok {
				return nil, e.errf("operand of unary '-' is %T, expected number", v)
			}
			return -n, nil
		case "!", "not":
			b, ok := v.(bool)
			if !ok {
				return nil, e.errf("operand of %q is %T, expected bool", u.Op, v)
			}
			return !b, nil
		}
	}
	return e.evalPrimary(u.Value, props)
}

func (e *Evaluator) evalPrimary(p *primary, props map[string]interface{}) (interface{}, error) {
	switch {
	case p.Number != nil:
		return *p.Number, nil
	case p.Str != nil:
		s := *p.Str
		// Strip the surrounding quotes kept by the lexer.
		return s[1 : len(s)-1], nil
	case p.Bool != nil:
		return *p.Bool == "true", nil
	case p.Call != nil:
		return e.evalCall(p.Call, props)
	case p.Prop != nil:
		name := strings.Join(p.Prop.Parts, ".")
		v, ok := props[name]
		if !ok {
			return nil, e.errf("unknown property %q", name)
		}
		return normalize(v), nil
	case p.Sub != nil:
		return e.evalTernary(p.Sub, props)
	}
	return nil, e.errf("empty expression")
}

func (e *Evaluator) evalCall(c *call, props map[string]interface{}) (interface{}, error) {
	if len(c.Args) < 2 {
		return nil, e.errf("%s needs at least two arguments", c.Func)
	}
	var acc float64
	for i, arg := range c.Args {
		v, err := e.evalTernary(arg, props)
		if err != nil {
			return nil, err
		}
		n, ok := v.(float64)
		if !ok {
			return nil, e.errf("argument %d of %s is %T, expected number", i+1, c.Func, v)
		}
		if i == 0 {
			acc = n
			continue
		}
		if c.Func == "min" && n < acc {
			acc = n
		}
		if c.Func == "max" && n > acc {
			acc = n
		}
	}
	return acc, nil
}

// normalize widens integer property values so the arithmetic layer only
// ever sees float64.
func normalize(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
