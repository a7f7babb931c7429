package evaluator

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// The grammar is deliberately small: arithmetic, comparison, boolean
// operators, a ternary, and the min/max helpers, over dotted property
// references. No assignment, no loops, no user-defined functions.

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "whitespace", Pattern: `\s+`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "String", Pattern: `'[^']*'|"[^"]*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `<=|>=|==|!=|&&|\|\||[-+*/%<>!?:(),.]`},
})

type ternary struct {
	Cond *orExpr  `parser:"@@"`
	Then *ternary `parser:"( '?' @@"`
	Else *ternary `parser:"  ':' @@ )?"`
}

type orExpr struct {
	Left  *andExpr   `parser:"@@"`
	Right []*andExpr `parser:"( ( 'or' | '||' ) @@ )*"`
}

type andExpr struct {
	Left  *comparison   `parser:"@@"`
	Right []*comparison `parser:"( ( 'and' | '&&' ) @@ )*"`
}

type comparison struct {
	Left  *sum   `parser:"@@"`
	Op    string `parser:"( @( '<=' | '>=' | '==' | '!=' | '<' | '>' )"`
	Right *sum   `parser:"  @@ )?"`
}

type sum struct {
	Left *product `parser:"@@"`
	Ops  []*sumOp `parser:"@@*"`
}

type sumOp struct {
	Op   string   `parser:"@( '+' | '-' )"`
	Term *product `parser:"@@"`
}

type product struct {
	Left *unary     `parser:"@@"`
	Ops  []*prodOp  `parser:"@@*"`
}

type prodOp struct {
	Op   string `parser:"@( '*' | '/' | '%' )"`
	Term *unary `parser:"@@"`
}

type unary struct {
	Op    string   `parser:"( @( '-' | '!' | 'not' )"`
	Right *unary   `parser:"  @@ )"`
	Value *primary `parser:"| @@"`
}

type primary struct {
	Number *float64  `parser:"  @Number"`
	Str    *string   `parser:"| @String"`
	Bool   *string   `parser:"| @( 'true' | 'false' )"`
	Call   *call     `parser:"| @@"`
	Prop   *property `parser:"| @@"`
	Sub    *ternary  `parser:"| '(' @@ ')'"`
}

type call struct {
	Func string     `parser:"@( 'min' | 'max' )"`
	Args []*ternary `parser:"'(' @@ ( ',' @@ )* ')'"`
}

type property struct {
	Parts []string `parser:"@Ident ( '.' @Ident )*"`
}

var exprParser = participle.MustBuild[ternary](
	participle.Lexer(exprLexer),
	participle.UseLookahead(2),
)
