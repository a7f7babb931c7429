/*
Package evaluator implements the sandboxed expression language used by the
driver filter and the goodness weigher.

Operators cannot be configured safely with a general-purpose interpreter, so
the grammar is fixed and tiny: numbers, single- or double-quoted strings,
booleans, dotted property references, arithmetic (+ - * / %), comparisons
(< <= > >= == !=), boolean operators (and/&&, or/||, not/!), a C-style
ternary, and the min/max helpers. Nothing else parses: no assignment, no
loops, no calls besides min/max.

The grammar is built with participle; an expression compiles once at chain
construction and evaluates against a per-host property bag:

	e, err := evaluator.Compile("backend.free_capacity > volume.size * 2")
	ok, err := e.EvalBool(evaluator.Properties(host, spec))

Property namespaces: volume.* (request fields, volume.extra.* for extra
specs), backend.* (host state fields), capability.* (the arbitrary
capability map, with numeric and boolean strings coerced).

Both syntax and evaluation failures (unknown property, division by zero,
type mismatch) come back as *types.ConfigurationError so the scheduler can
reject the request instead of crashing or silently passing the host.
*/
package evaluator
