package irparse

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// The grammar mirrors the printer in the ir package one to one: whatever
// DumpModule emits parses back into an equivalent module.

type fileAST struct {
	Funcs []*funcAST `parser:"@@*"`
}

type funcAST struct {
	Pos    lexer.Position
	Name   string      `parser:"'func' @AtName"`
	Params []*paramAST `parser:"'(' (@@ (',' @@)*)? ')'"`
	Body   []*opAST    `parser:"'{' @@* '}'"`
}

type paramAST struct {
	Pos  lexer.Position
	Name string   `parser:"@ValueRef"`
	Type *typeAST `parser:"':' @@"`
}

type opAST struct {
	Pos     lexer.Position
	Results []string     `parser:"(@ValueRef (',' @ValueRef)* '=')?"`
	Name    string       `parser:"@Ident"`
	Attrs   *attrsAST    `parser:"@@?"`
	Iter    []string     `parser:"('iter' '(' @ValueRef (',' @ValueRef)* ')')?"`
	Args    []string     `parser:"(@ValueRef (',' @ValueRef)*)?"`
	Regions []*regionAST `parser:"@@*"`
	Types   []*typeAST   `parser:"(':' @@ (',' @@)*)?"`
}

type attrsAST struct {
	Entries []*attrEntryAST `parser:"'{' @@ (',' @@)* '}'"`
}

type attrEntryAST struct {
	Pos   lexer.Position
	Key   string        `parser:"@Ident '='"`
	Value *attrValueAST `parser:"@@"`
}

type attrValueAST struct {
	Num  *string         `parser:"@Number"`
	Str  *string         `parser:"| @String"`
	Dyn  bool            `parser:"| @'?'"`
	List []*attrValueAST `parser:"| '[' (@@ (',' @@)*)? ']'"`
}

type regionAST struct {
	Pos    lexer.Position
	Params []*paramAST `parser:"'{' '^' '(' (@@ (',' @@)*)? ')' ':'"`
	Ops    []*opAST    `parser:"@@* '}'"`
}

type typeAST struct {
	Pos    lexer.Position
	Shaped *shapedTypeAST `parser:"@@"`
	Ptr    *ptrTypeAST    `parser:"| @@"`
	Tuple  *tupleTypeAST  `parser:"| @@"`
	Prim   *string        `parser:"| @Ident"`
}

type shapedTypeAST struct {
	Kind    string   `parser:"@('tensor' | 'memref') '<'"`
	Dims    []string `parser:"(@(Number | '?') 'x')*"`
	Elem    *typeAST `parser:"@@"`
	Strided bool     `parser:"(',' @'strided')? '>'"`
}

type ptrTypeAST struct {
	Elem *typeAST `parser:"'ptr' '<' @@ '>'"`
}

type tupleTypeAST struct {
	Elems []*typeAST `parser:"'tuple' '<' @@ (',' @@)* '>'"`
}
