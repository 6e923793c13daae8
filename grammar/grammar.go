package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

type Program struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Items  []*Item `@@*`
}

type Item struct {
	String   *StringDecl `  @@`
	Global   *GlobalDecl `| @@`
	Function *Function   `| @@`
}

// StringDecl declares string literal Index, addressable as @.str.<Index>
type StringDecl struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Index  string `"string" @Int`
	Value  string `@String`
}

type GlobalDecl struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Name   string      `"global" @Global ":"`
	Type   string      `@Ident`
	Size   string      `[ "size" @Int ]`
	Init   *GlobalInit `[ "=" @@ ]`
}

// GlobalInit is either a literal or the address of a symbol plus an offset
type GlobalInit struct {
	Pos    lexer.Position
	Label  string `(  @Global`
	Offset string `   [ "+" @Int ]`
	Value  string `| @(Int | Float) )`
}

type Function struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Name   string       `"func" @Global "{"`
	Locals []*LocalDecl `@@*`
	Blocks []*Block     `@@*`
	Close  string       `"}"`
}

type LocalDecl struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Name   string `"local" @Local ":"`
	Type   string `@Ident ","`
	Size   string `"size" @Int`
	Arg    string `[ "," "arg" @Int ]`
}

type Block struct {
	Pos        lexer.Position
	EndPos     lexer.Position
	Label      string       `@Label ":"`
	Directives []*Directive `@@*`
}

// Directive is one line of a block. Result is empty for directives that
// do not define a value.
type Directive struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Result string `[ @Var "=" ]`

	NoOp         bool            `(  @"noop"`
	Imm          *ImmOp          ` | @@`
	Cast         *CastOp         ` | @@`
	Compare      *CompareOp      ` | @@`
	AddToPointer *AddToPointerOp ` | @@`
	LoadLocal    *LoadLocalOp    ` | @@`
	Addr         *AddrOp         ` | @@`
	StoreLocal   *StoreLocalOp   ` | @@`
	LoadGlobal   *LoadGlobalOp   ` | @@`
	GlobalAddr   *GlobalAddrOp   ` | @@`
	StoreGlobal  *StoreGlobalOp  ` | @@`
	Deref        *DerefOp        ` | @@`
	StorePtr     *StorePtrOp     ` | @@`
	Call         *CallOp         ` | @@`
	Branch       *BranchOp       ` | @@`
	Select       *SelectOp       ` | @@`
	Return       *ReturnOp       ` | @@`
	Arith        *ArithOp        ` | @@ )`
}

// Operand is a value reference or an immediate literal
type Operand struct {
	Pos     lexer.Position
	Var     string `  @Var`
	Literal string `| @(Int | Float)`
}

type ImmOp struct {
	Type  string `"imm" @Ident`
	Value string `@(Int | Float)`
}

type CastOp struct {
	To    string   `"cast" @Ident "<-"`
	From  string   `@Ident`
	Value *Operand `@@`
}

// ArithOp covers binops, unops and shifts, which share their layout
type ArithOp struct {
	Op    string   `@("add" | "sub" | "mul" | "div" | "mod" | "and" | "or" | "xor" | "neg" | "not" | "shl" | "shr")`
	Type  string   `@Ident`
	Left  *Operand `@@`
	Right *Operand `[ "," @@ ]`
}

type CompareOp struct {
	Op    string   `"cmp" @Ident`
	Type  string   `@Ident`
	Left  string   `@Var ","`
	Right *Operand `@@`
}

type AddToPointerOp struct {
	Ptr    *Operand `"ptradd" @@ ","`
	Stride string   `@Int "*"`
	Type   string   `@Ident`
	Right  *Operand `@@`
}

type LoadLocalOp struct {
	Type   string `"load" @Ident`
	Local  string `@Local`
	Offset string `[ "+" @Int ]`
}

type AddrOp struct {
	Local string `"addr" @Local`
}

type StoreLocalOp struct {
	Type   string   `"store" @Ident`
	Local  string   `@Local`
	Offset string   `[ "+" @Int ] ","`
	Value  *Operand `@@`
}

type LoadGlobalOp struct {
	Type   string `"lglob" @Ident`
	Symbol string `@Global`
	Offset string `[ "+" @Int ]`
}

type GlobalAddrOp struct {
	Symbol string `"gaddr" @Global`
}

type StoreGlobalOp struct {
	Type   string   `"sglob" @Ident`
	Symbol string   `@Global`
	Offset string   `[ "+" @Int ] ","`
	Value  *Operand `@@`
}

type DerefOp struct {
	Type   string `"deref" @Ident`
	Ptr    string `@Var`
	Offset string `[ "+" @Int ]`
}

type StorePtrOp struct {
	Type   string   `"sptr" @Ident`
	Ptr    string   `@Var`
	Offset string   `[ "+" @Int ] ","`
	Value  *Operand `@@`
}

// CallOp calls a symbol directly or a function pointer held in a value.
// Variadic arguments follow a semicolon.
type CallOp struct {
	Type    string   `"call" @Ident`
	Label   string   `(  @Global`
	Fn      string   ` | @Var ) "("`
	Args    []string `[ @Var { "," @Var } ]`
	VarArgs []string `[ ";" @Var { "," @Var } ] ")"`
}

type BranchOp struct {
	Dest string     `"br" (  @Label`
	Cond *Condition `      | @@ )`
}

type Condition struct {
	Op    string   `@Ident`
	Type  string   `@Ident`
	Left  string   `@Var ","`
	Right *Operand `@@ "?"`
	True  string   `@Label ":"`
	False string   `@Label`
}

type SelectOp struct {
	Value   string        `"select" @Var "["`
	Cases   []*SelectCase `[ @@ { "," @@ } ] "]"`
	Default string        `[ "default" @Label ]`
}

type SelectCase struct {
	Pos   lexer.Position
	Key   string `@Int ":"`
	Label string `@Label`
}

type ReturnOp struct {
	Void  bool     `"ret" (  @"void"`
	Type  string   `      | @Ident`
	Value *Operand `        @@ )`
}
