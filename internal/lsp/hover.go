package lsp

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"calyx/grammar"
	"calyx/internal/ir"
)

// TextDocumentCompletion offers keywords, mnemonics, type names and the
// symbols of the document's last successful parse
func (h *CalyxHandler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, err := h.getOrUpdate(ctx, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		item := protocol.CompletionItem{Label: label, Kind: &kind}
		if detail != "" {
			item.Detail = ptrString(detail)
		}
		items = append(items, item)
	}

	for _, kw := range grammar.Keywords {
		add(kw, protocol.CompletionItemKindKeyword, "")
	}
	for _, op := range mnemonics() {
		add(op, protocol.CompletionItemKindOperator, "")
	}
	for t := ir.I8; t <= ir.Struct; t++ {
		add(t.String(), protocol.CompletionItemKindTypeParameter, "")
	}
	if doc.result != nil && doc.result.Program != nil {
		p := doc.result.Program
		for _, name := range p.SortedFunctions() {
			fn := p.Functions[name]
			add("@"+name, protocol.CompletionItemKindFunction, fmt.Sprintf("%d args", len(fn.Args())))
		}
		for _, name := range p.SortedGlobals() {
			add("@"+name, protocol.CompletionItemKindVariable, ir.FormatGlobal(name, p.Globals[name]))
		}
	}

	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}, nil
}

func mnemonics() []string {
	var names []string
	for op := ir.Add; op <= ir.BinXor; op++ {
		names = append(names, op.String())
	}
	for op := ir.Eq; op <= ir.Ge; op++ {
		names = append(names, op.String())
	}
	return append(names,
		ir.Neg.String(), ir.BinNot.String(),
		ir.ShiftLeft.String(), ir.ShiftRight.String())
}

// TextDocumentHover describes the value, local or symbol under the cursor,
// or the directive on the hovered line
func (h *CalyxHandler) TextDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, err := h.getOrUpdate(ctx, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	if doc.result == nil || doc.result.Program == nil {
		return nil, nil
	}

	line := int(params.Position.Line) + 1
	column := int(params.Position.Character) + 1
	lexed := lexDocument(doc.content)

	var token *lexer.Token
	for i := range lexed {
		t := &lexed[i]
		if t.Pos.Line == line && t.Pos.Column <= column && column < t.Pos.Column+len(t.Value) {
			token = t
			break
		}
	}

	text := ""
	if token != nil {
		text = describeToken(doc.result.Program, enclosingFunction(lexed, line), token)
	}
	if text == "" {
		if symbol, pos, ok := doc.result.Source.At(line); ok {
			if fn := doc.result.Program.Functions[symbol]; fn != nil {
				text = describeDirective(fn.At(pos), pos)
			}
		}
	}
	if text == "" {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: text,
		},
	}, nil
}

// enclosingFunction returns the symbol of the last function declared at or
// before line
func enclosingFunction(lexed []lexer.Token, line int) string {
	symbol := ""
	for i := 0; i+1 < len(lexed) && lexed[i].Pos.Line <= line; i++ {
		if lexed[i].Value == "func" && tokenNames[lexed[i+1].Type] == "Global" {
			symbol = lexed[i+1].Value[1:]
		}
	}
	return symbol
}

func describeToken(p *ir.Program, symbol string, token *lexer.Token) string {
	fn := p.Functions[symbol]
	switch tokenNames[token.Type] {
	case "Var":
		v, err := strconv.ParseUint(token.Value[1:], 10, 32)
		if err != nil || fn == nil {
			return ""
		}
		for _, label := range fn.SortedBlocks() {
			for i, d := range fn.Blocks[label].Directives {
				if def, ok := ir.Def(d); ok && def == ir.VarIndex(v) {
					return describeDirective(d, ir.Pos{Block: label, Index: i})
				}
			}
		}
	case "Local":
		c, err := strconv.ParseUint(token.Value[1:], 10, 32)
		if err != nil || fn == nil {
			return ""
		}
		if l, ok := fn.Locals[ir.VarIndex(c)]; ok {
			return codeBlock(ir.FormatLocal(l))
		}
	case "Global":
		name := token.Value[1:]
		if g, ok := p.Globals[name]; ok {
			return codeBlock(ir.FormatGlobal(name, g))
		}
		if f, ok := p.Functions[name]; ok {
			return fmt.Sprintf("%s\n%d arguments, %d blocks, %d directives",
				codeBlock("func @"+name), len(f.Args()), len(f.Blocks), f.DirectiveCount())
		}
	}
	return ""
}

func describeDirective(d ir.Directive, pos ir.Pos) string {
	text := codeBlock(ir.FormatDirective(d))
	if e, ok := d.(ir.Expr); ok && e.Def() != 0 {
		text += fmt.Sprintf("\n%s value, defined at %s", e.ResultType(), pos)
	}
	return text
}

func codeBlock(s string) string {
	return "```calyx\n" + s + "\n```"
}
