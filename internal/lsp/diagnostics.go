package lsp

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"calyx/internal/errors"
)

// ConvertDiagnostics transforms parser and verifier diagnostics into LSP
// diagnostics. Diagnostics without a length cover the rest of their line.
func ConvertDiagnostics(diags []errors.CompilerError, content string) []protocol.Diagnostic {
	lines := strings.Split(content, "\n")
	diagnostics := make([]protocol.Diagnostic, 0, len(diags))

	for _, d := range diags {
		var start protocol.Position
		if d.Position.Line > 0 {
			start = protocol.Position{
				Line:      uint32(d.Position.Line - 1),
				Character: uint32(max(d.Position.Column-1, 0)),
			}
		}

		end := start
		switch {
		case d.Length > 0:
			end.Character += uint32(d.Length)
		case int(start.Line) < len(lines):
			end.Character = uint32(max(len(lines[start.Line]), int(start.Character)))
		}

		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Severity: ptrSeverity(severity(d.Level)),
			Code:     &protocol.IntegerOrString{Value: d.Code},
			Source:   ptrString("calyx"),
			Message:  message(d),
		})
	}

	return diagnostics
}

func severity(level errors.ErrorLevel) protocol.DiagnosticSeverity {
	switch level {
	case errors.Warning:
		return protocol.DiagnosticSeverityWarning
	case errors.Note, errors.Help:
		return protocol.DiagnosticSeverityInformation
	default:
		return protocol.DiagnosticSeverityError
	}
}

// message folds suggestions and notes into the text, which is all most
// editors show
func message(d errors.CompilerError) string {
	var b strings.Builder
	b.WriteString(d.Message)
	for _, s := range d.Suggestions {
		b.WriteString("\nsuggestion: ")
		b.WriteString(s.Message)
	}
	for _, n := range d.Notes {
		b.WriteString("\nnote: ")
		b.WriteString(n)
	}
	if d.HelpText != "" {
		b.WriteString("\nhelp: ")
		b.WriteString(d.HelpText)
	}
	return b.String()
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
