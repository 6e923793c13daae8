package errors

// Error codes for the Calyx toolchain
// These codes are used in diagnostics and documentation
// to provide consistent error identification across the tools.
//
// Error code ranges:
// E0001-E0099: IR verification errors
// E0100-E0199: Textual IR parse errors
// E0600-E0699: Optimizer invariant violations
// E0700-E0799: Unimplemented features
// E0800-E0899: Warning codes
// E0900-E0999: Tooling errors

const (
	// E0001: A value is read but never defined
	ErrorUndefinedValue = "E0001"

	// E0002: A value is defined more than once
	ErrorRedefinedValue = "E0002"

	// E0003: A directive references a local the function does not declare
	ErrorUndefinedLocal = "E0003"

	// E0004: A branch, select or block end refers to a missing block
	ErrorUndefinedBlock = "E0004"

	// E0005: The function has no entry block
	ErrorMissingEntry = "E0005"

	// E0006: A block does not end with exactly one terminator
	ErrorMissingTerminator = "E0006"

	// E0007: A terminator appears before the end of its block
	ErrorMisplacedTerminator = "E0007"

	// E0008: Operand type is not valid for the operation
	ErrorInvalidOperandType = "E0008"

	// E0009: A global or function symbol is declared twice
	ErrorDuplicateSymbol = "E0009"

	// E0010: A local is declared with an invalid size or argument index
	ErrorInvalidLocal = "E0010"

	// E0011: A direct call names an unknown function
	ErrorUndefinedSymbol = "E0011"
)

const (
	// E0100: Syntax error reported by the grammar
	ErrorSyntax = "E0100"

	// E0101: Unknown type name
	ErrorUnknownType = "E0101"

	// E0102: Malformed literal
	ErrorInvalidLiteral = "E0102"

	// E0103: Duplicate block label within a function
	ErrorDuplicateBlock = "E0103"

	// E0104: Directive is missing its result, or has one it cannot define
	ErrorInvalidResult = "E0104"
)

const (
	// E0600: Internal invariant violated during optimization
	ErrorInvariantViolation = "E0600"

	// E0700: Valid input that is not supported yet
	ErrorUnimplemented = "E0700"
)

const (
	// E0800: Unreachable block
	WarningUnreachableBlock = "E0800"

	// E0801: Local declared but never used
	WarningUnusedLocal = "E0801"
)

const (
	// E0900: Configuration file errors
	ErrorConfig = "E0900"

	// E0901: File system errors
	ErrorIO = "E0901"
)

// GetErrorDescription returns a human-readable description of an error code
func GetErrorDescription(code string) string {
	switch code {
	case ErrorUndefinedValue:
		return "Value is used but never defined"
	case ErrorRedefinedValue:
		return "Value is defined more than once"
	case ErrorUndefinedLocal:
		return "Local is not declared in this function"
	case ErrorUndefinedBlock:
		return "Branch target does not exist"
	case ErrorMissingEntry:
		return "Function has no entry block L1"
	case ErrorMissingTerminator:
		return "Block does not end with a branch, select or return"
	case ErrorMisplacedTerminator:
		return "Terminator must be the last directive of its block"
	case ErrorInvalidOperandType:
		return "Operand type is not valid for this operation"
	case ErrorDuplicateSymbol:
		return "Symbol is declared more than once"
	case ErrorInvalidLocal:
		return "Local declaration is invalid"
	case ErrorUndefinedSymbol:
		return "Called function is not defined"
	case ErrorSyntax:
		return "Syntax error"
	case ErrorUnknownType:
		return "Unknown type name"
	case ErrorInvalidLiteral:
		return "Malformed literal"
	case ErrorDuplicateBlock:
		return "Block label is declared more than once"
	case ErrorInvalidResult:
		return "Directive result does not match its kind"
	case ErrorInvariantViolation:
		return "Internal invariant violated"
	case ErrorUnimplemented:
		return "Feature is not implemented"
	case WarningUnreachableBlock:
		return "Block is unreachable from the entry"
	case WarningUnusedLocal:
		return "Local is declared but never used"
	case ErrorConfig:
		return "Invalid configuration"
	case ErrorIO:
		return "File system error"
	default:
		return "Unknown error code"
	}
}

// IsWarning returns true if the error code represents a warning rather than an error
func IsWarning(code string) bool {
	return code >= "E0800" && code < "E0900"
}

// GetErrorCategory returns the category of the error based on its code
func GetErrorCategory(code string) string {
	switch {
	case code >= "E0001" && code < "E0100":
		return "Verification"
	case code >= "E0100" && code < "E0200":
		return "Parser"
	case code >= "E0600" && code < "E0700":
		return "Optimizer"
	case code >= "E0700" && code < "E0800":
		return "Unimplemented"
	case code >= "E0800" && code < "E0900":
		return "Warning"
	case code >= "E0900" && code < "E1000":
		return "Tooling"
	default:
		return "Unknown"
	}
}
