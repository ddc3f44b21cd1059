package engine

import "fmt"

// ReadCode is the numeric result code of a read operation.
// Values are stable and part of the public contract.
type ReadCode int

const (
	ReadSuccess                ReadCode = 0  // no error
	ReadErrInvalidParameter    ReadCode = 1  // nil input or invalid file path
	ReadErrMemoryAllocation    ReadCode = 2  // allocation refused by the budget
	ReadErrEmptyContent        ReadCode = 3  // input is empty or whitespace only
	ReadErrUnexpectedContent   ReadCode = 4  // content after the document, such as "[1]#"
	ReadErrUnexpectedEnd       ReadCode = 5  // truncated input, such as "[123"
	ReadErrUnexpectedCharacter ReadCode = 6  // stray character, such as "[#]"
	ReadErrJSONStructure       ReadCode = 7  // structural error, such as "[1,]"
	ReadErrInvalidComment      ReadCode = 8  // unclosed block comment
	ReadErrInvalidNumber       ReadCode = 9  // malformed number, such as "123.e12" or "000"
	ReadErrInvalidString       ReadCode = 10 // bad escape or encoding inside a string
	ReadErrLiteral             ReadCode = 11 // malformed literal, such as "truu"
	ReadErrFileOpen            ReadCode = 12 // failed to open a file
	ReadErrFileRead            ReadCode = 13 // failed to read a file
)

// ReadError reports a reader failure with its byte position in the input.
type ReadError struct {
	Code ReadCode
	Msg  string
	Pos  int
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s at %d", e.Msg, e.Pos)
}

// WriteCode is the numeric result code of a write operation.
type WriteCode int

const (
	WriteSuccess             WriteCode = 0 // no error
	WriteErrInvalidParameter WriteCode = 1 // nil document or missing root
	WriteErrMemoryAllocation WriteCode = 2 // allocation refused by the budget
	WriteErrInvalidValueType WriteCode = 3 // value kind the writer cannot represent
	WriteErrNanOrInf         WriteCode = 4 // nan or inf without a permitting flag
	WriteErrFileOpen         WriteCode = 5 // failed to open a file
	WriteErrFileWrite        WriteCode = 6 // failed to write a file
	WriteErrInvalidString    WriteCode = 7 // invalid UTF-8 without a permitting flag
)

// WriteError reports a writer failure.
type WriteError struct {
	Code WriteCode
	Msg  string
}

func (e *WriteError) Error() string { return e.Msg }

func readErr(code ReadCode, msg string, pos int) *ReadError {
	return &ReadError{Code: code, Msg: msg, Pos: pos}
}

func writeErr(code WriteCode, msg string) *WriteError {
	return &WriteError{Code: code, Msg: msg}
}
