package protocol

// Error is a handler failure destined for the originating connection as an
// error frame. Code is one of the stable error codes.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrInvalidFormat rejects frames that cannot be decoded or carry an
// unrecognized type.
var ErrInvalidFormat = NewError(CodeInvalidFormat, "Invalid message format")
