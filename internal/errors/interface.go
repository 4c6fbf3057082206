package errors

// ErrorCode identifies a failure independent of its message. A code is
// itself an error, so errors.Is(err, SomeCode) matches any coded error in
// err's chain carrying that code.
type ErrorCode string

func (c ErrorCode) Error() string {
	return GetErrorMessage(c)
}

// Error is a coded error with optional message override, payload and cause.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds coded errors. Packages call New() and keep the factory
// local to the function reporting the error.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
