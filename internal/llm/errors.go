package llm

import "fmt"

// ErrorCode classifies LLM client failures
type ErrorCode string

const (
	CodeConfig ErrorCode = "CONFIG_ERROR" // missing key/model, detected before any call
	CodeAPI    ErrorCode = "API_ERROR"    // transport or non-2xx response
	CodeParse  ErrorCode = "PARSE_ERROR"  // response body not usable
)

// Error is a typed LLM failure
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func configErr(msg string) *Error {
	return &Error{Code: CodeConfig, Message: msg}
}

func apiErr(msg string, err error) *Error {
	return &Error{Code: CodeAPI, Message: msg, Err: err}
}

func parseErr(msg string, err error) *Error {
	return &Error{Code: CodeParse, Message: msg, Err: err}
}
