package query

import "fmt"

// ParseError reports malformed query syntax with the offending fragment so
// the transport layer can surface a client-correctable 400.
type ParseError struct {
	Fragment string
	Message  string
}

func (e *ParseError) Error() string {
	if e.Fragment != "" {
		return fmt.Sprintf("parse query: %s at %q", e.Message, e.Fragment)
	}
	return "parse query: " + e.Message
}

func parseErrorf(fragment, format string, args ...any) *ParseError {
	return &ParseError{Fragment: fragment, Message: fmt.Sprintf(format, args...)}
}
