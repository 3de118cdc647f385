package app

import "fmt"

// DomainError is an error the API maps directly to an HTTP response. The
// service layer returns these for expected failures (validation, conflicts,
// permission denials); anything else surfaces as a 500.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message, Details: details}
}
