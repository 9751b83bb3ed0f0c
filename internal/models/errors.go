package models

// ErrorKind classifies a failure at the boundary where it happened.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindTransport  ErrorKind = "transport"
	KindUpstream   ErrorKind = "upstream"
	KindParse      ErrorKind = "parse"
	KindDerivation ErrorKind = "derivation"
)

// SectionError carries the reason a data section is absent. A section with a
// SectionError renders as error-with-message, never silently blank.
type SectionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func NewSectionError(kind ErrorKind, message string) *SectionError {
	return &SectionError{Kind: kind, Message: message}
}
