package source

import "fmt"

// RejectedIdentifierError is returned when a descriptor references a table or column
// outside the compiled-in allow-sets.
type RejectedIdentifierError struct {
	Source string `json:"source"`
	Field  string `json:"field"`
	Value  string `json:"value"`
}

func (e *RejectedIdentifierError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("source %q rejected: %s", e.Source, e.Value)
	}
	return fmt.Sprintf("source %q rejected: %s %q is not allow-listed", e.Source, e.Field, e.Value)
}

func rejected(d Descriptor, field, value string) *RejectedIdentifierError {
	return &RejectedIdentifierError{Source: d.Name, Field: field, Value: value}
}
