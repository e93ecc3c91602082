package snapshot

import (
	"errors"
	"fmt"
)

// ContractErrorCode categorizes snapshot contract violations.
type ContractErrorCode string

const (
	// ErrCodeDuplicateSection: a section identifier appears twice.
	ErrCodeDuplicateSection ContractErrorCode = "DUPLICATE_SECTION"

	// ErrCodeDuplicateItem: an item identifier appears twice, possibly in
	// different sections.
	ErrCodeDuplicateItem ContractErrorCode = "DUPLICATE_ITEM"

	// ErrCodeSectionNotFound: an operation names a section that does not exist.
	ErrCodeSectionNotFound ContractErrorCode = "SECTION_NOT_FOUND"

	// ErrCodeItemNotFound: an operation names an item that does not exist.
	ErrCodeItemNotFound ContractErrorCode = "ITEM_NOT_FOUND"

	// ErrCodeNoSection: items were appended to a snapshot without sections.
	ErrCodeNoSection ContractErrorCode = "NO_SECTION"

	// ErrCodeMalformed: a decoded document does not have the snapshot shape.
	ErrCodeMalformed ContractErrorCode = "MALFORMED"
)

// ContractError reports a violated snapshot invariant.
type ContractError struct {
	Code ContractErrorCode
	ID   ID
	Op   string
	Msg  string
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	switch {
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	case e.ID != "":
		return fmt.Sprintf("%s: %s %q", e.Code, e.Op, e.ID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Op)
	}
}

// IsContractError reports whether err wraps a *ContractError with the given
// code. An empty code matches any contract error.
func IsContractError(err error, code ContractErrorCode) bool {
	var ce *ContractError
	if !errors.As(err, &ce) {
		return false
	}
	return code == "" || ce.Code == code
}

func violation(code ContractErrorCode, op string, id ID) *ContractError {
	return &ContractError{Code: code, Op: op, ID: id}
}
