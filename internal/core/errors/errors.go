package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorCode string

const (
	// CodeIO marks an unreadable file. Fatal for that file only.
	CodeIO ErrorCode = "IO_ERROR"
	// CodeNotSourceFile marks content without an open tag. Skipped silently.
	CodeNotSourceFile ErrorCode = "NOT_SOURCE_FILE"
	// CodeNoTypeDeclaration marks files that declare no class, interface or trait.
	CodeNoTypeDeclaration ErrorCode = "NO_TYPE_DECLARATION"
	// CodeOracle marks a failed existence query. Never treated as "unresolved".
	CodeOracle ErrorCode = "ORACLE_ERROR"

	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeConflict        ErrorCode = "CONFLICT"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// Context keys.
const (
	CtxPath = "path"
	CtxLine = "line"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]any
}

func (e *DomainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Context[k])
	}
	return b.String()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext records key on the DomainError in err's chain. Foreign errors
// are wrapped as CodeInternal first.
func AddContext(err error, key string, value any) error {
	var de *DomainError
	if !errors.As(err, &de) {
		de = &DomainError{Code: CodeInternal, Message: "wrapped error", Err: err}
		err = de
	}
	if de.Context == nil {
		de.Context = make(map[string]any, 2)
	}
	de.Context[key] = value
	return err
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// CodeOf returns the code of the first DomainError in err's chain, or
// CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsSkip reports whether err only means "this file is not applicable".
func IsSkip(err error) bool {
	switch CodeOf(err) {
	case CodeNotSourceFile, CodeNoTypeDeclaration:
		return true
	}
	return false
}
