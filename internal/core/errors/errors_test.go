package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeConflict, "fix overlaps previous edit")
		if err.Error() != "[CONFLICT] fix overlaps previous edit" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("permission denied")
		err := Wrap(original, CodeIO, "read source")
		expected := "[IO_ERROR] read source: permission denied"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to the original")
		}
	})

	t.Run("ContextIsOrdered", func(t *testing.T) {
		err := AddContext(New(CodeIO, "read"), CtxPath, "src/A.php")
		err = AddContext(err, CtxLine, 3)
		expected := "[IO_ERROR] read line=3 path=src/A.php"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("check file: %w", Wrap(errors.New("timeout"), CodeOracle, "resolve"))
		if !IsCode(err, CodeOracle) {
			t.Error("expected IsCode to see through fmt.Errorf wrapping")
		}
		if IsCode(err, CodeValidationError) {
			t.Error("wrong code matched")
		}
	})

	t.Run("AddContextKeepsChain", func(t *testing.T) {
		inner := New(CodeIO, "read")
		wrapped := fmt.Errorf("scan: %w", inner)
		err := AddContext(wrapped, CtxPath, "src/A.php")
		if err != wrapped {
			t.Error("expected the original chain to be returned")
		}
		var de *DomainError
		if !errors.As(err, &de) || de.Context[CtxPath] != "src/A.php" {
			t.Errorf("expected path context, got %v", err)
		}

		plain := AddContext(errors.New("boom"), CtxLine, 3)
		if !IsCode(plain, CodeInternal) {
			t.Errorf("expected plain errors to become internal, got %v", plain)
		}
	})

	t.Run("IsSkip", func(t *testing.T) {
		if !IsSkip(New(CodeNotSourceFile, "no open tag")) || !IsSkip(New(CodeNoTypeDeclaration, "routes")) {
			t.Error("expected not-applicable codes to be skips")
		}
		if IsSkip(New(CodeIO, "read")) || IsSkip(nil) {
			t.Error("I/O errors and nil are not skips")
		}
		if CodeOf(nil) != "" || CodeOf(errors.New("x")) != CodeInternal {
			t.Error("unexpected CodeOf results for nil or foreign errors")
		}
		if IsCode(nil, "") {
			t.Error("nil has no code")
		}
	})
}
