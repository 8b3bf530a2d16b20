package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeEmptyCart, http.StatusUnprocessableEntity},
		{CodeInsufficientStock, http.StatusConflict},
		{CodeInsufficientPoints, http.StatusConflict},
		{CodeStateConflict, http.StatusUnprocessableEntity},
		{CodePaymentGateway, http.StatusBadGateway},
		{CodeNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.code, tc.status, got)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestAsUnwrapsThroughChain(t *testing.T) {
	t.Parallel()

	base := New(CodeInsufficientStock, "only 2 left").WithDetails(map[string]any{"available": 2})
	wrapped := fmt.Errorf("checkout: %w", base)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeInsufficientStock {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
	if typed.Details() == nil {
		t.Fatal("expected details to survive wrapping")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("row lock timeout")
	err := Wrap(CodeDependency, cause, "reserve stock")
	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if As(err).Message() != "reserve stock" {
		t.Fatalf("unexpected message: %s", As(err).Message())
	}
}
