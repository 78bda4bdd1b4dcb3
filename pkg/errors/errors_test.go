package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodePaymentNotCompleted, status: http.StatusPaymentRequired, publicMsg: "payment not completed", retryable: true, detailsOK: true},
		{code: CodeSaleSubmission, status: http.StatusBadGateway, publicMsg: "order submission failed", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsMatchesWrappedCode(t *testing.T) {
	inner := New(CodePaymentNotCompleted, "timed out")
	outer := fmt.Errorf("checkout: %w", inner)
	if !Is(outer, CodePaymentNotCompleted) {
		t.Fatalf("expected Is to find wrapped code")
	}
	if Is(outer, CodeSaleSubmission) {
		t.Fatalf("unexpected code match")
	}
	if Is(nil, CodeInternal) {
		t.Fatalf("nil error should not match")
	}
}

type fakeUpstream struct{}

func (fakeUpstream) Error() string           { return "status 500" }
func (fakeUpstream) UpstreamStatus() int     { return http.StatusInternalServerError }
func (fakeUpstream) UpstreamMessage() string { return "stock exhausted" }

func TestDumpCapturesUpstream(t *testing.T) {
	err := Wrap(CodeSaleSubmission, fakeUpstream{}, "create sale")
	dump := Dump(err)
	if dump.Code != CodeSaleSubmission {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if dump.UpstreamStatus != http.StatusInternalServerError || dump.UpstreamMessage != "stock exhausted" {
		t.Fatalf("upstream fields not captured: %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
}

func TestToPublic(t *testing.T) {
	sale := New(CodeSaleSubmission, "Insufficient stock for Sugar 1kg").WithDetails(map[string]any{"receiptNumber": "QK12AB"})
	got := ToPublic(fmt.Errorf("checkout: %w", sale))
	if got.Code != CodeSaleSubmission || got.Message != "Insufficient stock for Sugar 1kg" {
		t.Fatalf("sale message should pass through, got %+v", got)
	}
	if !got.Retryable || got.Details == nil {
		t.Fatalf("expected retryable with details, got %+v", got)
	}

	dep := New(CodeDependency, "dial tcp 10.0.0.4:443: i/o timeout")
	if got := ToPublic(dep); got.Message != "dependency unavailable" {
		t.Fatalf("dependency internals must not leak, got %q", got.Message)
	}

	unauth := New(CodeUnauthorized, "session expired").WithDetails("ignored")
	if got := ToPublic(unauth); got.Details != nil {
		t.Fatalf("details not allowed for unauthorized, got %v", got.Details)
	}

	if got := ToPublic(stdErrors.New("boom")); got.Code != CodeInternal || got.Message != "internal server error" {
		t.Fatalf("untyped errors should be internal, got %+v", got)
	}
}
