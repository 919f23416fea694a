package utils_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/recon_backend/utils"
)

func TestDereferencePtr(t *testing.T) {
	value := "Main Checking"
	if got := utils.DereferencePtr(&value); got != "Main Checking" {
		t.Fatalf("DereferencePtr(&value) = %q", got)
	}
	if got := utils.DereferencePtr[string](nil); got != "" {
		t.Fatalf("nil without default = %q, want zero value", got)
	}
	if got := utils.DereferencePtr[string](nil, "unnamed account"); got != "unnamed account" {
		t.Fatalf("nil with default = %q", got)
	}
	if got := utils.DereferencePtr(&value, "unnamed account"); got != "Main Checking" {
		t.Fatalf("non-nil must win over the default, got %q", got)
	}

	n := 42
	if got := utils.DereferencePtr(&n, 7); got != 42 {
		t.Fatalf("DereferencePtr(&n, 7) = %d", got)
	}
	if got := utils.DereferencePtr[int](nil, 7); got != 7 {
		t.Fatalf("nil int with default = %d", got)
	}
}
