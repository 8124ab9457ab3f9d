package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mindlab/health/internal/platform/apperr"
)

func TestNotFound(t *testing.T) {
	err := NotFound(fmt.Errorf("scan: %w", pgx.ErrNoRows), "appointment")
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "appointment not found" {
		t.Errorf("unexpected message %q", err.Error())
	}

	other := errors.New("connection reset")
	if got := NotFound(other, "appointment"); got != other {
		t.Errorf("expected other errors unchanged, got %v", got)
	}
	if NotFound(nil, "appointment") != nil {
		t.Error("expected nil for nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	if !IsUniqueViolation(dup) {
		t.Error("expected unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Error("plain errors are not unique violations")
	}
}
