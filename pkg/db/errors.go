package db

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateQueryCanceled        = "57014"
)

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided the violated constraint must match it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pkgerrors.SQLState(err) == sqlStateUniqueViolation {
		return constraintName == "" || pkgerrors.Constraint(err) == constraintName ||
			strings.Contains(err.Error(), constraintName)
	}
	msg := err.Error()
	if strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed") {
		return constraintName == "" || strings.Contains(msg, constraintName)
	}
	return false
}

// IsConcurrencyFailure reports whether err means the transaction lost a race
// or ran out of time waiting for a lock, so the caller may retry it.
func IsConcurrencyFailure(err error) bool {
	if err == nil {
		return false
	}
	switch pkgerrors.SQLState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable, sqlStateQueryCanceled:
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "database is locked")
}

// ClassifyTxError maps raw transaction failures onto typed errors. Typed errors
// pass through untouched unless they are dependency errors caused by a lost race.
func ClassifyTxError(err error, message string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		if typed.Code() == pkgerrors.CodeDependency && IsConcurrencyFailure(err) {
			return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, message)
		}
		return err
	}
	if IsConcurrencyFailure(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
