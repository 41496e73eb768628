package models

import (
	"database/sql/driver"
	"errors"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "A"
	UserRoleOperator UserRole = "O"
	UserRoleConsult  UserRole = "C"
)

func (t UserRole) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *UserRole) Scan(v interface{}) error {
	switch s := v.(type) {
	case string:
		*t = UserRole(s)
	case []byte:
		*t = UserRole(s)
	default:
		return errors.New("invalid user role")
	}
	return nil
}

// ReconcileStatus is the outcome of one reconciliation attempt.
type ReconcileStatus string

const (
	// ReconcileStatusSynced: the canonical invoice was fetched and its line
	// items persisted (possibly with per-item failures, reported separately).
	ReconcileStatusSynced ReconcileStatus = "Synced"
	// ReconcileStatusAlreadySynced: detail rows for the natural key already
	// existed; no gateway call was made.
	ReconcileStatusAlreadySynced ReconcileStatus = "AlreadySynced"
	// ReconcileStatusFailed: the attempt aborted before any write.
	ReconcileStatusFailed ReconcileStatus = "Failed"
)
