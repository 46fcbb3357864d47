//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package errors

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks a malformed request, e.g. a range repartition
// without boundaries.
type ErrInvalidArgument struct {
	err error
}

func (e ErrInvalidArgument) Error() string {
	return e.err.Error()
}

func (e ErrInvalidArgument) Unwrap() error {
	return e.err
}

func NewErrInvalidArgument(err error) ErrInvalidArgument {
	return ErrInvalidArgument{err}
}

func NewErrInvalidArgumentf(format string, args ...interface{}) ErrInvalidArgument {
	return ErrInvalidArgument{fmt.Errorf(format, args...)}
}

// ErrColumnNotFound is returned when a partitioning or delete column is
// absent from a table.
type ErrColumnNotFound struct {
	Column string
}

func (e ErrColumnNotFound) Error() string {
	return fmt.Sprintf("column %q does not exist in the table", e.Column)
}

func NewErrColumnNotFound(column string) ErrColumnNotFound {
	return ErrColumnNotFound{Column: column}
}

// ErrSchemaMismatch reports a delete payload that lacks its declared target
// columns or tables that cannot be concatenated.
type ErrSchemaMismatch struct {
	err error
}

func (e ErrSchemaMismatch) Error() string {
	return e.err.Error()
}

func (e ErrSchemaMismatch) Unwrap() error {
	return e.err
}

func NewErrSchemaMismatch(err error) ErrSchemaMismatch {
	return ErrSchemaMismatch{err}
}

func NewErrSchemaMismatchf(format string, args ...interface{}) ErrSchemaMismatch {
	return ErrSchemaMismatch{fmt.Errorf(format, args...)}
}

// ErrRowCountMismatch means rows were lost or duplicated while partitioning.
// It always indicates a logic defect and is never retried.
type ErrRowCountMismatch struct {
	Expected int
	Actual   int
}

func (e ErrRowCountMismatch) Error() string {
	return fmt.Sprintf("repartitioned table should have the same number of records %d as the original table %d",
		e.Actual, e.Expected)
}

func NewErrRowCountMismatch(expected, actual int) ErrRowCountMismatch {
	return ErrRowCountMismatch{Expected: expected, Actual: actual}
}

type ErrUnsupportedOperation struct {
	err error
}

func (e ErrUnsupportedOperation) Error() string {
	return e.err.Error()
}

func (e ErrUnsupportedOperation) Unwrap() error {
	return e.err
}

func NewErrUnsupportedOperationf(format string, args ...interface{}) ErrUnsupportedOperation {
	return ErrUnsupportedOperation{fmt.Errorf(format, args...)}
}

// ErrConfigurationDrift is returned when the fingerprint of a stored
// checkpoint differs from the current run. Callers recover from it by
// rebasing the destination from scratch.
type ErrConfigurationDrift struct {
	err error
}

func (e ErrConfigurationDrift) Error() string {
	return e.err.Error()
}

func (e ErrConfigurationDrift) Unwrap() error {
	return e.err
}

func NewErrConfigurationDriftf(format string, args ...interface{}) ErrConfigurationDrift {
	return ErrConfigurationDrift{fmt.Errorf(format, args...)}
}

type ErrNotFound struct {
	err error
}

func (e ErrNotFound) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return "not found"
}

func (e ErrNotFound) Unwrap() error {
	return e.err
}

func NewErrNotFound(err error) ErrNotFound {
	return ErrNotFound{err}
}

func IsInvalidArgument(err error) bool {
	var target ErrInvalidArgument
	return errors.As(err, &target)
}

func IsColumnNotFound(err error) bool {
	var target ErrColumnNotFound
	return errors.As(err, &target)
}

func IsSchemaMismatch(err error) bool {
	var target ErrSchemaMismatch
	return errors.As(err, &target)
}

func IsRowCountMismatch(err error) bool {
	var target ErrRowCountMismatch
	return errors.As(err, &target)
}

func IsUnsupportedOperation(err error) bool {
	var target ErrUnsupportedOperation
	return errors.As(err, &target)
}

func IsConfigurationDrift(err error) bool {
	var target ErrConfigurationDrift
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target ErrNotFound
	return errors.As(err, &target)
}

// IsDataIntegrity reports whether err signals corrupted output rather than
// a bad request. Such errors must be surfaced loudly.
func IsDataIntegrity(err error) bool {
	return IsRowCountMismatch(err) || IsSchemaMismatch(err)
}
