package table

import "errors"

var (
	// ErrDecode reports inconsistent source data, such as sample vectors
	// whose length differs from the time axis.
	ErrDecode = errors.New("decode error")

	// ErrSchema reports metadata that cannot be reconciled within one
	// source, or a table that lacks the expected layout.
	ErrSchema = errors.New("schema error")

	// ErrSchemaConflict reports a column declared with different types
	// (or, in strict mode, different metadata) by two input tables.
	ErrSchemaConflict = errors.New("schema conflict")

	// ErrEmptyInput is returned when concatenating zero tables.
	ErrEmptyInput = errors.New("no tables to concatenate")
)
