package lsh

import "errors"

// Common errors
var (
	// ErrInvalidParameter is returned when an index parameter is out of range
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDataset is returned when dataset contents are unusable
	// (dimension mismatch, non-finite values, empty data)
	ErrDataset = errors.New("invalid dataset")

	// ErrTraining is returned when a decomposition fails to converge
	ErrTraining = errors.New("training failed")

	// ErrIO is returned on file open, read, or write failures
	ErrIO = errors.New("i/o failure")

	// ErrFormat is returned when a serialized index stream is inconsistent
	ErrFormat = errors.New("malformed index stream")

	// ErrState is returned when an operation is invoked in the wrong
	// lifecycle state (e.g. Hash before TrainAll)
	ErrState = errors.New("invalid index state")
)
