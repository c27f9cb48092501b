package domain

import "errors"

var (
	// ErrInvalidInput reports a caller-contract violation (bad budget, empty text, etc.).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a document does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrNotPDF marks payloads that are not PDF documents.
	ErrNotPDF = errors.New("not a pdf document")
	// ErrFileTooLarge marks uploads above the configured limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidURL marks malformed or unsupported URLs.
	ErrInvalidURL = errors.New("invalid url")
	// ErrURLNotAccessible marks URLs that could not be fetched.
	ErrURLNotAccessible = errors.New("url not accessible")
	// ErrPersistence wraps every failure surfaced by the storage layer.
	ErrPersistence = errors.New("persistence error")
)
