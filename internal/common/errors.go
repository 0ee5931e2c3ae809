// Package common defines shared constants and sentinel errors used across
// client and server layers of sitekeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Registry-level errors.
	ErrCollectionNotFound = errors.New("collection not found")

	// Repository-level errors.
	ErrEntityNotFound = errors.New("entity not found")
	ErrDuplicateID    = errors.New("duplicate id")

	// Request validation errors.
	ErrValidation = errors.New("validation error")
	ErrBadPayload = errors.New("bad payload")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Asset host errors.
	ErrUpload      = errors.New("upload error")
	ErrAssetDelete = errors.New("asset delete error")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")
)
