package errs

import "net/http"

// Request errors
var (
	ErrInvalidRequest = New(http.StatusBadRequest, "incorrect format")
	ErrInternal       = New(http.StatusInternalServerError, "internal server error")
	ErrUpstream       = New(http.StatusInternalServerError, "upstream provider failed")
)

// Authentication errors
var (
	ErrNoToken            = New(http.StatusUnauthorized, "access denied, no token provided")
	ErrInvalidToken       = New(http.StatusUnauthorized, "invalid token")
	ErrInvalidCredentials = New(http.StatusUnauthorized, "invalid email or password")
	ErrUserNotFound       = New(http.StatusNotFound, "user not found")
	ErrEmailExists        = New(http.StatusConflict, "email already exists, try to use another email")
)

// Content errors
var (
	ErrContentNotFound = New(http.StatusNotFound, "content not found")
	ErrSharedNotFound  = New(http.StatusNotFound, "content not found or access denied")
	ErrNoSearchResults = New(http.StatusNotFound, "no content found matching the query")
)

// Social errors
var (
	ErrTwitterNotConnected = New(http.StatusBadRequest, "twitter not connected or missing credentials")
	ErrOAuthStateInvalid   = New(http.StatusBadRequest, "oauth request is invalid or has expired")
	ErrUnknownPlatform     = New(http.StatusBadRequest, "unsupported platform")
)
