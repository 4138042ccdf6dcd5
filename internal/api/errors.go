package api

import (
	"errors"
)

// ErrNotFound is returned when the Portal answers 404 for an object.
var ErrNotFound = errors.New("portal object not found")

// ErrNoUploadCredentials is returned when a PATCH succeeded but the
// response @graph did not carry an upload credential bundle.
var ErrNoUploadCredentials = errors.New("unable to obtain upload credentials")
