package tng

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/gftdcojp/tng-client/pkg/cosmology"
)

var (
	// ErrCredentialMissing is returned by New when no API key is supplied.
	ErrCredentialMissing = config.ErrCredentialMissing

	// ErrInvalidIdentity is returned when identifying keys do not resolve
	// to exactly one level of the hierarchy.
	ErrInvalidIdentity = errors.New("tng: invalid identity")

	// ErrUnknownResource is returned when a requested file or visual key is
	// absent from a node's attributes.
	ErrUnknownResource = errors.New("tng: unknown resource")

	// ErrUnknownCosmology is returned when simulation metadata names a
	// cosmology outside the known table.
	ErrUnknownCosmology = cosmology.ErrUnknown

	// ErrMissingField is returned when an expected attribute is absent or
	// has the wrong type.
	ErrMissingField = errors.New("tng: missing field")

	// ErrNotMetadata is returned when an attribute fetch yields a body that
	// is not a JSON object.
	ErrNotMetadata = errors.New("tng: response is not JSON metadata")
)

// RemoteError reports a non-success HTTP status from the archive.
type RemoteError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *RemoteError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("tng: GET %s: %d %s", e.URL, e.StatusCode, status)
}

// NotFound reports whether the archive answered 404.
func (e *RemoteError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsRemote reports whether err wraps a RemoteError and returns it.
func IsRemote(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
