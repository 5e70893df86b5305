package repo

import "errors"

// Error kinds surfaced by the repository manager and document handle.
// NotJson and NotFound are not redeclared here: callers match against
// codec.ErrNotJson and objstore.ErrNotFound directly, since those errors
// already originate at the layer that can tell them apart from a wrapped
// StoreError.
var (
	ErrBadKey          = errors.New("jsongit: key must be a non-empty string")
	ErrDifferentRepo   = errors.New("jsongit: document handles belong to different repositories")
	ErrInvalidArgument = errors.New("jsongit: invalid argument")
	ErrTypeMismatch    = errors.New("jsongit: operation does not match the value's kind")
)
