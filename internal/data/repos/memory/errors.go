package memory

import "errors"

var errInvalid = errors.New("invalid record")
