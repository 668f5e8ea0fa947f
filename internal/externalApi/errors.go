package externalApi

import "errors"

// ErrNotFound means the requested currency is absent from a provider's
// response. Transport failures carry no sentinel, they flow raw into the
// rate service's fallback handling.
var ErrNotFound = errors.New("currency not found in provider response")
