package mmr

import "errors"

// ErrOutOfRange is returned whenever a node or leaf position is requested
// that is beyond the current size of the MMR.
var ErrOutOfRange = errors.New("mmr: position out of range")

// ErrInvalidMMRSize is returned when an operation needs a valid MMR size
// (one that could actually have resulted from a sequence of leaf additions)
// and is given something else — this should only ever indicate a
// programming error, since sizes are always derived from NodeStore.Len().
var ErrInvalidMMRSize = errors.New("mmr: size is not a valid mmr size")
