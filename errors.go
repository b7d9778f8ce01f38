package branchsync

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Subscribe after Close.
	ErrClosed = errors.New("branchsync: syncer is closed")
)

// UnknownCollectionError reports a collection name that was not registered in
// Options.Collections. Subscribing to one fails fast rather than silently
// creating a dead partition nothing will ever publish to.
type UnknownCollectionError struct {
	Collection string
}

func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("branchsync: unknown collection %q", e.Collection)
}
