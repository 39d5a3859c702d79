package paging

import (
	"strconv"

	"storefront-api/internal/models"
)

// Direction identifies one of the three independent load channels of a list.
type Direction int

const (
	Refresh Direction = iota
	Prepend
	Append
	numDirections
)

func (d Direction) String() string {
	switch d {
	case Refresh:
		return "refresh"
	case Prepend:
		return "prepend"
	case Append:
		return "append"
	default:
		return "unknown"
	}
}

type Status int

const (
	Idle Status = iota
	Loading
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Failed:
		return "error"
	default:
		return "idle"
	}
}

// LoadState is the state of one direction. Err is set iff Status is Failed.
type LoadState struct {
	Status Status
	Err    error
}

func (s LoadState) IsIdle() bool    { return s.Status == Idle }
func (s LoadState) IsLoading() bool { return s.Status == Loading }
func (s LoadState) IsError() bool   { return s.Status == Failed }

// Snapshot is an immutable view of a list at one point in time.
type Snapshot struct {
	Query   Query
	Items   []models.Product
	Refresh LoadState
	Prepend LoadState
	Append  LoadState
	Prev    Token
	Next    Token
	Pages   int // pages loaded so far, including empty ones
}

// State returns the load state for d.
func (s Snapshot) State(d Direction) LoadState {
	switch d {
	case Prepend:
		return s.Prepend
	case Append:
		return s.Append
	default:
		return s.Refresh
	}
}

// EndReached reports that at least one page loaded and there is no next page.
func (s Snapshot) EndReached() bool {
	return s.Pages > 0 && s.Next == NoToken
}

func itoa(i int) string { return strconv.Itoa(i) }
