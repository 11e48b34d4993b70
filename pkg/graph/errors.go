package graph

import (
	"errors"
)

var (
	ErrNotLinked       = errors.New("graph: pad not linked")
	ErrAlreadyLinked   = errors.New("graph: pad already linked")
	ErrWrongDirection  = errors.New("graph: wrong pad direction")
	ErrWrongHierarchy  = errors.New("graph: wrong hierarchy")
	ErrNoSuchFactory   = errors.New("graph: no such element factory")
	ErrUnknownProperty = errors.New("graph: unknown property")
	ErrWrongProperty   = errors.New("graph: wrong property value")
	ErrNoSuchPad       = errors.New("graph: no such pad")
	ErrFlushing        = errors.New("graph: element not active")
	ErrWatchExists     = errors.New("graph: bus watch already exists")
	ErrNameExists      = errors.New("graph: element name already exists")
)
