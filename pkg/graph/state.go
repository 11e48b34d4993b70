package graph

type State byte

const (
	StateVoidPending State = iota
	StateNull
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	}
	return "VOID_PENDING"
}

// Active - element accepts and produces buffers
func (s State) Active() bool {
	return s >= StatePaused
}
