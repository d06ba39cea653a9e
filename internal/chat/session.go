package chat

// SessionState tracks where a connection is in its lifecycle.
type SessionState int

const (
	// StateUnbound: accepted, no username or room bound yet.
	StateUnbound SessionState = iota
	// StateJoined: username and room bound by a successful join.
	StateJoined
	// StateClosed: registry entry removed, terminal.
	StateClosed
)

// Session is the dispatcher's per-connection state, threaded explicitly
// through every dispatch instead of being closed over by handlers.
type Session struct {
	sender     Sender
	remoteAddr string

	state    SessionState
	connID   string
	username string
}

func NewSession(sender Sender, remoteAddr string) *Session {
	return &Session{
		sender:     sender,
		remoteAddr: remoteAddr,
		state:      StateUnbound,
	}
}

func (s *Session) State() SessionState {
	return s.state
}

func (s *Session) ConnID() string {
	return s.connID
}

func (s *Session) Username() string {
	return s.username
}

func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}
