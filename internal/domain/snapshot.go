package domain

// Snapshot is the document form of a connection snapshot, as read from
// files and HTTP bodies
type Snapshot struct {
	Connections []Connection `json:"connections" yaml:"connections"`
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Connections: make([]Connection, 0),
	}
}

// Add appends a connection to the snapshot
func (s *Snapshot) Add(c Connection) {
	s.Connections = append(s.Connections, c)
}
