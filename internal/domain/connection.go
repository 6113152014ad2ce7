package domain

import (
	"fmt"
	"strconv"
)

// Connection is one observed connection tuple as delivered by a data source
type Connection struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Port   int    `json:"port" yaml:"port"`
}

// Key returns the diff identity of the tuple: source_target_port
func (c Connection) Key() string {
	return c.Source + "_" + c.Target + "_" + strconv.Itoa(c.Port)
}

// PortNodeID returns the id of the port node this connection goes through
func (c Connection) PortNodeID() string {
	return PortNodeID(c.Port)
}

// Involves checks if this connection involves the given address
func (c Connection) Involves(addr string) bool {
	return c.Source == addr || c.Target == addr
}

// String renders the tuple for logs
func (c Connection) String() string {
	return fmt.Sprintf("%s -> %s:%d", c.Source, c.Target, c.Port)
}
