// Package adapter implements the data sources that feed connection snapshots
// to the engine.
//
// Every adapter returns a full snapshot of its source on Sync. The Registry
// polls adapters on their interval (and on change notifications for watch
// adapters), keeps the latest snapshot per adapter, and submits the union of
// all of them.
//
// # Adapters
//
// FileAdapter reads a JSON or YAML snapshot file and watches it for changes.
//
// SocketAdapter lists established sockets on the local machine.
//
// ConntrackAdapter reads the netfilter connection tracking table, which on a
// gateway covers every forwarded connection.
//
// SSHConntrackAdapter reads the same table from a remote gateway over SSH.
package adapter
