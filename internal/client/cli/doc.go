// Package cli provides the interactive gophnotes command-line client.
//
// App wires configuration, the local cache, the sync engine and the account
// and note services, then runs a REPL over stdin. Sync runs in the
// background: on a timer, on push events and after every local change. A
// connectivity watcher checks the server's gRPC health endpoint and shows
// the result in the prompt.
package cli
