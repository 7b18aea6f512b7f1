// Package cli provides the interactive BuildLog command-line client.
//
// It wires configuration, the backend client, object storage, and the
// publish and rehydrate pipelines behind a small REPL. One draft is open at
// a time: "new" starts an empty one, "edit <id>" reopens a published project
// while its attachments keep loading in the background. "publish" runs in
// the background as well; "status" reports its progress.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
