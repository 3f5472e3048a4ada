// Package docker wraps the container engine for the roundtrip CLI.
//
// The pipeline steps themselves (build, run, export, rm) are executed as
// `docker` CLI processes; this package only builds their argument vectors
// (commands.go) so that every step can be logged, archived and tested as a
// plain argv.
//
// The Docker Engine SDK (github.com/docker/docker/client) is used for the
// out-of-band operations that need structured answers:
//   - daemon reachability (Ping)
//   - looking up a container by its fixed name before a run starts
//   - force-removing a stale container left over from a failed run
//
// Containers created by roundtrip carry "roundtrip.*" labels (label.go),
// which lets the preflight check tell its own leftovers apart from
// unrelated containers that happen to use the same name.
package docker
