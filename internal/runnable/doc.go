// Package runnable holds the builtin recurring jobs the daemon registers on
// the engine: the systemd watchdog heartbeat, the network probe, and the
// history prune job.
package runnable
