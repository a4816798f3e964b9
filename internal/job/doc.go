// Package job is the dynamic job scheduling and execution engine.
//
// A Manager tracks recurring units of work ("tracked jobs"), fires each one
// on its own interval (or cron spec), retries failures with capped
// exponential backoff, and drains everything on Close. All state is
// in-memory; nothing survives a process restart.
//
// The engine is deliberately fire-and-forget from the host's perspective:
// registration and lifecycle control report success as a bool, execution
// outcomes surface via GetJob, the event bus, and logs.
package job
