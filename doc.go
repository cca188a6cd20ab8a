// Package roshni is the agent orchestration core of a personal-assistant
// platform: it accepts user messages, scheduled-job firings, and
// background heartbeats from multiple gateways; serializes them through a
// priority queue; drives a tool-calling conversation loop against an LLM
// provider with durable history repair and automatic recovery; and
// executes long-running, multi-phase projects as an event-sourced state
// machine with checkpointing, bounded-concurrency workers, and budget
// enforcement.
//
// # Subsystems
//
//   - pkg/gateway — bounded priority queue, serialized consumer, dead-letter tracking.
//   - pkg/scheduler — cron-triggered heartbeat and named-job submission.
//   - pkg/agent — tool-calling LLM loop with history repair, approval gating, recovery.
//   - pkg/orchestrator / pkg/workflow / pkg/worker — event-sourced project state machine.
//   - pkg/project — identity resolution and persistence across an optional external registry.
//
// The command-line entry point lives in cmd/roshnid.
package roshni
