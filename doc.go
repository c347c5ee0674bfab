// Package ojs is the Go SDK for the Open Job Spec protocol. It provides
// a worker runtime that claims jobs from an OJS coordinator, executes
// registered handlers under a bounded concurrency budget, and reports
// outcomes back, plus a client for enqueueing jobs and managing queues
// and schedules.
//
// OJS is coordinator-agnostic: the SDK talks to any conforming server
// through a small transport seam (see the transport package), with HTTP
// and WebSocket bindings included.
//
// # Quick Start
//
//	reg := job.NewRegistry()
//	job.Register(reg, job.NewDefinition("email.send", sendEmail))
//
//	w := worker.New(transport.NewHTTP("http://localhost:8288"), reg,
//	    worker.WithQueues("default"),
//	    worker.WithConcurrency(20),
//	)
//	w.Start(ctx)
//
// # Architecture
//
// The worker owns a lifecycle state machine (running, quiet, terminate,
// terminated), a claim loop that respects remaining capacity, and a
// heartbeat loop through which the coordinator can direct state
// transitions. Job execution flows through an onion-style middleware
// chain; handlers registered as durable get a deterministic-replay
// execution context backed by coordinator checkpoints.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package ojs
