// Package pipeline orchestrates one compositing run end to end: input
// validation, lazy engine initialization, source probing, overlay
// rasterization, engine compositing, and result delivery.
//
// The Processor is the only component that retries; every lower layer
// reports a tagged failure once. A generation token makes "last call wins"
// explicit: starting a new run supersedes the in-flight one and any late
// progress or completion from the superseded run is discarded rather than
// delivered to a stale caller.
package pipeline
