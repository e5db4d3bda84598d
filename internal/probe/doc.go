// Package probe fetches source animations and discovers their natural pixel
// dimensions, frame count, and duration.
//
// Natural dimensions gate every pixel-accurate step downstream; until a
// probe succeeds the pipeline only has preview-space geometry. Fetch and
// decode failures are both tagged as network faults since the orchestrator
// treats an unreachable source and a corrupt source the same way.
package probe
