// Package faults defines the error taxonomy shared across the compositing
// pipeline.
//
// Lower-level components (geometry, render, probe, engine) tag failures with
// one of the exported sentinel markers and report once; only the pipeline
// orchestrator consults the retry table and decides whether an operation is
// attempted again. Callers classify with errors.Is or the Classify helper
// rather than string matching.
package faults
