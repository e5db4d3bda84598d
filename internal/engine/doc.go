// Package engine owns the lifecycle of the heavyweight transcoding backend
// that burns the pre-rendered overlay raster into the source animation.
//
// The Adapter is a state machine (Uninitialized, Initializing, Ready,
// Processing, Cancelling, Failed) around a Backend. Initialization is
// memoized so concurrent callers share one load; a Failed backend is never
// healed in place, only disposed and reloaded. Two backends exist: an
// ffmpeg shell-out that composites through a filter graph, and a pure-Go
// fallback that composites frame by frame.
package engine
