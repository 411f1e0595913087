// Package engine runs a sync: it drives a substream slicer to completion,
// logs every produced slice and checkpoints the exported cursor state.
//
// A run is strictly single-threaded:
//
//  1. BeginRun records the run (UUIDv7 id) as running.
//  2. Incremental runs load the stream's last checkpoint and seed the
//     slicer with it; full-refresh runs start without state.
//  3. Each slice is stamped with the next logical seq, appended to the
//     slice log, then folded into cursor state with UpdateCursor.
//  4. State is checkpointed every N slices and once more at the end.
//  5. FinishRun records succeeded or failed with the slice count.
//
// Slices are pulled one at a time, so a Limit stops parent reads early.
package engine
