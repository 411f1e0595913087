// Package slicer turns ordered parent streams into child-stream slices and
// folds per-slice cursor updates into an exportable state mapping.
//
// # Slices
//
// For each parent, in configured order, for each partition the parent lists,
// the parent's records for that partition are read and one slice is produced
// per record:
//
//	{<stream_slice_field>: record[<parent_key>], "parent_slice": partition[<partition_field>]}
//
// A partition with no records still produces exactly one slice, with the
// record value taken from the partition itself (null when absent). All slices
// of one parent are produced before the next parent is asked for partitions.
//
// Iteration is lazy: nothing is read from a parent until the consumer asks
// for the slice that needs it, so a consumer may stop at any point.
//
// # Cursor state
//
// UpdateCursor accepts a slice whose keys (other than "parent_slice") are all
// configured stream-slice fields and hands it to the CursorPolicy. Anything
// else is rejected and leaves state as it was. StreamState returns nil until
// an accepted update leaves a non-empty mapping.
package slicer
