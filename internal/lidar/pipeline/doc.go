// Package pipeline runs the sensing loop: nodes from an l1packets.Source
// are collected into rotations by an l2frames.RotationBuffer, each
// complete rotation is handed to the l5tracks.Tracker, and the result is
// timed, counted and optionally recorded.
//
// This package is the composition root for the layers below it; none of
// them import pipeline.
package pipeline
