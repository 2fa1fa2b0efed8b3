// Package core provides the domain models for build-pass output metadata.
//
// # Core Types
//
// Pass: one execution of the host build for one configured target.
// Chunk: a group of modules emitted together as one or more files.
// Asset: an emitted file not owned by a chunk (source maps, loader output).
// FileDescriptor: one entry per emitted path, the unit the manifest pipeline
// works on.
//
// The Extractor turns a Pass into an ordered, path-unique descriptor
// sequence. Nothing in this package performs I/O except the Harvester and
// ContentHasher, which read from a build's output directory.
package core
