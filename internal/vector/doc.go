// Package vector holds the embedding wire layout and the arithmetic used to
// compare embeddings:
//   - Encode/Decode between []float32 and the stored BLOB layout
//   - Cosine similarity with a zero-norm guard
//   - L2 normalization and argmax helpers used by the inference backends
package vector
