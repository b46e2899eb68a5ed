// Package ingestion provides pipeline orchestration for capturing packets.
//
// The Pipeline type manages the capture workflow, including:
//   - Validating and storing packets
//   - Recording usage of the tags the packet arrived with
//   - Extracting additional tags from the content asynchronously
//
// Enrichment is performed concurrently using a worker pool. Errors during
// async enrichment are logged but do not fail the capture operation.
package ingestion
