package ingestion

import "errors"

var (
	// ErrPacketRepositoryRequired is returned when a packet repository is not provided.
	ErrPacketRepositoryRequired = errors.New("packet repository required")

	// ErrTagRepositoryRequired is returned when a tag repository is not provided.
	ErrTagRepositoryRequired = errors.New("tag repository required")

	// ErrExtractorRequired is returned when a tag extractor is not provided.
	ErrExtractorRequired = errors.New("tag extractor required")
)
