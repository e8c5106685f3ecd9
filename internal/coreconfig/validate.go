package coreconfig

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyRootDir indicates a missing project root.
	ErrEmptyRootDir = errors.New("empty root directory")

	// ErrInvalidDimension indicates a non-positive embedding dimension.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrEmptyEndpoint indicates a missing provider endpoint.
	ErrEmptyEndpoint = errors.New("empty provider endpoint")

	// ErrInvalidBatchSize indicates a non-positive indexing batch size.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrEmptyCollectionName indicates a missing vector store collection name.
	ErrEmptyCollectionName = errors.New("empty collection name")
)

// Validate checks that Settings is complete and internally consistent,
// the same role the teacher's Validate(*Config) plays, generalized
// across every subsystem this module adds.
func Validate(s *Settings) error {
	var errs []error

	if strings.TrimSpace(s.RootDir) == "" {
		errs = append(errs, ErrEmptyRootDir)
	}

	if s.Dense.Enabled {
		if s.Dense.Dimension <= 0 {
			errs = append(errs, fmt.Errorf("%w: dense_embedding.dimension must be positive, got %d", ErrInvalidDimension, s.Dense.Dimension))
		}
		if strings.TrimSpace(s.Dense.Endpoint) == "" {
			errs = append(errs, fmt.Errorf("%w: dense_embedding.endpoint is required when enabled", ErrEmptyEndpoint))
		}
	}
	if s.Sparse.Enabled && s.Sparse.Name != "bm25" && strings.TrimSpace(s.Sparse.Endpoint) == "" {
		errs = append(errs, fmt.Errorf("%w: sparse_embedding.endpoint is required for a non-bm25 sparse provider", ErrEmptyEndpoint))
	}

	if s.Indexing.BatchFiles <= 0 {
		errs = append(errs, fmt.Errorf("%w: indexing.batch_files must be positive, got %d", ErrInvalidBatchSize, s.Indexing.BatchFiles))
	}
	if s.Indexing.BatchChunks <= 0 {
		errs = append(errs, fmt.Errorf("%w: indexing.batch_chunks must be positive, got %d", ErrInvalidBatchSize, s.Indexing.BatchChunks))
	}

	if strings.TrimSpace(s.Vector.CollectionName) == "" {
		errs = append(errs, ErrEmptyCollectionName)
	}

	if len(errs) == 0 {
		return nil
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
