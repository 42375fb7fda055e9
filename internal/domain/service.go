package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// ArticleExtractor fetches an article page and pulls out the pieces the
// pipeline needs.
type ArticleExtractor interface {
	// Extract fetches the page and returns its title, body text and
	// section headings. Fails with FETCH_FAILED or PAGE_PARSE_FAILED.
	Extract(ctx context.Context, url string) (*ArticleContent, error)
	// ValidateOnly performs a fast fetch + title lookup with a shorter
	// timeout, for pre-flight checks.
	ValidateOnly(ctx context.Context, url string) (string, error)
}

// QuizSynthesizer turns extracted article text into a validated quiz
// structure via the text-generation backend.
type QuizSynthesizer interface {
	// Synthesize fails with GENERATION_FAILED when the backend is
	// unreachable and MALFORMED_OUTPUT when its response does not conform
	// to the required structure.
	Synthesize(ctx context.Context, title, bodyText string) (*SynthesizedQuiz, error)
}

// QuizRepository persists quiz records. The URL uniqueness constraint is
// enforced by the storage layer, not by callers.
type QuizRepository interface {
	// FindByURL returns (nil, nil) when no record exists for the URL.
	FindByURL(ctx context.Context, url string) (*QuizRecord, error)
	// Create assigns the record's ID and creation time and persists it.
	// Fails with DUPLICATE_URL when a record for the URL already exists.
	Create(ctx context.Context, record *QuizRecord) (*QuizRecord, error)
	// List returns records ordered by descending creation order.
	List(ctx context.Context, offset, limit int) ([]*QuizRecord, error)
}

// Cache defines the caching operations the service layer relies on.
type Cache interface {
	// Get retrieves a value; returns ErrCacheMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Set stores a value with an expiration. Zero expiration means no TTL.
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	// Delete removes a key.
	Delete(ctx context.Context, key string) error
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}
