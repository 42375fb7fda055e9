package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"intelliquiz/internal/cache"
	"intelliquiz/internal/config"
	"intelliquiz/internal/domain"
	"intelliquiz/internal/dto"
	"intelliquiz/internal/logger"
	"intelliquiz/internal/validation"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const retryBackoffBase = 500 * time.Millisecond

// QuizService defines the quiz generation pipeline operations
type QuizService interface {
	// GenerateQuiz runs the full pipeline for a URL: cache lookup,
	// extraction, synthesis, persistence. Generating twice for the same
	// URL returns the same record.
	GenerateQuiz(ctx context.Context, rawURL string) (*dto.QuizRecordResponse, error)
	// ListQuizzes returns previously generated quizzes, most recent first.
	ListQuizzes(ctx context.Context, skip, limit int) (*dto.QuizListResponse, error)
	// ValidateURL performs the lightweight fetch + title check.
	ValidateURL(ctx context.Context, rawURL string) (*dto.ValidateURLResponse, error)
}

// quizService implements QuizService. It is stateless apart from the
// injected collaborators and safe for concurrent use.
type quizService struct {
	repo        domain.QuizRepository
	extractor   domain.ArticleExtractor
	synthesizer domain.QuizSynthesizer
	cache       domain.Cache
	cacheTTL    time.Duration
	maxRetries  int
	group       singleflight.Group
}

// NewQuizService creates a new instance of quizService
func NewQuizService(
	repo domain.QuizRepository,
	extractor domain.ArticleExtractor,
	synthesizer domain.QuizSynthesizer,
	cacheAdapter domain.Cache,
	cfg *config.Config,
) QuizService {
	return &quizService{
		repo:        repo,
		extractor:   extractor,
		synthesizer: synthesizer,
		cache:       cacheAdapter,
		cacheTTL:    cfg.Redis.TTL,
		maxRetries:  cfg.LLM.MaxRetries,
	}
}

// GenerateQuiz implements QuizService
func (s *quizService) GenerateQuiz(ctx context.Context, rawURL string) (*dto.QuizRecordResponse, error) {
	url, err := validation.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	// Concurrent requests for the same URL share one pipeline run in this
	// process. The run is detached from the initiating caller so one
	// client disconnecting cannot fail the flight for the other waiters;
	// each waiter still honors its own cancellation. The store's unique
	// constraint covers the cross-process race.
	ch := s.group.DoChan(url, func() (interface{}, error) {
		return s.generate(context.WithoutCancel(ctx), url)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*dto.QuizRecordResponse), nil
	}
}

func (s *quizService) generate(ctx context.Context, url string) (*dto.QuizRecordResponse, error) {
	l := logger.Get()

	if cached := s.cacheLookup(ctx, url); cached != nil {
		l.Debug("Quiz served from cache", zap.String("url", url))
		return cached, nil
	}

	existing, err := s.repo.FindByURL(ctx, url)
	if err != nil {
		return nil, domain.NewInternalError("Failed to look up quiz by URL", err)
	}
	if existing != nil {
		l.Info("Quiz already exists for URL", zap.String("url", url), zap.String("id", existing.ID))
		response := dto.NewQuizRecordResponse(existing)
		s.cacheStore(ctx, url, response)
		return response, nil
	}

	content, err := s.extractor.Extract(ctx, url)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(content.BodyText) == "" {
		return nil, domain.NewInsufficientContentError(url)
	}

	synthesized, err := s.synthesizeWithRetry(ctx, content.Title, content.BodyText)
	if err != nil {
		return nil, err
	}

	candidate := &domain.QuizRecord{
		URL:             url,
		Title:           content.Title,
		Summary:         synthesized.Summary,
		KeyEntities:     synthesized.KeyEntities,
		SectionHeadings: content.SectionHeadings,
		QuizItems:       synthesized.QuizItems,
		RelatedTopics:   synthesized.RelatedTopics,
		RawMarkup:       content.RawMarkup,
	}

	created, err := s.repo.Create(ctx, candidate)
	if err != nil {
		if domain.IsCode(err, domain.ErrDuplicateURL) {
			// Another request persisted the same URL between our lookup
			// and our insert; the existing record wins.
			l.Info("Lost creation race, returning existing quiz", zap.String("url", url))
			existing, findErr := s.repo.FindByURL(ctx, url)
			if findErr != nil || existing == nil {
				return nil, domain.NewInternalError("Failed to load quiz after duplicate URL conflict", findErr)
			}
			return dto.NewQuizRecordResponse(existing), nil
		}
		return nil, domain.NewInternalError("Failed to persist quiz", err)
	}

	l.Info("Quiz generated",
		zap.String("url", url),
		zap.String("id", created.ID),
		zap.Int("quiz_items", len(created.QuizItems)),
	)

	response := dto.NewQuizRecordResponse(created)
	s.cacheStore(ctx, url, response)
	return response, nil
}

// synthesizeWithRetry retries transient backend failures. Malformed output
// is retried too: the backend is nondeterministic and a fresh sample often
// conforms.
func (s *quizService) synthesizeWithRetry(ctx context.Context, title, bodyText string) (*domain.SynthesizedQuiz, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBackoffBase << (attempt - 1)
			logger.Get().Warn("Retrying quiz synthesis",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, domain.NewGenerationError(ctx.Err())
			case <-time.After(backoff):
			}
		}

		synthesized, err := s.synthesizer.Synthesize(ctx, title, bodyText)
		if err == nil {
			return synthesized, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		if !domain.IsCode(err, domain.ErrGenerationFailed) && !domain.IsCode(err, domain.ErrMalformedOutput) {
			return nil, err
		}
	}
	return nil, lastErr
}

// ListQuizzes implements QuizService
func (s *quizService) ListQuizzes(ctx context.Context, skip, limit int) (*dto.QuizListResponse, error) {
	records, err := s.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, domain.NewInternalError("Failed to list quizzes", err)
	}
	return dto.NewQuizListResponse(records), nil
}

// ValidateURL implements QuizService
func (s *quizService) ValidateURL(ctx context.Context, rawURL string) (*dto.ValidateURLResponse, error) {
	url, err := validation.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	title, err := s.extractor.ValidateOnly(ctx, url)
	if err != nil {
		return nil, err
	}
	return &dto.ValidateURLResponse{Title: title}, nil
}

// cacheLookup returns the cached response for a URL or nil. Cache failures
// are logged and treated as misses; the store stays authoritative.
func (s *quizService) cacheLookup(ctx context.Context, url string) *dto.QuizRecordResponse {
	if s.cache == nil {
		return nil
	}

	cached, err := s.cache.Get(ctx, cache.QuizRecordKey(url))
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Cache lookup failed", zap.String("url", url), zap.Error(err))
		}
		return nil
	}

	var response dto.QuizRecordResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		logger.Get().Warn("Discarding undecodable cache entry", zap.String("url", url), zap.Error(err))
		_ = s.cache.Delete(ctx, cache.QuizRecordKey(url))
		return nil
	}
	return &response
}

func (s *quizService) cacheStore(ctx context.Context, url string, response *dto.QuizRecordResponse) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		logger.Get().Warn("Failed to marshal quiz for cache", zap.String("url", url), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, cache.QuizRecordKey(url), string(payload), s.cacheTTL); err != nil {
		logger.Get().Warn("Failed to populate cache", zap.String("url", url), zap.Error(err))
	}
}
