package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"intelliquiz/internal/config"
	"intelliquiz/internal/domain"
	"intelliquiz/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const exampleURL = "https://en.wikipedia.org/wiki/Example"

func testServiceConfig() *config.Config {
	return &config.Config{
		Redis: config.RedisConfig{TTL: time.Hour},
		LLM:   config.LLMConfig{MaxRetries: 2, QuestionCount: 10},
	}
}

func sampleContent() *domain.ArticleContent {
	return &domain.ArticleContent{
		Title:           "Example",
		BodyText:        "First paragraph.\nSecond paragraph.",
		SectionHeadings: []string{"History", "Usage"},
		RawMarkup:       "<html></html>",
	}
}

func sampleSynthesized(n int) *domain.SynthesizedQuiz {
	items := make([]domain.QuizQuestion, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.QuizQuestion{
			Question:    "Q?",
			Options:     []string{"a", "b", "c", "d"},
			Answer:      "a",
			Explanation: "e",
			Difficulty:  domain.DifficultyEasy,
		})
	}
	return &domain.SynthesizedQuiz{
		Summary:       "A summary.",
		KeyEntities:   domain.KeyEntities{People: []string{"Ada"}, Organizations: []string{}, Locations: []string{}},
		QuizItems:     items,
		RelatedTopics: []string{"Topic A", "Topic B", "Topic C"},
	}
}

func persisted(record *domain.QuizRecord) *domain.QuizRecord {
	created := *record
	created.ID = "01HZXEXAMPLE"
	created.CreatedAt = time.Now()
	return &created
}

func newTestService(repo *MockQuizRepository, extractor *MockArticleExtractor, synthesizer *MockQuizSynthesizer) QuizService {
	return NewQuizService(repo, extractor, synthesizer, nil, testServiceConfig())
}

func TestGenerateQuiz(t *testing.T) {
	ctx := context.Background()

	t.Run("FullPipeline", func(t *testing.T) {
		repo := new(MockQuizRepository)
		extractor := new(MockArticleExtractor)
		synthesizer := new(MockQuizSynthesizer)
		svc := newTestService(repo, extractor, synthesizer)

		repo.On("FindByURL", mock.Anything, exampleURL).Return(nil, nil).Once()
		extractor.On("Extract", mock.Anything, exampleURL).Return(sampleContent(), nil).Once()
		synthesizer.On("Synthesize", mock.Anything, "Example", sampleContent().BodyText).
			Return(sampleSynthesized(10), nil).Once()
		repo.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.QuizRecord) bool {
			return r.URL == exampleURL && r.Title == "Example" && len(r.QuizItems) == 10
		})).Return(persisted(&domain.QuizRecord{
			URL:       exampleURL,
			Title:     "Example",
			QuizItems: sampleSynthesized(10).QuizItems,
		}), nil).Once()

		resp, err := svc.GenerateQuiz(ctx, exampleURL)
		require.NoError(t, err)
		assert.Equal(t, "01HZXEXAMPLE", resp.ID)
		assert.Equal(t, "Example", resp.Title)
		assert.Len(t, resp.QuizItems, 10)

		repo.AssertExpectations(t)
		extractor.AssertExpectations(t)
		synthesizer.AssertExpectations(t)
	})

	t.Run("IdempotentOnExistingRecord", func(t *testing.T) {
		repo := new(MockQuizRepository)
		extractor := new(MockArticleExtractor)
		synthesizer := new(MockQuizSynthesizer)
		svc := newTestService(repo, extractor, synthesizer)

		existing := persisted(&domain.QuizRecord{URL: exampleURL, Title: "Example", QuizItems: sampleSynthesized(10).QuizItems})
		repo.On("FindByURL", mock.Anything, exampleURL).Return(existing, nil).Twice()

		first, err := svc.GenerateQuiz(ctx, exampleURL)
		require.NoError(t, err)
		second, err := svc.GenerateQuiz(ctx, exampleURL)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		// Neither the extractor nor the synthesizer is ever invoked.
		extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
		synthesizer.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("InvalidURL", func(t *testing.T) {
		svc := newTestService(new(MockQuizRepository), new(MockArticleExtractor), new(MockQuizSynthesizer))

		_, err := svc.GenerateQuiz(ctx, "not a url")
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.ErrInvalidURL))
	})

	t.Run("EmptyContentGuard", func(t *testing.T) {
		repo := new(MockQuizRepository)
		extractor := new(MockArticleExtractor)
		synthesizer := new(MockQuizSynthesizer)
		svc := newTestService(repo, extractor, synthesizer)

		empty := sampleContent()
		empty.BodyText = "   \n "
		repo.On("FindByURL", mock.Anything, exampleURL).Return(nil, nil).Once()
		extractor.On("Extract", mock.Anything, exampleURL).Return(empty, nil).Once()

		_, err := svc.GenerateQuiz(ctx, exampleURL)
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.ErrInsufficientContent))
		// The backend is never invoked on empty input.
		synthesizer.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ExtractionFailurePropagates", func(t *testing.T) {
		repo := new(MockQuizRepository)
		extractor := new(MockArticleExtractor)
		svc := newTestService(repo, extractor, new(MockQuizSynthesizer))

		repo.On("FindByURL", mock.Anything, exampleURL).Return(nil, nil).Once()
		extractor.On("Extract", mock.Anything, exampleURL).
			Return(nil, domain.NewFetchError(exampleURL, errors.New("status 404"))).Once()

		_, err := svc.GenerateQuiz(ctx, exampleURL)
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.ErrFetchFailed))
	})

	t.Run("DuplicateRaceFallsBackToExisting", func(t *testing.T) {
		repo := new(MockQuizRepository)
		extractor := new(MockArticleExtractor)
		synthesizer := new(MockQuizSynthesizer)
		svc := newTestService(repo, extractor, synthesizer)

		existing := persisted(&domain.QuizRecord{URL: exampleURL, Title: "Example"})

		repo.On("FindByURL", mock.Anything, exampleURL).Return(nil, nil).Once()
		extractor.On("Extract", mock.Anything, exampleURL).Return(sampleContent(), nil).Once()
		synthesizer.On("Synthesize", mock.Anything, "Example", mock.Anything).
			Return(sampleSynthesized(10), nil).Once()
		repo.On("Create", mock.Anything, mock.Anything).
			Return(nil, domain.NewDuplicateURLError(exampleURL)).Once()
		repo.On("FindByURL", mock.Anything, exampleURL).Return(existing, nil).Once()

		resp, err := svc.GenerateQuiz(ctx, exampleURL)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, resp.ID)
		repo.AssertExpectations(t)
	})
}

func TestGenerateQuizSharedFlight(t *testing.T) {
	t.Run("SurvivesInitiatorCancel", func(t *testing.T) {
		repo := new(MockQuizRepository)
		extractor := new(MockArticleExtractor)
		synthesizer := new(MockQuizSynthesizer)
		svc := newTestService(repo, extractor, synthesizer)

		entered := make(chan struct{})
		release := make(chan struct{})

		repo.On("FindByURL", mock.Anything, exampleURL).Return(nil, nil).Once()
		extractor.On("Extract", mock.Anything, exampleURL).Return(sampleContent(), nil).Once()
		synthesizer.On("Synthesize", mock.Anything, "Example", mock.Anything).
			Run(func(mock.Arguments) {
				close(entered)
				<-release
			}).
			Return(sampleSynthesized(10), nil).Once()
		repo.On("Create", mock.Anything, mock.Anything).
			Return(persisted(&domain.QuizRecord{URL: exampleURL, Title: "Example"}), nil).Once()

		ctx1, cancel1 := context.WithCancel(context.Background())
		defer cancel1()
		firstErr := make(chan error, 1)
		go func() {
			_, err := svc.GenerateQuiz(ctx1, exampleURL)
			firstErr <- err
		}()

		// The first caller holds the flight inside Synthesize; the second
		// joins the same flight with a live context.
		<-entered
		secondResp := make(chan *dto.QuizRecordResponse, 1)
		secondErr := make(chan error, 1)
		go func() {
			resp, err := svc.GenerateQuiz(context.Background(), exampleURL)
			secondResp <- resp
			secondErr <- err
		}()

		// Give the second caller time to join before the cancellation.
		time.Sleep(50 * time.Millisecond)
		cancel1()

		// The cancelled caller returns its own context error without
		// waiting for the flight to finish.
		select {
		case err := <-firstErr:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("cancelled caller did not return promptly")
		}

		close(release)

		require.NoError(t, <-secondErr)
		resp := <-secondResp
		assert.Equal(t, "01HZXEXAMPLE", resp.ID)
		// One shared run served both callers.
		synthesizer.AssertNumberOfCalls(t, "Synthesize", 1)
		repo.AssertExpectations(t)
	})
}

func TestSynthesizeRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("RetriesTransientFailures", func(t *testing.T) {
		repo := new(MockQuizRepository)
		extractor := new(MockArticleExtractor)
		synthesizer := new(MockQuizSynthesizer)
		svc := newTestService(repo, extractor, synthesizer)

		repo.On("FindByURL", mock.Anything, exampleURL).Return(nil, nil).Once()
		extractor.On("Extract", mock.Anything, exampleURL).Return(sampleContent(), nil).Once()
		synthesizer.On("Synthesize", mock.Anything, "Example", mock.Anything).
			Return(nil, domain.NewGenerationError(errors.New("connection refused"))).Once()
		synthesizer.On("Synthesize", mock.Anything, "Example", mock.Anything).
			Return(nil, domain.NewMalformedOutputError("not json", errors.New("raw: hi"))).Once()
		synthesizer.On("Synthesize", mock.Anything, "Example", mock.Anything).
			Return(sampleSynthesized(10), nil).Once()
		repo.On("Create", mock.Anything, mock.Anything).
			Return(persisted(&domain.QuizRecord{URL: exampleURL, Title: "Example"}), nil).Once()

		resp, err := svc.GenerateQuiz(ctx, exampleURL)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.ID)
		synthesizer.AssertNumberOfCalls(t, "Synthesize", 3)
	})

	t.Run("ExhaustedRetriesReturnLastError", func(t *testing.T) {
		repo := new(MockQuizRepository)
		extractor := new(MockArticleExtractor)
		synthesizer := new(MockQuizSynthesizer)
		svc := newTestService(repo, extractor, synthesizer)

		repo.On("FindByURL", mock.Anything, exampleURL).Return(nil, nil).Once()
		extractor.On("Extract", mock.Anything, exampleURL).Return(sampleContent(), nil).Once()
		synthesizer.On("Synthesize", mock.Anything, "Example", mock.Anything).
			Return(nil, domain.NewMalformedOutputError("not json", nil)).Times(3)

		_, err := svc.GenerateQuiz(ctx, exampleURL)
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.ErrMalformedOutput))
		// Initial attempt plus the two configured retries; nothing persisted.
		synthesizer.AssertNumberOfCalls(t, "Synthesize", 3)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestGenerateQuizCache(t *testing.T) {
	ctx := context.Background()

	t.Run("CacheHitSkipsStore", func(t *testing.T) {
		repo := new(MockQuizRepository)
		cacheMock := new(MockCache)
		svc := NewQuizService(repo, new(MockArticleExtractor), new(MockQuizSynthesizer), cacheMock, testServiceConfig())

		cacheMock.On("Get", mock.Anything, mock.Anything).
			Return(`{"id":"01HZXEXAMPLE","url":"`+exampleURL+`","title":"Example"}`, nil).Once()

		resp, err := svc.GenerateQuiz(ctx, exampleURL)
		require.NoError(t, err)
		assert.Equal(t, "01HZXEXAMPLE", resp.ID)
		repo.AssertNotCalled(t, "FindByURL", mock.Anything, mock.Anything)
	})

	t.Run("CacheMissFallsThrough", func(t *testing.T) {
		repo := new(MockQuizRepository)
		cacheMock := new(MockCache)
		svc := NewQuizService(repo, new(MockArticleExtractor), new(MockQuizSynthesizer), cacheMock, testServiceConfig())

		existing := persisted(&domain.QuizRecord{URL: exampleURL, Title: "Example"})
		cacheMock.On("Get", mock.Anything, mock.Anything).Return("", domain.ErrCacheMiss).Once()
		repo.On("FindByURL", mock.Anything, exampleURL).Return(existing, nil).Once()
		cacheMock.On("Set", mock.Anything, mock.Anything, mock.Anything, time.Hour).Return(nil).Once()

		resp, err := svc.GenerateQuiz(ctx, exampleURL)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, resp.ID)
		cacheMock.AssertExpectations(t)
	})

	t.Run("WrappedCacheMissFallsThrough", func(t *testing.T) {
		repo := new(MockQuizRepository)
		cacheMock := new(MockCache)
		svc := NewQuizService(repo, new(MockArticleExtractor), new(MockQuizSynthesizer), cacheMock, testServiceConfig())

		existing := persisted(&domain.QuizRecord{URL: exampleURL, Title: "Example"})
		// The sentinel must be recognized through wrapping too.
		cacheMock.On("Get", mock.Anything, mock.Anything).
			Return("", fmt.Errorf("lookup: %w", domain.ErrCacheMiss)).Once()
		repo.On("FindByURL", mock.Anything, exampleURL).Return(existing, nil).Once()
		cacheMock.On("Set", mock.Anything, mock.Anything, mock.Anything, time.Hour).Return(nil).Once()

		resp, err := svc.GenerateQuiz(ctx, exampleURL)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, resp.ID)
		cacheMock.AssertExpectations(t)
	})

	t.Run("CacheErrorIsNotFatal", func(t *testing.T) {
		repo := new(MockQuizRepository)
		cacheMock := new(MockCache)
		svc := NewQuizService(repo, new(MockArticleExtractor), new(MockQuizSynthesizer), cacheMock, testServiceConfig())

		existing := persisted(&domain.QuizRecord{URL: exampleURL, Title: "Example"})
		cacheMock.On("Get", mock.Anything, mock.Anything).Return("", errors.New("redis down")).Once()
		repo.On("FindByURL", mock.Anything, exampleURL).Return(existing, nil).Once()
		cacheMock.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("redis down")).Once()

		resp, err := svc.GenerateQuiz(ctx, exampleURL)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, resp.ID)
	})
}

func TestListQuizzes(t *testing.T) {
	ctx := context.Background()
	repo := new(MockQuizRepository)
	svc := newTestService(repo, new(MockArticleExtractor), new(MockQuizSynthesizer))

	records := []*domain.QuizRecord{
		persisted(&domain.QuizRecord{URL: "https://en.wikipedia.org/wiki/B", Title: "B"}),
	}
	repo.On("List", mock.Anything, 0, 100).Return(records, nil).Once()

	resp, err := svc.ListQuizzes(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, resp.Quizzes, 1)
	assert.Equal(t, "B", resp.Quizzes[0].Title)
	repo.AssertExpectations(t)
}

func TestValidateURL(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		extractor := new(MockArticleExtractor)
		svc := newTestService(new(MockQuizRepository), extractor, new(MockQuizSynthesizer))

		extractor.On("ValidateOnly", mock.Anything, exampleURL).Return("Example", nil).Once()

		resp, err := svc.ValidateURL(ctx, exampleURL)
		require.NoError(t, err)
		assert.Equal(t, "Example", resp.Title)
	})

	t.Run("InvalidURL", func(t *testing.T) {
		svc := newTestService(new(MockQuizRepository), new(MockArticleExtractor), new(MockQuizSynthesizer))

		_, err := svc.ValidateURL(ctx, "::::")
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.ErrInvalidURL))
	})
}
