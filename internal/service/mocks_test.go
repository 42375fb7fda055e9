package service

import (
	"context"
	"time"

	"intelliquiz/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockQuizRepository ---
type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) FindByURL(ctx context.Context, url string) (*domain.QuizRecord, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuizRecord), args.Error(1)
}

func (m *MockQuizRepository) Create(ctx context.Context, record *domain.QuizRecord) (*domain.QuizRecord, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuizRecord), args.Error(1)
}

func (m *MockQuizRepository) List(ctx context.Context, offset, limit int) ([]*domain.QuizRecord, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QuizRecord), args.Error(1)
}

// --- MockArticleExtractor ---
type MockArticleExtractor struct {
	mock.Mock
}

func (m *MockArticleExtractor) Extract(ctx context.Context, url string) (*domain.ArticleContent, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ArticleContent), args.Error(1)
}

func (m *MockArticleExtractor) ValidateOnly(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// --- MockQuizSynthesizer ---
type MockQuizSynthesizer struct {
	mock.Mock
}

func (m *MockQuizSynthesizer) Synthesize(ctx context.Context, title, bodyText string) (*domain.SynthesizedQuiz, error) {
	args := m.Called(ctx, title, bodyText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SynthesizedQuiz), args.Error(1)
}

// --- MockCache ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
