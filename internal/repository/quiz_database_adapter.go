package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"intelliquiz/internal/domain"
	"intelliquiz/internal/repository/models"
	"intelliquiz/internal/util"

	"github.com/jmoiron/sqlx"
)

const quizColumns = `id "id",
		url "url",
		title "title",
		summary "summary",
		quiz_data "quiz_data",
		key_entities "key_entities",
		sections "sections",
		related_topics "related_topics",
		raw_html "raw_html",
		created_at "created_at"`

// QuizDatabaseAdapter implements domain.QuizRepository using sqlx.DB
type QuizDatabaseAdapter struct {
	db *sqlx.DB
}

// NewQuizDatabaseAdapter creates a new instance of QuizDatabaseAdapter
func NewQuizDatabaseAdapter(db *sqlx.DB) domain.QuizRepository {
	return &QuizDatabaseAdapter{db: db}
}

// FindByURL implements domain.QuizRepository. Returns (nil, nil) when no
// record matches.
func (a *QuizDatabaseAdapter) FindByURL(ctx context.Context, url string) (*domain.QuizRecord, error) {
	var modelQuiz models.Quiz
	query := `SELECT ` + quizColumns + `
	FROM quizzes
	WHERE url = :1`

	err := a.db.GetContext(ctx, &modelQuiz, query, url)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find quiz by URL %s: %w", url, err)
	}
	return toDomainQuizRecord(&modelQuiz)
}

// Create implements domain.QuizRepository. The QUIZZES.url unique constraint
// is the source of truth for uniqueness; a violation surfaces as
// DUPLICATE_URL for the caller to compensate.
func (a *QuizDatabaseAdapter) Create(ctx context.Context, record *domain.QuizRecord) (*domain.QuizRecord, error) {
	modelQuiz, err := toModelQuiz(record)
	if err != nil {
		return nil, err
	}
	modelQuiz.ID = util.NewULID()
	modelQuiz.CreatedAt = time.Now()

	query := `INSERT INTO quizzes (
		id, url, title, summary, quiz_data, key_entities,
		sections, related_topics, raw_html, created_at
	) VALUES (
		:1, :2, :3, :4, :5, :6, :7, :8, :9, :10
	)`

	_, err = a.db.ExecContext(ctx, query,
		modelQuiz.ID,
		modelQuiz.URL,
		modelQuiz.Title,
		modelQuiz.Summary,
		modelQuiz.QuizData,
		modelQuiz.KeyEntities,
		modelQuiz.Sections,
		modelQuiz.RelatedTopics,
		modelQuiz.RawHTML,
		modelQuiz.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewDuplicateURLError(record.URL)
		}
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	created := *record
	created.ID = modelQuiz.ID
	created.CreatedAt = modelQuiz.CreatedAt
	return &created, nil
}

// List implements domain.QuizRepository, most recent first.
func (a *QuizDatabaseAdapter) List(ctx context.Context, offset, limit int) ([]*domain.QuizRecord, error) {
	var modelQuizzes []models.Quiz
	query := `SELECT ` + quizColumns + `
	FROM quizzes
	ORDER BY created_at DESC, id DESC
	OFFSET :1 ROWS FETCH NEXT :2 ROWS ONLY`

	err := a.db.SelectContext(ctx, &modelQuizzes, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	records := make([]*domain.QuizRecord, 0, len(modelQuizzes))
	for i := range modelQuizzes {
		record, err := toDomainQuizRecord(&modelQuizzes[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// isUniqueViolation reports whether err is an Oracle unique constraint
// violation (ORA-00001).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ORA-00001")
}

func toModelQuiz(record *domain.QuizRecord) (*models.Quiz, error) {
	quizData, err := json.Marshal(record.QuizItems)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quiz items: %w", err)
	}
	keyEntities, err := json.Marshal(record.KeyEntities)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key entities: %w", err)
	}

	return &models.Quiz{
		ID:            record.ID,
		URL:           record.URL,
		Title:         record.Title,
		Summary:       record.Summary,
		QuizData:      models.JSONText(quizData),
		KeyEntities:   models.JSONText(keyEntities),
		Sections:      models.StringSlice(record.SectionHeadings),
		RelatedTopics: models.StringSlice(record.RelatedTopics),
		RawHTML:       record.RawMarkup,
		CreatedAt:     record.CreatedAt,
	}, nil
}

func toDomainQuizRecord(modelQuiz *models.Quiz) (*domain.QuizRecord, error) {
	var quizItems []domain.QuizQuestion
	if modelQuiz.QuizData != "" {
		if err := json.Unmarshal([]byte(modelQuiz.QuizData), &quizItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quiz items for %s: %w", modelQuiz.ID, err)
		}
	}

	var keyEntities domain.KeyEntities
	if modelQuiz.KeyEntities != "" {
		if err := json.Unmarshal([]byte(modelQuiz.KeyEntities), &keyEntities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key entities for %s: %w", modelQuiz.ID, err)
		}
	}

	return &domain.QuizRecord{
		ID:              modelQuiz.ID,
		URL:             modelQuiz.URL,
		Title:           modelQuiz.Title,
		Summary:         modelQuiz.Summary,
		KeyEntities:     keyEntities,
		SectionHeadings: modelQuiz.Sections,
		QuizItems:       quizItems,
		RelatedTopics:   modelQuiz.RelatedTopics,
		RawMarkup:       modelQuiz.RawHTML,
		CreatedAt:       modelQuiz.CreatedAt,
	}, nil
}
