package dto

import (
	"time"

	"intelliquiz/internal/domain"
)

// GenerateQuizRequest is the body of POST /api/generate-quiz
// @Description Request body for quiz generation
type GenerateQuizRequest struct {
	URL string `json:"url"`
}

// QuizQuestionResponse represents one question in the API response
type QuizQuestionResponse struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
	Difficulty  string   `json:"difficulty"`
}

// KeyEntitiesResponse groups the extracted named entities
type KeyEntitiesResponse struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
}

// QuizRecordResponse represents a full quiz record in the API response
// @Description Generated quiz with all metadata
type QuizRecordResponse struct {
	ID              string                 `json:"id"`
	URL             string                 `json:"url"`
	Title           string                 `json:"title"`
	Summary         string                 `json:"summary"`
	KeyEntities     KeyEntitiesResponse    `json:"key_entities"`
	SectionHeadings []string               `json:"sections"`
	QuizItems       []QuizQuestionResponse `json:"quiz"`
	RelatedTopics   []string               `json:"related_topics"`
	RawMarkup       string                 `json:"raw_html,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// QuizListItemResponse is the lighter listing shape (history view)
type QuizListItemResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// QuizListResponse wraps a page of quiz records
type QuizListResponse struct {
	Quizzes []QuizListItemResponse `json:"quizzes"`
}

// ValidateURLResponse is the response of GET /api/validate-url
type ValidateURLResponse struct {
	Title string `json:"title"`
}

// NewQuizRecordResponse maps a domain record to its full response shape.
func NewQuizRecordResponse(record *domain.QuizRecord) *QuizRecordResponse {
	items := make([]QuizQuestionResponse, 0, len(record.QuizItems))
	for _, q := range record.QuizItems {
		items = append(items, QuizQuestionResponse{
			Question:    q.Question,
			Options:     q.Options,
			Answer:      q.Answer,
			Explanation: q.Explanation,
			Difficulty:  q.Difficulty,
		})
	}

	return &QuizRecordResponse{
		ID:      record.ID,
		URL:     record.URL,
		Title:   record.Title,
		Summary: record.Summary,
		KeyEntities: KeyEntitiesResponse{
			People:        record.KeyEntities.People,
			Organizations: record.KeyEntities.Organizations,
			Locations:     record.KeyEntities.Locations,
		},
		SectionHeadings: record.SectionHeadings,
		QuizItems:       items,
		RelatedTopics:   record.RelatedTopics,
		RawMarkup:       record.RawMarkup,
		CreatedAt:       record.CreatedAt,
	}
}

// NewQuizListResponse maps domain records to the listing shape. The raw
// markup and question payloads stay out of list responses.
func NewQuizListResponse(records []*domain.QuizRecord) *QuizListResponse {
	items := make([]QuizListItemResponse, 0, len(records))
	for _, r := range records {
		items = append(items, QuizListItemResponse{
			ID:        r.ID,
			URL:       r.URL,
			Title:     r.Title,
			Summary:   r.Summary,
			CreatedAt: r.CreatedAt,
		})
	}
	return &QuizListResponse{Quizzes: items}
}
