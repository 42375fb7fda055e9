package handler

import (
	"intelliquiz/internal/domain"
	"intelliquiz/internal/dto"
	"intelliquiz/internal/logger"
	"intelliquiz/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 100
	maxListLimit     = 100
)

// QuizHandler handles quiz-related HTTP requests
type QuizHandler struct {
	service service.QuizService
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(service service.QuizService) *QuizHandler {
	return &QuizHandler{
		service: service,
	}
}

// GenerateQuiz godoc
// @Summary Generate a quiz from a Wikipedia article
// @Description Fetches the article, generates a quiz via the LLM backend and persists it. Returns the existing quiz when one was already generated for the URL.
// @Tags quiz
// @Accept json
// @Produce json
// @Param request body dto.GenerateQuizRequest true "Article URL"
// @Success 201 {object} dto.QuizRecordResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /generate-quiz [post]
func (h *QuizHandler) GenerateQuiz(c *fiber.Ctx) error {
	var req dto.GenerateQuizRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewError(domain.ErrValidation, "Request body must be JSON with a url field", err)
	}
	if req.URL == "" {
		return domain.NewError(domain.ErrValidation, "url is required", nil)
	}

	record, err := h.service.GenerateQuiz(c.UserContext(), req.URL)
	if err != nil {
		return err
	}

	logger.Get().Info("Quiz request served",
		zap.String("url", record.URL),
		zap.String("id", record.ID),
	)

	// 201 for cache hits too, matching first-creation behavior.
	return c.Status(fiber.StatusCreated).JSON(record)
}

// ListQuizzes godoc
// @Summary List generated quizzes
// @Description Returns previously generated quizzes, most recent first
// @Tags quiz
// @Produce json
// @Param skip query int false "Records to skip" default(0)
// @Param limit query int false "Maximum records to return" default(100)
// @Success 200 {object} dto.QuizListResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /quizzes [get]
func (h *QuizHandler) ListQuizzes(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", defaultListLimit)

	if skip < 0 {
		return domain.NewError(domain.ErrValidation, "skip must not be negative", nil)
	}
	if limit <= 0 {
		return domain.NewError(domain.ErrValidation, "limit must be positive", nil)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	quizzes, err := h.service.ListQuizzes(c.UserContext(), skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(quizzes)
}

// ValidateURL godoc
// @Summary Validate an article URL
// @Description Lightweight pre-flight check: fetches the page and returns its title
// @Tags quiz
// @Produce json
// @Param url query string true "Article URL"
// @Success 200 {object} dto.ValidateURLResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /validate-url [get]
func (h *QuizHandler) ValidateURL(c *fiber.Ctx) error {
	url := c.Query("url")
	if url == "" {
		return domain.NewError(domain.ErrValidation, "url query parameter is required", nil)
	}

	result, err := h.service.ValidateURL(c.UserContext(), url)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
