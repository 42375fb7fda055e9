package quizgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"intelliquiz/internal/config"
	"intelliquiz/internal/domain"
	"intelliquiz/internal/logger"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

const promptTemplate = `Based on the following text about "%s", generate a comprehensive JSON object for a quiz.
The JSON object must have the following keys: "summary", "key_entities", "quiz", and "related_topics".

- "summary": A concise 2-3 sentence summary of the text.
- "key_entities": A dictionary with "people", "organizations", and "locations" as keys, each with a list of relevant names.
- "quiz": A list of exactly %d quiz questions. Each question object must have: "question", "options" (a list of 4 unique strings), "answer" (the correct option), "explanation" (why the answer is correct), and "difficulty" ('easy', 'medium', or 'hard').
- "related_topics": A list of 3-5 related Wikipedia topics.

TEXT CONTENT:
%s

IMPORTANT: Provide ONLY the raw JSON object, without any surrounding text, comments, or markdown formatting like ` + "```json" + `.`

// LLMSynthesizer implements domain.QuizSynthesizer on top of a langchaingo
// model. The backend is nondeterministic; the synthesizer's job is to turn
// whatever it returns into a structurally valid quiz or a typed error.
type LLMSynthesizer struct {
	llm           llms.Model
	temperature   float64
	timeout       time.Duration
	questionCount int
}

var _ domain.QuizSynthesizer = (*LLMSynthesizer)(nil)

// NewLLMSynthesizer creates a synthesizer using the given model and LLM
// configuration.
func NewLLMSynthesizer(llm llms.Model, cfg config.LLMConfig) *LLMSynthesizer {
	return &LLMSynthesizer{
		llm:           llm,
		temperature:   cfg.Temperature,
		timeout:       cfg.Timeout,
		questionCount: cfg.QuestionCount,
	}
}

// Synthesize implements domain.QuizSynthesizer.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, title, bodyText string) (*domain.SynthesizedQuiz, error) {
	l := logger.Get()

	prompt := fmt.Sprintf(promptTemplate, title, s.questionCount, bodyText)

	raw, err := s.callLLM(ctx, prompt)
	if err != nil {
		l.Error("LLM call failed", zap.Error(err), zap.String("title", title))
		return nil, domain.NewGenerationError(err)
	}

	l.Debug("Raw LLM response received", zap.Int("length", len(raw)))

	quiz, err := s.Parse(raw)
	if err != nil {
		l.Error("Failed to parse LLM response", zap.Error(err), zap.String("title", title))
		return nil, err
	}

	l.Info("Quiz synthesized",
		zap.String("title", title),
		zap.Int("quiz_items", len(quiz.QuizItems)),
		zap.Int("related_topics", len(quiz.RelatedTopics)),
	)
	return quiz, nil
}

func (s *LLMSynthesizer) callLLM(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt, llms.WithTemperature(s.temperature))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("LLM request timed out after %s: %w", s.timeout, err)
		}
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	return response, nil
}

// rawSynthesis mirrors the JSON shape the prompt demands. Pointer fields
// distinguish a missing key from an empty value.
type rawSynthesis struct {
	Summary       *string        `json:"summary"`
	KeyEntities   *rawEntities   `json:"key_entities"`
	Quiz          *[]rawQuizItem `json:"quiz"`
	RelatedTopics *[]string      `json:"related_topics"`
}

type rawEntities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
}

type rawQuizItem struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
	Difficulty  string   `json:"difficulty"`
}

// Parse validates raw backend output into a SynthesizedQuiz. Missing
// required keys and non-conforming quiz items are rejected rather than
// defaulted. Exposed for orchestrator-level tests against canned responses.
func (s *LLMSynthesizer) Parse(raw string) (*domain.SynthesizedQuiz, error) {
	cleaned := StripCodeFences(raw)

	// Models occasionally wrap the object in prose despite instructions;
	// keep only the outermost JSON object.
	jsonStart := strings.Index(cleaned, "{")
	jsonEnd := strings.LastIndex(cleaned, "}")
	if jsonStart == -1 || jsonEnd <= jsonStart {
		return nil, domain.NewMalformedOutputError("no JSON object found in LLM response",
			fmt.Errorf("raw response: %s", raw))
	}
	cleaned = cleaned[jsonStart : jsonEnd+1]

	var parsed rawSynthesis
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, domain.NewMalformedOutputError("LLM response is not valid JSON",
			fmt.Errorf("%w; raw response: %s", err, raw))
	}

	if parsed.Summary == nil || strings.TrimSpace(*parsed.Summary) == "" {
		return nil, domain.NewMalformedOutputError("LLM response is missing required key: summary",
			fmt.Errorf("raw response: %s", raw))
	}
	if parsed.KeyEntities == nil {
		return nil, domain.NewMalformedOutputError("LLM response is missing required key: key_entities",
			fmt.Errorf("raw response: %s", raw))
	}
	if parsed.Quiz == nil {
		return nil, domain.NewMalformedOutputError("LLM response is missing required key: quiz",
			fmt.Errorf("raw response: %s", raw))
	}
	if parsed.RelatedTopics == nil {
		return nil, domain.NewMalformedOutputError("LLM response is missing required key: related_topics",
			fmt.Errorf("raw response: %s", raw))
	}

	items := make([]domain.QuizQuestion, 0, len(*parsed.Quiz))
	for _, item := range *parsed.Quiz {
		q := domain.QuizQuestion{
			Question:    strings.TrimSpace(item.Question),
			Options:     item.Options,
			Answer:      item.Answer,
			Explanation: item.Explanation,
			Difficulty:  strings.ToLower(strings.TrimSpace(item.Difficulty)),
		}
		if err := q.Validate(); err != nil {
			return nil, domain.NewMalformedOutputError("LLM produced a non-conforming quiz item",
				fmt.Errorf("%w; raw response: %s", err, raw))
		}
		items = append(items, q)
	}

	if len(items) != s.questionCount {
		return nil, domain.NewMalformedOutputError(
			fmt.Sprintf("LLM produced %d quiz items, want %d", len(items), s.questionCount),
			fmt.Errorf("raw response: %s", raw))
	}

	return &domain.SynthesizedQuiz{
		Summary: strings.TrimSpace(*parsed.Summary),
		KeyEntities: domain.KeyEntities{
			People:        emptyIfNil(parsed.KeyEntities.People),
			Organizations: emptyIfNil(parsed.KeyEntities.Organizations),
			Locations:     emptyIfNil(parsed.KeyEntities.Locations),
		},
		QuizItems: items,
		// The 3-5 band is a prompt hint; counts outside it are accepted.
		RelatedTopics: emptyIfNil(*parsed.RelatedTopics),
	}, nil
}

// StripCodeFences removes leading/trailing markdown code fences that models
// add despite the raw-JSON instruction.
func StripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
