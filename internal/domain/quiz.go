package domain

import (
	"fmt"
	"time"
)

// Difficulty levels the backend is allowed to assign to a question.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// OptionsPerQuestion is the fixed number of answer options per quiz question.
const OptionsPerQuestion = 4

// ArticleContent is the extractor's view of a Wikipedia article. It lives
// only for the duration of one pipeline run.
type ArticleContent struct {
	Title           string
	BodyText        string
	SectionHeadings []string
	RawMarkup       string
}

// QuizQuestion is a single multiple-choice question inside a QuizRecord.
type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
	Difficulty  string   `json:"difficulty"`
}

// Validate checks the structural invariants of a question: exactly four
// unique options, the answer being one of them, and a known difficulty.
func (q *QuizQuestion) Validate() error {
	if q.Question == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("question %q has %d options, want %d", q.Question, len(q.Options), OptionsPerQuestion)
	}
	seen := make(map[string]struct{}, len(q.Options))
	answerFound := false
	for _, opt := range q.Options {
		if _, dup := seen[opt]; dup {
			return fmt.Errorf("question %q has duplicate option %q", q.Question, opt)
		}
		seen[opt] = struct{}{}
		if opt == q.Answer {
			answerFound = true
		}
	}
	if !answerFound {
		return fmt.Errorf("question %q answer %q is not one of its options", q.Question, q.Answer)
	}
	switch q.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("question %q has unknown difficulty %q", q.Question, q.Difficulty)
	}
	return nil
}

// KeyEntities groups the named entities the backend pulled out of the
// article. All three lists are always present, possibly empty.
type KeyEntities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
}

// SynthesizedQuiz is the validated output of the quiz synthesizer, before
// it is merged with the extractor output into a persistent record.
type SynthesizedQuiz struct {
	Summary       string
	KeyEntities   KeyEntities
	QuizItems     []QuizQuestion
	RelatedTopics []string
}

// QuizRecord is the persistent entity: one per unique article URL, created
// once and never mutated afterwards.
type QuizRecord struct {
	ID              string
	URL             string
	Title           string
	Summary         string
	KeyEntities     KeyEntities
	SectionHeadings []string
	QuizItems       []QuizQuestion
	RelatedTopics   []string
	RawMarkup       string
	CreatedAt       time.Time
}
