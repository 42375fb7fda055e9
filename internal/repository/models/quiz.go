package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StringSlice stores a []string as a JSON array in a text column.
type StringSlice []string

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	jsonData, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	var bytesToParse []byte
	switch v := value.(type) {
	case []byte:
		bytesToParse = v
	case string:
		bytesToParse = []byte(v)
	default:
		return errors.New("StringSlice Scan: unsupported type " + fmt.Sprintf("%T", value))
	}

	if len(bytesToParse) == 0 || string(bytesToParse) == "null" {
		*s = StringSlice{}
		return nil
	}
	return json.Unmarshal(bytesToParse, s)
}

// JSONText stores an arbitrary JSON document verbatim in a text column.
type JSONText string

// Value implements the driver.Valuer interface
func (j JSONText) Value() (driver.Value, error) {
	if j == "" {
		return "{}", nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONText) Scan(value interface{}) error {
	if value == nil {
		*j = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = JSONText(v)
	case string:
		*j = JSONText(v)
	default:
		return errors.New("JSONText Scan: unsupported type " + fmt.Sprintf("%T", value))
	}
	return nil
}

// Quiz is the QUIZZES row. quiz_data and key_entities hold JSON documents;
// sections and related_topics hold JSON string arrays.
type Quiz struct {
	ID            string      `db:"id"`
	URL           string      `db:"url"`
	Title         string      `db:"title"`
	Summary       string      `db:"summary"`
	QuizData      JSONText    `db:"quiz_data"`
	KeyEntities   JSONText    `db:"key_entities"`
	Sections      StringSlice `db:"sections"`
	RelatedTopics StringSlice `db:"related_topics"`
	RawHTML       string      `db:"raw_html"`
	CreatedAt     time.Time   `db:"created_at"`
}

func (Quiz) TableName() string {
	return "quizzes"
}
