package cache

import "strings"

const (
	GlobalKeyPrefix = "intelliquiz"
)

// GenerateCacheKey generates a cache key for a given service, object type,
// and identifier. Optional params are joined by "_" and appended.
func GenerateCacheKey(serviceName, objectType, identifier string, paramsKey ...string) string {
	baseKey := strings.Join([]string{GlobalKeyPrefix, serviceName, objectType, identifier}, ":")
	if len(paramsKey) > 0 {
		return strings.Join([]string{baseKey, strings.Join(paramsKey, "_")}, ":")
	}
	return baseKey
}

// QuizRecordKey is the cache key for a quiz record, keyed by its canonical URL.
func QuizRecordKey(url string) string {
	return GenerateCacheKey("quiz", "record", url)
}
