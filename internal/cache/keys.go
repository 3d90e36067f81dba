package cache

import (
	"strconv"
	"strings"
)

const (
	GlobalKeyPrefix = "lms"
)

// GenerateCacheKey generates a cache key for a given service, object type, and identifier.
// If paramsKey are provided, they are joined by "_" and appended to the cache key.
func GenerateCacheKey(serviceName, objectType, identifier string, paramsKey ...string) string {
	baseKey := strings.Join([]string{GlobalKeyPrefix, serviceName, objectType, identifier}, ":")
	if len(paramsKey) > 0 {
		return strings.Join([]string{baseKey, strings.Join(paramsKey, "_")}, ":")
	}
	return baseKey
}

// CatalogKey is the cache key of a catalog object.
func CatalogKey(objectType string, id int64) string {
	return GenerateCacheKey("catalog", objectType, strconv.FormatInt(id, 10))
}

// LockKey is the key of a distributed lock.
func LockKey(name string) string {
	return GenerateCacheKey("assessment", "lock", name)
}
