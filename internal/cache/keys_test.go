package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCacheKey(t *testing.T) {
	tests := []struct {
		name        string
		serviceName string
		objectType  string
		identifier  string
		paramsKey   []string
		expectedKey string
	}{
		{
			name:        "without paramsKey",
			serviceName: "catalog",
			objectType:  "quiz",
			identifier:  "5",
			expectedKey: "lms:catalog:quiz:5",
		},
		{
			name:        "with empty paramsKey",
			serviceName: "catalog",
			objectType:  "quiz",
			identifier:  "5",
			paramsKey:   []string{},
			expectedKey: "lms:catalog:quiz:5",
		},
		{
			name:        "with multiple paramsKey",
			serviceName: "catalog",
			objectType:  "lessons",
			identifier:  "10",
			paramsKey:   []string{"v2", "ordered"},
			expectedKey: "lms:catalog:lessons:10:v2_ordered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedKey, GenerateCacheKey(tt.serviceName, tt.objectType, tt.identifier, tt.paramsKey...))
		})
	}
}

func TestCatalogAndLockKeys(t *testing.T) {
	assert.Equal(t, "lms:catalog:course:10", CatalogKey("course", 10))
	assert.Equal(t, "lms:assessment:lock:attempt:7:5:0", LockKey("attempt:7:5:0"))
}
