package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/domain"
)

func TestDefaultRoutingConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultRoutingConfig().Validate())
}

func TestHierarchyFor(t *testing.T) {
	cfg := DefaultRoutingConfig()

	assert.Equal(t, "senior.integrity.officer@dswd.gov.ph", cfg.HierarchyFor(domain.CategoryCorruption)[1])
	assert.Equal(t, cfg.DefaultHierarchy, cfg.HierarchyFor(domain.CategoryOther))
}

func TestParseRoutingOverlaysDefaults(t *testing.T) {
	data := []byte(`
hierarchies:
  DATA_PRIVACY:
    - privacy.officer@dswd.gov.ph
    - legal.director@dswd.gov.ph
default_expertise: 0.4
`)
	cfg, err := ParseRouting(data)
	require.NoError(t, err)

	want := []string{"privacy.officer@dswd.gov.ph", "legal.director@dswd.gov.ph"}
	if diff := cmp.Diff(want, cfg.HierarchyFor(domain.CategoryDataPrivacy)); diff != "" {
		t.Fatalf("hierarchy mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0.4, cfg.DefaultExpertise)
	assert.Equal(t, 0.85, cfg.DefaultPerformance)
	assert.Len(t, cfg.HierarchyFor(domain.CategoryCorruption), 4)
}

func TestParseRoutingRejectsInvalidTables(t *testing.T) {
	tests := map[string]string{
		"unknown category": "hierarchies:\n  PARKING:\n    - a\n",
		"bad expertise":    "staff:\n  - id: a\n    expertise:\n      CORRUPTION: 1.5\n",
		"bad pattern":      "priority_keywords:\n  - pattern: \"(\"\n    priority: HIGH\n",
		"bad priority":     "priority_keywords:\n  - pattern: x\n    priority: SEVERE\n",
		"not yaml":         "hierarchies: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRouting([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadRouting(t *testing.T) {
	cfg, err := LoadRouting("")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Staff)

	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_performance: 0.7\n"), 0o600))
	cfg, err = LoadRouting(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.DefaultPerformance)

	_, err = LoadRouting(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
