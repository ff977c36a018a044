package content

import (
	"strings"
	"testing"
)

const sampleCatalogYAML = `
entity_types:
  - tag: ordinary
    spawn_weight: 0.8
    pool_cap: 100
    template: scenes/rock
    min_scale: 0.5
    max_scale: 1.5
  - tag: hazard
    spawn_weight: 0.15
    pool_cap: 20
    template: scenes/mine
  - tag: rare
    spawn_weight: 0.05
    pool_cap: 5
min_entities_per_chunk: 2
max_entities_per_chunk: 10
`

func TestParseSampleCatalog(t *testing.T) {
	catalog, err := Parse([]byte(sampleCatalogYAML))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(catalog.Types) != 3 {
		t.Fatalf("expected 3 types, got %d", len(catalog.Types))
	}

	hazard, ok := catalog.Find("hazard")
	if !ok {
		t.Fatal("hazard type missing")
	}
	// Zero scale bounds default to 1.
	if hazard.MinScale != 1 || hazard.MaxScale != 1 {
		t.Fatalf("hazard scale bounds = (%f, %f), expected (1, 1)", hazard.MinScale, hazard.MaxScale)
	}

	weights := catalog.Weights()
	if len(weights) != 3 || weights[0] != 0.8 {
		t.Fatalf("unexpected weights: %v", weights)
	}
}

func TestParseRejectsDuplicateTags(t *testing.T) {
	yaml := `
entity_types:
  - tag: ordinary
    spawn_weight: 1
  - tag: ordinary
    spawn_weight: 1
`
	if _, err := Parse([]byte(yaml)); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate tag error, got %v", err)
	}
}

func TestParseRejectsZeroTotalWeight(t *testing.T) {
	yaml := `
entity_types:
  - tag: ordinary
    spawn_weight: 0
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected error for zero total weight")
	}
}

func TestParseRejectsEmptyCatalog(t *testing.T) {
	if _, err := Parse([]byte("entity_types: []")); err == nil {
		t.Fatal("expected validation error for empty type list")
	}
}

func TestTemplateProviderContract(t *testing.T) {
	catalog, err := Parse([]byte(sampleCatalogYAML))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	tmpl, ok := catalog.Template("ordinary")
	if !ok || tmpl.Ref != "scenes/rock" {
		t.Fatalf("template for ordinary = %+v (ok=%v)", tmpl, ok)
	}

	// rare has no template ref: provider reports unconfigured.
	if _, ok := catalog.Template("rare"); ok {
		t.Fatal("rare should be unconfigured")
	}
	if _, ok := catalog.Template("nonexistent"); ok {
		t.Fatal("unknown tag should be unconfigured")
	}
}

func TestDefaultCatalogIsValid(t *testing.T) {
	catalog := Default()
	if err := catalog.normalize(); err != nil {
		t.Fatalf("default catalog failed normalization: %v", err)
	}
	if catalog.MinEntitiesPerChunk > catalog.MaxEntitiesPerChunk {
		t.Fatal("default entity bounds inverted")
	}
	total := 0.0
	for _, w := range catalog.Weights() {
		total += w
	}
	if total <= 0.99 || total >= 1.01 {
		t.Fatalf("default weights sum to %f, expected ~1", total)
	}
}
