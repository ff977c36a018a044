package content

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/stardrift/server/internal/entitypool"
)

// EntityType describes one spawnable entity category: its spawn weight in
// the per-chunk categorical roll, pool sizing, and the template the
// instantiator should construct from. An empty template ref is legal and
// degrades to a placeholder at spawn time.
type EntityType struct {
	Tag         string  `yaml:"tag" validate:"required,min=1,max=64"`
	SpawnWeight float64 `yaml:"spawn_weight" validate:"gte=0"`
	PoolCap     int     `yaml:"pool_cap" validate:"gte=0"`
	TemplateRef string  `yaml:"template"`
	MinScale    float64 `yaml:"min_scale"`
	MaxScale    float64 `yaml:"max_scale"`
}

// Catalog is the world content definition loaded from YAML. It drives the
// generator's weighted type roll and the per-type pool caps.
type Catalog struct {
	Types []EntityType `yaml:"entity_types" validate:"required,min=1,dive"`

	// Entity count bounds per full-detail chunk.
	MinEntitiesPerChunk int `yaml:"min_entities_per_chunk" validate:"gte=0"`
	MaxEntitiesPerChunk int `yaml:"max_entities_per_chunk" validate:"gte=0"`
}

// Default returns the built-in catalog used when no content file is
// configured: the classic 80/15/5 ordinary/hazard/rare split.
func Default() *Catalog {
	return &Catalog{
		Types: []EntityType{
			{Tag: "ordinary", SpawnWeight: 0.80, PoolCap: 256, TemplateRef: "scenes/asteroid_common", MinScale: 0.5, MaxScale: 1.5},
			{Tag: "hazard", SpawnWeight: 0.15, PoolCap: 64, TemplateRef: "scenes/asteroid_hazard", MinScale: 0.8, MaxScale: 2.0},
			{Tag: "rare", SpawnWeight: 0.05, PoolCap: 16, TemplateRef: "scenes/asteroid_rare", MinScale: 1.0, MaxScale: 1.2},
		},
		MinEntitiesPerChunk: 3,
		MaxEntitiesPerChunk: 12,
	}
}

// Load reads and validates a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	if err := validator.New().Struct(&catalog); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}
	if err := catalog.normalize(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// normalize fills defaults and rejects structurally broken catalogs that
// pass field-level validation.
func (c *Catalog) normalize() error {
	seen := make(map[string]bool, len(c.Types))
	totalWeight := 0.0
	for i := range c.Types {
		entityType := &c.Types[i]
		if seen[entityType.Tag] {
			return fmt.Errorf("duplicate entity type tag %q", entityType.Tag)
		}
		seen[entityType.Tag] = true
		totalWeight += entityType.SpawnWeight

		if entityType.PoolCap == 0 {
			entityType.PoolCap = entitypool.DefaultPoolCap
		}
		if entityType.MaxScale <= 0 {
			entityType.MinScale = 1
			entityType.MaxScale = 1
		}
		if entityType.MinScale > entityType.MaxScale {
			entityType.MinScale, entityType.MaxScale = entityType.MaxScale, entityType.MinScale
		}
	}
	if totalWeight <= 0 {
		return fmt.Errorf("catalog spawn weights sum to zero")
	}
	if c.MaxEntitiesPerChunk == 0 {
		c.MinEntitiesPerChunk = Default().MinEntitiesPerChunk
		c.MaxEntitiesPerChunk = Default().MaxEntitiesPerChunk
	}
	if c.MinEntitiesPerChunk > c.MaxEntitiesPerChunk {
		c.MinEntitiesPerChunk, c.MaxEntitiesPerChunk = c.MaxEntitiesPerChunk, c.MinEntitiesPerChunk
	}
	return nil
}

// Weights returns the spawn weights in type order, for the generator's
// weighted roll.
func (c *Catalog) Weights() []float64 {
	weights := make([]float64, len(c.Types))
	for i, entityType := range c.Types {
		weights[i] = entityType.SpawnWeight
	}
	return weights
}

// Find returns the type definition for a tag.
func (c *Catalog) Find(tag string) (*EntityType, bool) {
	for i := range c.Types {
		if c.Types[i].Tag == tag {
			return &c.Types[i], true
		}
	}
	return nil, false
}

// Template implements entitypool.TemplateProvider. Types with an empty
// template ref report false so the pool substitutes a placeholder.
func (c *Catalog) Template(typeTag string) (*entitypool.Template, bool) {
	entityType, ok := c.Find(typeTag)
	if !ok || entityType.TemplateRef == "" {
		return nil, false
	}
	return &entitypool.Template{TypeTag: typeTag, Ref: entityType.TemplateRef}, true
}

// RegisterPools applies per-type caps to a pooling service.
func (c *Catalog) RegisterPools(pools *entitypool.Service) {
	for _, entityType := range c.Types {
		pools.Register(entityType.Tag, entityType.PoolCap)
	}
}
