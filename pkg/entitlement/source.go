package entitlement

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/fitmeter/pkg/subscription"
)

// Source defines how plans are loaded into the resolver.
type Source interface {
	Load(ctx context.Context) (map[subscription.Tier]Plan, error)
}

// inMemSource implements the Source interface using an in-memory plan map.
type inMemSource struct {
	mu    sync.RWMutex
	plans map[subscription.Tier]Plan
}

// NewInMemSource returns an in-memory Source with a deep copy of the given plans.
func NewInMemSource(plans map[subscription.Tier]Plan) Source {
	return &inMemSource{plans: clonePlans(plans)}
}

// Load returns a copy of all available plans from memory.
func (s *inMemSource) Load(ctx context.Context) (map[subscription.Tier]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePlans(s.plans), nil
}

func clonePlans(plans map[subscription.Tier]Plan) map[subscription.Tier]Plan {
	out := make(map[subscription.Tier]Plan, len(plans))
	for tier, plan := range plans {
		p := plan.clone()
		p.ID = tier
		out[tier] = p
	}
	return out
}

// yamlSource reads plans from a YAML file on every Load.
type yamlSource struct {
	path string
}

// NewYAMLSource returns a Source backed by a quota file of the form:
//
//	plans:
//	  free:
//	    name: Free
//	    limits:
//	      workouts: 45
//	      ai_plans: 0
//	  pro:
//	    name: Pro
//	    limits:
//	      workouts: 90
//	      ai_plans: 3
//	    features: [ai_coach]
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(ctx context.Context) (map[subscription.Tier]Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read plans file %s: %w", s.path, err)
	}
	return ParsePlans(data)
}

// ParsePlans decodes a YAML quota document.
func ParsePlans(data []byte) (map[subscription.Tier]Plan, error) {
	var doc struct {
		Plans map[subscription.Tier]Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidPlanConfiguration, err)
	}
	if len(doc.Plans) == 0 {
		return nil, errors.Join(ErrInvalidPlanConfiguration, errors.New("no plans defined"))
	}
	return clonePlans(doc.Plans), nil
}
