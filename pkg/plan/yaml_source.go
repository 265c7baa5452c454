package plan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlSource loads plans from a YAML document. Used for operator-managed
// catalogs where limits are tuned without a redeploy:
//
//	plans:
//	  - id: starter
//	    name: Starter
//	    price_id: price_abc
//	    posts: 30
//	    customisations_per_artifact: 2
//	  - id: agency
//	    name: Agency
//	    price_id: price_def
//	    posts: unlimited
//	    customisations_per_artifact: unlimited
type yamlSource struct {
	path string
}

// NewYAMLSource returns a Source that reads the plan catalog from a YAML
// file at load time.
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(_ context.Context) ([]Plan, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	defer f.Close()
	return ParseYAML(f)
}

type yamlCatalog struct {
	Plans []yamlPlan `yaml:"plans"`
}

type yamlPlan struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	PriceID        string    `yaml:"price_id"`
	Posts          yamlLimit `yaml:"posts"`
	Customisations yamlLimit `yaml:"customisations_per_artifact"`
}

// yamlLimit accepts either an integer or the literal string "unlimited".
type yamlLimit struct {
	limit Limit
}

func (l *yamlLimit) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw == "unlimited" {
		l.limit = Unlimited()
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("limit must be an integer or \"unlimited\": %w", err)
	}
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeLimit, n)
	}
	l.limit = Capped(n)
	return nil
}

// ParseYAML decodes a plan catalog document from r.
func ParseYAML(r io.Reader) ([]Plan, error) {
	var doc yamlCatalog
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	plans := make([]Plan, 0, len(doc.Plans))
	for _, yp := range doc.Plans {
		id := ID(yp.ID)
		if !id.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, yp.ID)
		}
		name := yp.Name
		if name == "" {
			name = id.DisplayName()
		}
		plans = append(plans, Plan{
			ID:      id,
			Name:    name,
			PriceID: yp.PriceID,
			Entitlements: Entitlements{
				Posts:                     yp.Posts.limit,
				CustomisationsPerArtifact: yp.Customisations.limit,
			},
		})
	}
	return plans, nil
}
