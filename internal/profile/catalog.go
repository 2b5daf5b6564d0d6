// Package profile owns the weighted pools the simulation draws from:
// user types, regions and the flattened endpoint surface.
package profile

import (
	"fmt"
	"math/rand"
	"strings"

	"trafficsim/internal/config"
	"trafficsim/internal/weighted"
)

// Endpoint is one addressable (path, method) pair of the simulation,
// flattened from the service config. Immutable once the catalog is built.
type Endpoint struct {
	Service          string
	BaseURL          string
	Path             string
	Method           string
	Weight           float64
	UserTypes        []string // empty = eligible for all
	PayloadGenerator string
	PathGenerator    string
}

// Key identifies the endpoint in histograms and reports.
func (e Endpoint) Key() string {
	return e.Method + " " + e.Path
}

func (e Endpoint) eligibleFor(userType string) bool {
	if len(e.UserTypes) == 0 {
		return true
	}
	for _, ut := range e.UserTypes {
		if ut == userType {
			return true
		}
	}
	return false
}

// Catalog holds the three weighted pools, built once at startup.
// Endpoint selection is precomputed per user type; a user type whose
// filter matches nothing falls back to a uniform draw over the entire
// endpoint set, so a misconfigured profile degrades instead of starving
// its workers.
type Catalog struct {
	userTypes *weighted.Selector[config.UserType]
	regions   *weighted.Selector[config.Region]
	endpoints []Endpoint

	byUserType map[string]*weighted.Selector[Endpoint]
	uniform    *weighted.Selector[Endpoint]
}

// NewCatalog flattens the service map into endpoint descriptors and
// builds the selectors. The config must already be validated; weight
// errors here indicate a bug in validation, not user input.
func NewCatalog(cfg *config.Config) (*Catalog, error) {
	c := &Catalog{byUserType: make(map[string]*weighted.Selector[Endpoint])}

	utItems := make([]weighted.Item[config.UserType], len(cfg.UserTypes))
	for i, ut := range cfg.UserTypes {
		utItems[i] = weighted.Item[config.UserType]{Value: ut, Weight: ut.Weight}
	}
	var err error
	if c.userTypes, err = weighted.New(utItems); err != nil {
		return nil, fmt.Errorf("build user type pool: %w", err)
	}

	regionItems := make([]weighted.Item[config.Region], len(cfg.Regions))
	for i, r := range cfg.Regions {
		regionItems[i] = weighted.Item[config.Region]{Value: r, Weight: r.Weight}
	}
	if c.regions, err = weighted.New(regionItems); err != nil {
		return nil, fmt.Errorf("build region pool: %w", err)
	}

	for svcName, svc := range cfg.Services {
		for _, ep := range svc.Endpoints {
			for _, method := range ep.Methods {
				c.endpoints = append(c.endpoints, Endpoint{
					Service:          svcName,
					BaseURL:          strings.TrimRight(svc.BaseURL, "/"),
					Path:             ep.Path,
					Method:           strings.ToUpper(method),
					Weight:           ep.Weight,
					UserTypes:        ep.UserTypes,
					PayloadGenerator: ep.PayloadGenerator,
					PathGenerator:    ep.PathGenerator,
				})
			}
		}
	}

	uniformItems := make([]weighted.Item[Endpoint], len(c.endpoints))
	for i, ep := range c.endpoints {
		uniformItems[i] = weighted.Item[Endpoint]{Value: ep, Weight: 1}
	}
	if c.uniform, err = weighted.New(uniformItems); err != nil {
		return nil, fmt.Errorf("build endpoint pool: %w", err)
	}

	for _, ut := range cfg.UserTypes {
		var items []weighted.Item[Endpoint]
		for _, ep := range c.endpoints {
			if ep.eligibleFor(ut.Name) {
				items = append(items, weighted.Item[Endpoint]{Value: ep, Weight: ep.Weight})
			}
		}
		if len(items) == 0 {
			continue // SelectEndpoint falls back to the uniform pool
		}
		sel, err := weighted.New(items)
		if err != nil {
			return nil, fmt.Errorf("build endpoint pool for user type %s: %w", ut.Name, err)
		}
		c.byUserType[ut.Name] = sel
	}

	return c, nil
}

// SelectUserType draws a user type profile for a new session.
func (c *Catalog) SelectUserType(rng *rand.Rand) config.UserType {
	return c.userTypes.Pick(rng)
}

// SelectRegion draws a geographic region for a new session.
func (c *Catalog) SelectRegion(rng *rand.Rand) config.Region {
	return c.regions.Pick(rng)
}

// SelectEndpoint draws an endpoint eligible for the given user type.
// Unknown user types and empty filter results use the uniform fallback.
func (c *Catalog) SelectEndpoint(userType string, rng *rand.Rand) Endpoint {
	if sel, ok := c.byUserType[userType]; ok {
		return sel.Pick(rng)
	}
	return c.uniform.Pick(rng)
}

// Endpoints returns the flattened endpoint surface.
func (c *Catalog) Endpoints() []Endpoint {
	return c.endpoints
}
