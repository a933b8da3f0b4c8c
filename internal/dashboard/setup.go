package dashboard

import (
	"github.com/example/jdasdash/internal/catalog"
	"github.com/example/jdasdash/internal/config"
	"github.com/example/jdasdash/internal/dataverse"
)

// FromConfig wires the registry, the Dataverse client and the service from
// process configuration. Missing identity settings are not an error here; they
// surface as configuration errors on the first upstream call.
func FromConfig(c *config.Config) (*Service, error) {
	reg, err := catalog.Load(c.RegistryFile)
	if err != nil {
		return nil, err
	}
	if c.DefaultOrderBy != "" {
		reg.Defaults.OrderBy = c.DefaultOrderBy
	}

	client := dataverse.NewClient(c.Dataverse())
	return New(client, reg, Options{
		DefaultTop:   c.DefaultTop,
		CacheTTL:     c.CacheTTL,
		FetchTimeout: c.FetchTimeout,
	}), nil
}
