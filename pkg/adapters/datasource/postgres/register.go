package postgres

import (
	"github.com/lumina-bi/lumina-engine/pkg/adapters/datasource"
	"github.com/lumina-bi/lumina-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Kind:        string(models.KindPostgres),
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+",
		},
		Factory: func(config map[string]any) (datasource.Adapter, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(cfg)
		},
	})
}

var _ datasource.Adapter = (*Adapter)(nil)
