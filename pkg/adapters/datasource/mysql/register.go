package mysql

import (
	"github.com/lumina-bi/lumina-engine/pkg/adapters/datasource"
	"github.com/lumina-bi/lumina-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Kind:        string(models.KindMySQL),
			DisplayName: "MySQL",
			Description: "Connect to MySQL 8+ or MariaDB",
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
