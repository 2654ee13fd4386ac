// internal/storage/connect.go
package storage

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"

	"github.com/alvera-ai/interoperability-template-generator/config"
)

// OpenBackend picks the backend named in the configuration. The choice is
// made once per process.
func OpenBackend(cfg *config.Config) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.StoreBackend {
	case config.BackendSQLite, "":
		b, err = NewSQLiteBackend(cfg.DatabasePath())
	case config.BackendPostgres:
		b, err = NewGormBackend(postgres.Open(cfg.DatabaseDSN))
	case config.BackendMySQL:
		b, err = NewGormBackend(mysql.Open(cfg.DatabaseDSN))
	default:
		return nil, fmt.Errorf("%w: unknown store backend '%s'", ErrInvalidInput, cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
