package catalog

import (
	"context"
	"fmt"
)

// Config selects and configures a store.
type Config struct {
	Driver   string
	DSN      string
	Database string
	Fixture  string
}

// Open builds the configured store. The memory driver loads Fixture when set
// and the bundled demo catalog otherwise.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		if cfg.Fixture != "" {
			return LoadFixture(cfg.Fixture)
		}
		return DemoStore()
	case string(DriverSQLite), string(DriverPostgres):
		s, err := OpenSQL(ctx, Driver(cfg.Driver), cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Fixture != "" {
			if err := s.Seed(ctx, cfg.Fixture); err != nil {
				_ = s.Close(ctx)
				return nil, err
			}
		}
		return s, nil
	case "mongo":
		return OpenMongo(ctx, cfg.DSN, cfg.Database)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
}
