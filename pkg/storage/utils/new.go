// Package storageutils builds the configured document store.
package storageutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/docchat/pkg/storage"
	"github.com/papercomputeco/docchat/pkg/storage/inmemory"
	"github.com/papercomputeco/docchat/pkg/storage/postgres"
	"github.com/papercomputeco/docchat/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	// DriverType is one of "inmemory", "sqlite", "postgres".
	DriverType  string
	SQLitePath  string
	PostgresDSN string
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	switch o.DriverType {
	case "inmemory":
		return inmemory.NewDriver(), nil
	case "sqlite":
		path := o.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		return sqlite.NewDriver(ctx, path)
	case "postgres":
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver requires a connection string")
		}
		return postgres.NewDriver(ctx, o.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", o.DriverType)
	}
}
