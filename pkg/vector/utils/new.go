// Package vectorutils builds the configured vector index.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/docchat/pkg/vector"
	"github.com/papercomputeco/docchat/pkg/vector/inmemory"
	"github.com/papercomputeco/docchat/pkg/vector/pgvector"
	"github.com/papercomputeco/docchat/pkg/vector/qdrant"
	"github.com/papercomputeco/docchat/pkg/vector/sqlitevec"
)

type NewIndexOpts struct {
	// ProviderType is one of "inmemory", "sqlite", "pgvector", "qdrant".
	ProviderType string

	// Target is the sqlite path, postgres DSN, or qdrant host:port.
	Target string

	// Collection names the pgvector table or qdrant collection.
	Collection string

	Dimensions uint
	Logger     *slog.Logger
}

func NewIndex(ctx context.Context, o *NewIndexOpts) (vector.Index, error) {
	switch o.ProviderType {
	case "inmemory":
		return inmemory.NewIndex(o.Dimensions), nil
	case "sqlite":
		return sqlitevec.NewIndex(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "pgvector":
		return pgvector.NewIndex(ctx, pgvector.Config{
			ConnString: o.Target,
			Table:      o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewIndex(ctx, qdrant.Config{
			Target:     o.Target,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
