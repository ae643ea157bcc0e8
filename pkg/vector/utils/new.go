// Package vectorutils selects a vector index backend by provider name.
package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector/flat"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector/sqlitevec"
)

const (
	ProviderFlat   = "flat"
	ProviderSQLite = "sqlite"
)

type NewFactoryOpts struct {
	ProviderType string
	Dimensions   uint
	Logger       *slog.Logger
}

func NewFactory(o *NewFactoryOpts) (vector.Factory, error) {
	switch o.ProviderType {
	case ProviderFlat, "":
		return flat.NewFactory(), nil
	case ProviderSQLite:
		if o.Dimensions == 0 {
			return nil, fmt.Errorf("vector store provider %q requires embedding dimensions", o.ProviderType)
		}
		return sqlitevec.NewFactory(sqlitevec.Config{Dimensions: o.Dimensions}, o.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

// ValidProviders returns the recognized provider names.
func ValidProviders() []string {
	return []string{ProviderFlat, ProviderSQLite}
}
