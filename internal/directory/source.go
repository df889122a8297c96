package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/hollowverse/releasemanager/internal/db"
	"github.com/hollowverse/releasemanager/internal/environments"
)

// ErrUnknownSource is returned by NewSource for an unsupported source kind.
var ErrUnknownSource = errors.New("unknown directory source")

// Source kinds accepted by NewSource.
const (
	SourceStatic           = "static"
	SourceElasticBeanstalk = "elasticbeanstalk"
	SourcePostgres         = "postgres"
)

// Source looks up the current base URLs of environments on the deployment
// platform. Implementations must be safe for concurrent use.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Fetch returns name → URL for those of names that currently exist and
	// have an endpoint. Unknown or terminated environments are omitted, not
	// reported as errors. An error means the platform could not be queried.
	Fetch(ctx context.Context, names []string) (map[string]string, error)

	// Close releases any resources held by the source.
	Close() error
}

// SourceConfig selects and configures a Source.
type SourceConfig struct {
	Kind string

	// static
	File *environments.File

	// postgres
	DatabaseDSN string

	// elasticbeanstalk
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	ApplicationName    string
	EnvironmentPrefix  string
}

// NewSource creates a source based on cfg.Kind.
// Supported kinds: "static", "elasticbeanstalk", "postgres".
func NewSource(ctx context.Context, cfg SourceConfig) (Source, error) {
	switch cfg.Kind {
	case SourceStatic:
		if cfg.File == nil {
			return nil, errors.New("static source requires an environments file")
		}
		return NewStaticSource(cfg.File.URLs()), nil
	case SourcePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		return NewPostgresSource(pool), nil
	case SourceElasticBeanstalk:
		client, err := NewBeanstalkClient(ctx, cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey)
		if err != nil {
			return nil, err
		}
		return NewBeanstalkSource(client, cfg.ApplicationName, cfg.EnvironmentPrefix), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, cfg.Kind)
	}
}
