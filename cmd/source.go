package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zcta-crosswalk/internal/config"
	"github.com/sells-group/zcta-crosswalk/internal/crosswalk"
	"github.com/sells-group/zcta-crosswalk/internal/refdata"
	"github.com/sells-group/zcta-crosswalk/internal/resilience"
)

// openSource builds the reference data source selected by cfg. The returned
// close func is never nil.
func openSource(ctx context.Context, c *config.Config) (refdata.Source, func(), error) {
	noop := func() {}

	switch c.Data.Source {
	case config.SourceEmbedded, "":
		return refdata.Embedded(), noop, nil
	case config.SourceDir:
		return refdata.NewDirSource(c.Data.Dir), noop, nil
	case config.SourceSQLite:
		src, err := refdata.OpenSQLite(c.Data.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return src, func() { _ = src.Close() }, nil
	case config.SourcePostgres:
		src, err := refdata.NewPostgres(ctx, c.Data.DatabaseURL, c.Data.Schema)
		if err != nil {
			return nil, noop, err
		}
		return src, src.Close, nil
	default:
		return nil, noop, eris.Errorf("unknown data source %q", c.Data.Source)
	}
}

// initCrosswalker opens the configured source and wraps it with the
// configured options and the process metrics.
func initCrosswalker(ctx context.Context) (*crosswalk.Crosswalker, func(), error) {
	src, closeFn, err := openSource(ctx, cfg)
	if err != nil {
		return nil, closeFn, eris.Wrap(err, "open reference data")
	}
	zap.L().Debug("reference data source", zap.String("source", src.Name()))

	retry := resilience.DefaultPolicy()
	retry.Attempts = cfg.Data.RetryAttempts
	if cfg.Data.RetryBackoff > 0 {
		retry.Backoff = cfg.Data.RetryBackoff
	}

	opts := []crosswalk.Option{crosswalk.WithMetrics(metrics), crosswalk.WithRetry(retry)}
	if cfg.Crosswalk.FallbackToInput {
		opts = append(opts, crosswalk.WithFallbackToInput())
	}
	return crosswalk.New(src, opts...), closeFn, nil
}

// resolveVintage picks the vintage from --vintage, then --year, then config.
func resolveVintage(cmd *cobra.Command) (crosswalk.Vintage, error) {
	vintage, _ := cmd.Flags().GetInt("vintage")
	year, _ := cmd.Flags().GetInt("year")

	switch {
	case vintage != 0 && year != 0:
		return 0, eris.New("--vintage and --year are mutually exclusive")
	case vintage != 0:
		return refdata.ParseVintage(vintage)
	case year != 0:
		return refdata.NearestVintage(year), nil
	case cfg != nil:
		return refdata.ParseVintage(cfg.Crosswalk.Vintage)
	default:
		return refdata.DefaultVintage, nil
	}
}
