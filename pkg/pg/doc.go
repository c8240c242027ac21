// Package pg bootstraps the PostgreSQL pool used by the usage counter,
// subscription and milestone stores.
//
//	pool, err := pg.Connect(ctx, cfg)     // pgxpool with retry and ping
//	err = pg.Migrate(ctx, pool, migrations.FS, cfg, log) // goose, embedded SQL files
//	probe := pg.Healthcheck(pool)         // for /health/ready
//
// Stores accept narrow query interfaces rather than *pgxpool.Pool, so a pgx.Tx
// works as well.
package pg
