// Package driver selects a snapshot backend from the process environment.
package driver

import (
	"context"
	"fmt"
	"os"

	"assetmirror/internal/persist"
	"assetmirror/internal/persist/pgstore"
	"assetmirror/internal/persist/s3store"
	"assetmirror/internal/persist/sqlitestore"
)

// Open selects a snapshot backend using environment variables.
// Defaults to fs when unset.
//
//	ASSETMIRROR_SNAPSHOT_DRIVER: memory|fs|sqlite|postgres|s3 (default fs)
//	ASSETMIRROR_SNAPSHOT_PATH: fs snapshot path (default ./assetmirror.snapshot.json)
//	ASSETMIRROR_SQLITE_PATH: path to sqlite file when driver=sqlite
//	ASSETMIRROR_POSTGRES_DSN: postgres DSN when driver=postgres
//	ASSETMIRROR_S3_*: bucket/key/region/endpoint when driver=s3
func Open(ctx context.Context) (persist.Backend, error) {
	driver := os.Getenv("ASSETMIRROR_SNAPSHOT_DRIVER")
	if driver == "" {
		driver = string(persist.DriverFS)
	}
	switch persist.Driver(driver) {
	case persist.DriverMemory:
		return persist.NewMemory(), nil
	case persist.DriverFS:
		return persist.NewFilesystem(os.Getenv("ASSETMIRROR_SNAPSHOT_PATH"))
	case persist.DriverSQLite:
		return sqlitestore.New(os.Getenv("ASSETMIRROR_SQLITE_PATH"))
	case persist.DriverPostgres:
		return pgstore.New(ctx, os.Getenv("ASSETMIRROR_POSTGRES_DSN"))
	case persist.DriverS3:
		return s3store.OpenFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown snapshot driver %s", driver)
	}
}
