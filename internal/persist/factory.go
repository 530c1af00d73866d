package persist

// Driver identifies a concrete snapshot backend implementation. Backend
// selection lives in the driver subpackage so this package stays free of
// database and cloud SDK imports.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverFS       Driver = "fs"       // single file with atomic replace
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
	DriverS3       Driver = "s3"       // S3-compatible object store
)
