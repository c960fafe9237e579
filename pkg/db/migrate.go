package db

// migrate.go carries forward bucket-layout changes between schemaVersion
// values. There has only ever been one layout so far, so migrate is a
// placeholder switch; add a case per schemaVersion bump, each one rewriting
// exactly what changed and nothing else.

// migrate upgrades the database in place from fromVersion to schemaVersion.
// It runs inside the same transaction openInit already holds, so a failure
// partway through rolls back everything.
func (t *Transaction) migrate(fromVersion uint64) error {
	switch {
	case fromVersion == schemaVersion:
		return nil
	case fromVersion > schemaVersion:
		return errInconsistent("migrate: fromVersion %d is newer than schemaVersion %d", fromVersion, schemaVersion)
	default:
		return errInconsistent("migrate: no migration path from version %d to %d", fromVersion, schemaVersion)
	}
}
