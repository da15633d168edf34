package catalog

import "fmt"

// Backup writes a consistent snapshot of the catalog to destPath using
// VACUUM INTO, the same mechanism waddle's storage engine used for its
// own backups.
func (c *Catalog) Backup(destPath string) error {
	_, err := c.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath))
	if err != nil {
		return newErr(ErrUnavailable, "backup catalog", err)
	}
	return nil
}

// RunIntegrityCheck runs SQLite's built-in integrity check and reports
// whether the database passed.
func (c *Catalog) RunIntegrityCheck() (bool, error) {
	var result string
	if err := c.db.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		return false, newErr(ErrUnavailable, "run integrity check", err)
	}
	return result == "ok", nil
}

// Vacuum reclaims free space and defragments the catalog file.
func (c *Catalog) Vacuum() error {
	if _, err := c.db.Exec(`VACUUM`); err != nil {
		return newErr(ErrUnavailable, "vacuum catalog", err)
	}
	return nil
}
