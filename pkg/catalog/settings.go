package catalog

import "database/sql"

// GetSetting returns the persisted value for key, and false if unset.
func (c *Catalog) GetSetting(key string) (string, bool, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, newErr(ErrUnavailable, "read setting", err)
	}
	return value, true, nil
}

// SetSetting persists a key/value pair in the process-wide settings store.
// Keys are drawn from CaptureConfig, RetentionConfig, and OcrConfig.
func (c *Catalog) SetSetting(key, value string) error {
	_, err := c.db.Exec(`
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return classifyWriteErr(err, "set setting")
	}
	return nil
}

// AllSettings returns every persisted key/value pair, used to seed a
// component's Config at startup.
func (c *Catalog) AllSettings() (map[string]string, error) {
	rows, err := c.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, newErr(ErrUnavailable, "list settings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, newErr(ErrUnavailable, "scan setting", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
