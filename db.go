package main

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const metaKeyCatalogRefresh = "catalog_last_refresh"

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS work_types (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		category    TEXT DEFAULT '',
		description TEXT DEFAULT '',
		keywords    TEXT DEFAULT '[]',
		examples    TEXT DEFAULT '[]',
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_work_types_category ON work_types(category);

	CREATE TABLE IF NOT EXISTS agents (
		name        TEXT PRIMARY KEY,
		description TEXT DEFAULT '',
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS catalog_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// UpsertWorkTypes replaces cached catalog entries by id. Keywords and
// examples are stored as JSON arrays so the cache round-trips the
// backend's shape exactly.
func UpsertWorkTypes(db *sql.DB, types []WorkType) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, wt := range types {
		keywords, _ := json.Marshal(wt.Keywords)
		examples, _ := json.Marshal(wt.Examples)
		_, err := tx.Exec(
			`INSERT INTO work_types (id, name, category, description, keywords, examples, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				category = excluded.category,
				description = excluded.description,
				keywords = excluded.keywords,
				examples = excluded.examples,
				updated_at = CURRENT_TIMESTAMP`,
			wt.ID, wt.Name, wt.Category, wt.Description, string(keywords), string(examples),
		)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

func LoadWorkTypes(db *sql.DB) ([]WorkType, error) {
	rows, err := db.Query(`SELECT id, name, category, description, keywords, examples FROM work_types ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []WorkType
	for rows.Next() {
		var wt WorkType
		var keywords, examples string
		if err := rows.Scan(&wt.ID, &wt.Name, &wt.Category, &wt.Description, &keywords, &examples); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(keywords), &wt.Keywords)
		_ = json.Unmarshal([]byte(examples), &wt.Examples)
		types = append(types, wt)
	}
	return types, rows.Err()
}

func UpsertAgents(db *sql.DB, agents []AgentInfo) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, a := range agents {
		if a.Name == "" {
			continue
		}
		_, err := tx.Exec(
			`INSERT INTO agents (name, description, updated_at)
			 VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(name) DO UPDATE SET
				description = excluded.description,
				updated_at = CURRENT_TIMESTAMP`,
			a.Name, a.Description,
		)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

func LoadAgents(db *sql.DB) ([]AgentInfo, error) {
	rows, err := db.Query(`SELECT name, description FROM agents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []AgentInfo
	for rows.Next() {
		var a AgentInfo
		if err := rows.Scan(&a.Name, &a.Description); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func SetCatalogRefreshedAt(db *sql.DB, at time.Time) error {
	_, err := db.Exec(
		`INSERT INTO catalog_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaKeyCatalogRefresh, at.UTC().Format(time.RFC3339),
	)
	return err
}

// CatalogRefreshedAt returns the last successful refresh time, or false
// if the cache has never been filled.
func CatalogRefreshedAt(db *sql.DB) (time.Time, bool) {
	var value string
	err := db.QueryRow(`SELECT value FROM catalog_meta WHERE key = ?`, metaKeyCatalogRefresh).Scan(&value)
	if err != nil {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}
