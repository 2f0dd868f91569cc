package models

import "github.com/google/uuid"

// ensureID assigns a random UUID when the caller did not supply one. Rows get
// their identifiers in Go so the same models work on Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
