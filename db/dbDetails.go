package db

import (
	"github.com/jmoiron/sqlx"
)

// Details carries the database handles used by the persistence layer.
type Details struct {
	GeneralDb *sqlx.DB
}
