// Package repomanager bundles the per-aggregate repositories behind one
// handle so wiring sites receive a single dependency.
package repomanager

import (
	"database/sql"

	"filevault/internal/server/queue"
	"filevault/internal/server/repositories/files"
	"filevault/internal/server/repositories/sessions"
)

type RepositoryManager interface {
	Conn() *sql.DB
	Files() files.Repository
	Sessions() sessions.Repository
	Jobs() queue.Queue
	Close() error
}
