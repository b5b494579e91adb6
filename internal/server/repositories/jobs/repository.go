// Package jobs persists queue entries in Postgres and implements the
// queue.Queue contract on top of them.
//
// A claimed entry is a row in status 'running'; claiming uses
// FOR UPDATE SKIP LOCKED so that any number of consumers can poll the same
// channel without handing out an entry twice.
package jobs

import (
	"filevault/internal/server/queue"
)

// Repository is the durable queue implementation. It is an alias of the
// shared contract so wiring sites can name either.
type Repository = queue.Queue
