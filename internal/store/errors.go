package store

import "errors"

var (
	ErrEntryNotFound  = errors.New("journal entry not found")
	ErrCoreNotFound   = errors.New("emotional core not found")
	ErrDuplicateEntry = errors.New("duplicate journal entry")
	ErrNotQueued      = errors.New("entry not in offline queue")
	ErrQueueAbandoned = errors.New("queue item abandoned after attempt budget")
)
