package inmemdb

import (
	"sync"

	"github.com/coachdesk/backend/core/callweek"
	"github.com/coachdesk/backend/core/user"
)

// DB is a mutex-guarded in-memory store used in tests and local hacking.
type DB struct {
	mutex sync.RWMutex

	users   map[string]user.User     // by id
	weeks   map[string]callweek.Week // by id, Students/Parents not populated
	records map[string]callweek.Record
	calls   map[string]callweek.Call
}

func NewDB() *DB {
	return &DB{
		users:   make(map[string]user.User),
		weeks:   make(map[string]callweek.Week),
		records: make(map[string]callweek.Record),
		calls:   make(map[string]callweek.Call),
	}
}

// Reset drops all stored rows.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]user.User)
	db.weeks = make(map[string]callweek.Week)
	db.records = make(map[string]callweek.Record)
	db.calls = make(map[string]callweek.Call)
}
