package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Report is the health payload.
type Report struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	Store    string `json:"store"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB        *sql.DB
	StoreType string
}

// NewService constructs a new health service. db may be nil when runs are
// kept in memory.
func NewService(db *sql.DB, storeType string) *Service {
	return &Service{DB: db, StoreType: storeType}
}

// Status pings the database when one is configured.
func (s *Service) Status(ctx context.Context) Report {
	rep := Report{OK: true, Database: "memory", Store: s.StoreType}
	if s.DB == nil {
		return rep
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		rep.OK = false
		rep.Database = "unreachable"
		return rep
	}
	rep.Database = "ok"
	return rep
}
