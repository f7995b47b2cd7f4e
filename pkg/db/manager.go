// pkg/db/manager.go
// Package db is the shared data store for normalized scan results. Scan
// tasks consume it only through the Manager interface; the concrete gorm
// implementation lives here as well.
package db

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reconpipe/reconpipe/pkg/netutil"
)

// Manager is how scan tasks talk to the shared store. Implementations must
// make concurrent calls safe: independent scans frequently discover the same
// target at the same time and must not create duplicate rows.
type Manager interface {
	// GetOrCreateTargetByIPOrHostname resolves an identifier (hostname, IP
	// address, or subnet) to its target row, creating the row on first
	// sight. Repeated calls with the same identifier return the same
	// logical record.
	GetOrCreateTargetByIPOrHostname(identifier string) (*Target, error)

	// Add persists a normalized record (a *Target with updated
	// associations, or an individual IPAddress/Port/Service row).
	Add(record any) error

	// GetAllHostnames returns every known non-IP target identifier.
	GetAllHostnames() ([]string, error)

	// GetAllIPAddresses returns every recorded address, v4 and v6.
	GetAllIPAddresses() ([]string, error)

	Close() error
}

// GormManager implements Manager on a postgres database via gorm. A single
// mutex serializes all writes and upserts; the pipeline's write volume is
// tiny next to the external tools' runtime, so contention is irrelevant and
// duplicate-row races are not.
type GormManager struct {
	mu  sync.Mutex
	db  *gorm.DB
	dsn string
}

// Open connects to the database at dsn and migrates the result tables.
func Open(dsn string) (*GormManager, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := gdb.AutoMigrate(&Target{}, &IPAddress{}, &Port{}, &Service{}); err != nil {
		return nil, fmt.Errorf("migrate database schema: %w", err)
	}

	log.Debug().Str("dsn", dsn).Msg("database ready")
	return &GormManager{db: gdb, dsn: dsn}, nil
}

// GetOrCreateTargetByIPOrHostname upserts the target row for identifier. An
// IP identifier gets a target row keyed by the address text plus an
// IPAddress association; a hostname gets a bare target row.
func (m *GormManager) GetOrCreateTargetByIPOrHostname(identifier string) (*Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var target Target
	result := m.db.Where(Target{Hostname: identifier}).FirstOrCreate(&target)
	if result.Error != nil {
		return nil, fmt.Errorf("upsert target %q: %w", identifier, result.Error)
	}

	if result.RowsAffected > 0 && netutil.IsIPAddress(identifier) {
		addr := IPAddress{TargetID: target.ID}
		switch netutil.IPVersion(identifier) {
		case "4":
			addr.IPv4Address = identifier
		case "6":
			addr.IPv6Address = identifier
		}
		if addr.IPv4Address != "" || addr.IPv6Address != "" {
			if err := m.db.Create(&addr).Error; err != nil {
				return nil, fmt.Errorf("record address for %q: %w", identifier, err)
			}
		}
	}

	return &target, nil
}

// Add saves a record, updating associations on conflict.
func (m *GormManager) Add(record any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.Save(record).Error; err != nil {
		return fmt.Errorf("persist record: %w", err)
	}
	return nil
}

// GetAllHostnames returns target identifiers that are not IP addresses.
func (m *GormManager) GetAllHostnames() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var identifiers []string
	if err := m.db.Model(&Target{}).Pluck("hostname", &identifiers).Error; err != nil {
		return nil, fmt.Errorf("list hostnames: %w", err)
	}

	hostnames := identifiers[:0]
	for _, identifier := range identifiers {
		if !netutil.IsIPAddress(identifier) {
			hostnames = append(hostnames, identifier)
		}
	}
	return hostnames, nil
}

// GetAllIPAddresses returns every recorded v4 and v6 address.
func (m *GormManager) GetAllIPAddresses() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []IPAddress
	if err := m.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}

	var addresses []string
	for _, row := range rows {
		if row.IPv4Address != "" {
			addresses = append(addresses, row.IPv4Address)
		}
		if row.IPv6Address != "" {
			addresses = append(addresses, row.IPv6Address)
		}
	}
	return addresses, nil
}

// Close releases the underlying connection pool.
func (m *GormManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
