// pkg/db/models.go
package db

import (
	"gorm.io/gorm"
)

// Target is one logical host under assessment, keyed by hostname (or bare IP
// for hosts discovered without a name). Every scan that re-discovers the same
// identifier resolves to the same row.
type Target struct {
	gorm.Model
	Hostname          string `gorm:"uniqueIndex"`
	VulnToSubTakeover bool
	IPAddresses       []IPAddress
	Ports             []Port
	Services          []Service
}

// IPAddress records an address observed for a target. Exactly one of the
// version columns is set.
type IPAddress struct {
	gorm.Model
	TargetID    uint
	IPv4Address string
	IPv6Address string
}

// Port is an open port reported by a port scanner.
type Port struct {
	gorm.Model
	TargetID uint
	Protocol string
	Number   int
	Status   string
}

// Service is a product identification for an open port, as reported by a
// version-detection scan.
type Service struct {
	gorm.Model
	TargetID uint
	Port     int
	Name     string
	Product  string
}
