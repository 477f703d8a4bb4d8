package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// PermissionSet is the named capability map stored on an API key as JSONB.
type PermissionSet struct {
	Analyze      bool `json:"analyze"`
	RiskScore    bool `json:"riskScore"`
	FullAnalysis bool `json:"fullAnalysis"`
	Batch        bool `json:"batch"`
	Registration bool `json:"registration"`
}

// DefaultPermissions grants every capability; keys created without an
// explicit set get this.
func DefaultPermissions() PermissionSet {
	return PermissionSet{
		Analyze:      true,
		RiskScore:    true,
		FullAnalysis: true,
		Batch:        true,
		Registration: true,
	}
}

// Has reports whether the named capability is granted.
func (p PermissionSet) Has(name string) bool {
	switch name {
	case "analyze":
		return p.Analyze
	case "riskScore":
		return p.RiskScore
	case "fullAnalysis":
		return p.FullAnalysis
	case "batch":
		return p.Batch
	case "registration":
		return p.Registration
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface
func (p *PermissionSet) Scan(value interface{}) error {
	if value == nil {
		*p = DefaultPermissions()
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, p)
}

// Value implements the driver.Valuer interface
func (p PermissionSet) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// RateLimitPolicy is the per-key request budget stored as JSONB.
type RateLimitPolicy struct {
	RequestsPerMinute int `json:"requestsPerMinute"`
	RequestsPerDay    int `json:"requestsPerDay"`
}

func DefaultRateLimit() RateLimitPolicy {
	return RateLimitPolicy{
		RequestsPerMinute: 60,
		RequestsPerDay:    10000,
	}
}

// Scan implements the sql.Scanner interface
func (r *RateLimitPolicy) Scan(value interface{}) error {
	if value == nil {
		*r = DefaultRateLimit()
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, r)
}

// Value implements the driver.Valuer interface
func (r RateLimitPolicy) Value() (driver.Value, error) {
	return json.Marshal(r)
}
