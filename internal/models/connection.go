package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Protocol is the wire protocol of an external database connection.
type Protocol string

const (
	ProtocolPostgres Protocol = "postgresql"
	ProtocolMySQL    Protocol = "mysql"
)

var protocolAliases = map[string]Protocol{
	"pg":         ProtocolPostgres,
	"postgres":   ProtocolPostgres,
	"postgresql": ProtocolPostgres,
	"mysql":      ProtocolMySQL,
}

// ParseProtocol normalizes a stored connection type. The second return value
// is false for unsupported types.
func ParseProtocol(s string) (Protocol, bool) {
	p, ok := protocolAliases[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}

// DatabaseConnection is a stored descriptor of a user-owned database. It is
// only ever read by the ingestion pipeline.
type DatabaseConnection struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	Name             string    `json:"name" db:"name"`
	Type             string    `json:"type" db:"type"` // enum: postgresql, mysql
	Host             string    `json:"host" db:"host"`
	Port             int       `json:"port" db:"port"`
	DatabaseName     string    `json:"database_name" db:"database_name"`
	Username         string    `json:"username" db:"username"`
	Password         string    `json:"password,omitempty" db:"password"` // literal or ENV_ reference
	ConnectionString string    `json:"connection_string,omitempty" db:"connection_string"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// BuildConnString returns the stored connection string if present, otherwise
// {protocol}://{username}:{password}@{host}:{port}/{database} using the given
// (already resolved) password.
func (c *DatabaseConnection) BuildConnString(protocol Protocol, password string) string {
	if s := strings.TrimSpace(c.ConnectionString); s != "" {
		return s
	}
	u := url.URL{
		Scheme: string(protocol),
		User:   url.UserPassword(c.Username, password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.DatabaseName,
	}
	return u.String()
}
