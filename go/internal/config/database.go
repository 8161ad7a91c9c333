package config

import (
	"fmt"
	"net/url"
)

// Database holds Postgres connection settings for the profile repository
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection URL.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.PathEscape(d.User), url.PathEscape(d.Password), d.Host, d.Port, d.Name, d.SSLMode,
	)
}
