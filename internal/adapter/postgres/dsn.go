package postgres

import (
	"net"
	"net/url"

	"autocurrency/pkg/config"
)

// BuildDSN renders a postgres:// URL. Credentials are escaped so passwords
// with reserved characters survive the round trip.
func BuildDSN(cfg config.Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Postgres.User, cfg.Postgres.Password),
		Host:     net.JoinHostPort(cfg.Postgres.Host, cfg.Postgres.Port),
		Path:     "/" + cfg.Postgres.DBName,
		RawQuery: url.Values{"sslmode": []string{cfg.Postgres.SSLMode}}.Encode(),
	}
	return u.String()
}
