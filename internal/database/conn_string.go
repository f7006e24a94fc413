package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/data-ngin/internal/config"
)

// ApplicationName is reported to the server as application_name.
const ApplicationName = "data-ngin"

// connectTimeoutSeconds bounds each dial attempt.
const connectTimeoutSeconds = 10

// BuildConnString builds a PostgreSQL URL from config. User and password are
// escaped as URL userinfo; an empty SSL mode means prefer.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)
	q.Set("connect_timeout", strconv.Itoa(connectTimeoutSeconds))

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
