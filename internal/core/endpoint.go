package core

import (
	"net"
	"net/url"
	"strconv"
)

// Endpoint is where a ready engine accepts connections.
type Endpoint struct {
	Host        string
	Port        int
	Database    string
	Params      string            // raw query string appended to connection strings
	Username    string            // user connection strings authenticate as
	Credentials map[string]string // every user the engine accepts, to password
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ConnectionString returns postgres://host:port/database?params without
// credentials.
func (e Endpoint) ConnectionString() string {
	return e.url(nil).String()
}

// DSN returns the connection string with the configured user and password.
func (e Endpoint) DSN() string {
	var user *url.Userinfo
	switch pw := e.Credentials[e.Username]; {
	case e.Username == "":
	case pw == "":
		user = url.User(e.Username)
	default:
		user = url.UserPassword(e.Username, pw)
	}
	return e.url(user).String()
}

func (e Endpoint) url(user *url.Userinfo) *url.URL {
	return &url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     e.Address(),
		Path:     "/" + e.Database,
		RawQuery: e.Params,
	}
}
