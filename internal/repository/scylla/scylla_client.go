package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"resource-auth-service/internal/config"
	"resource-auth-service/internal/util"
)

// PreparedStatements holds the statements the resource repository executes.
type PreparedStatements struct {
	GetResource          *gocql.Query
	GetWhitelist         *gocql.Query
	AddWhitelistEntry    *gocql.Query
	RemoveWhitelistEntry *gocql.Query
	GetCustomization     *gocql.Query
	SetCustomization     *gocql.Query
}

type ScyllaClient struct {
	Session  *gocql.Session
	config   *config.ScyllaConfig
	Prepared *PreparedStatements
}

func NewScyllaClient(cfg *config.Config) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Hosts...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = parseConsistency(scyllaConfig.Consistency)
	cluster.Timeout = scyllaConfig.Timeout
	cluster.ConnectTimeout = scyllaConfig.Timeout
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}
	client.prepareStatements()

	util.Info("ScyllaDB client initialized",
		util.Any("hosts", scyllaConfig.Hosts),
		util.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() {
	s.Prepared = &PreparedStatements{
		GetResource: s.Session.Query(`
			SELECT resource_id, name, password_enabled, password_hash,
			       pincode_enabled, pincode_hash, sso_enabled, whitelist_enabled,
			       created_at, updated_at
			FROM resources WHERE resource_id = ?`),
		GetWhitelist: s.Session.Query(`
			SELECT email_pattern, created_at
			FROM whitelist_entries WHERE resource_id = ?`),
		AddWhitelistEntry: s.Session.Query(`
			INSERT INTO whitelist_entries (resource_id, email_pattern, created_at)
			VALUES (?, ?, ?)`),
		RemoveWhitelistEntry: s.Session.Query(`
			DELETE FROM whitelist_entries WHERE resource_id = ? AND email_pattern = ?`),
		GetCustomization: s.Session.Query(`
			SELECT resource_id, enabled, title, description, logo, background,
			       css, html, updated_at
			FROM auth_customizations WHERE resource_id = ?`),
		SetCustomization: s.Session.Query(`
			INSERT INTO auth_customizations
			    (resource_id, enabled, title, description, logo, background, css, html, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
	}
}

func (s *ScyllaClient) HealthCheck() error {
	var now time.Time
	if err := s.Session.Query(`SELECT now() FROM system.local`).Scan(&now); err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
	}
}

func parseConsistency(c string) gocql.Consistency {
	switch c {
	case "one":
		return gocql.One
	case "local_quorum":
		return gocql.LocalQuorum
	case "all":
		return gocql.All
	default:
		return gocql.Quorum
	}
}
