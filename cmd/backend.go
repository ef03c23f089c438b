package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/database/filestore"
	"github.com/kozaktomas/face-login/internal/database/mariadb"
	"github.com/kozaktomas/face-login/internal/database/postgres"
)

// stores bundles the repositories of one storage backend.
type stores struct {
	backend    string
	identities database.IdentityWriter
	logins     database.LoginWriter
	close      func() error
}

func (s *stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openStores opens the identity store and login history of the configured backend,
// applying schema migrations for the SQL backends.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Backend {
	case config.BackendFile, "":
		identities, err := filestore.OpenIdentityStore(
			filepath.Join(cfg.Store.DataDir, filestore.IdentitiesFileName), cfg.Embedding.Dim)
		if err != nil {
			return nil, fmt.Errorf("opening identity store: %w", err)
		}
		logins, err := filestore.OpenLoginHistory(filepath.Join(cfg.Store.DataDir, filestore.LoginHistoryFileName))
		if err != nil {
			return nil, fmt.Errorf("opening login history: %w", err)
		}
		return &stores{backend: config.BackendFile, identities: identities, logins: logins}, nil

	case config.BackendPostgres:
		if cfg.Database.URL == "" {
			return nil, errors.New("DATABASE_URL environment variable is required for the postgres backend")
		}
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		applied, err := pool.Migrate(ctx)
		if err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		for _, name := range applied {
			fmt.Printf("Applied migration %s\n", name)
		}
		versions, err := pool.MigrationsApplied(ctx)
		if err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("reading schema version: %w", err)
		}
		if len(versions) > 0 {
			fmt.Printf("PostgreSQL schema at %s (%d migrations)\n", versions[len(versions)-1], len(versions))
		}
		return &stores{
			backend:    config.BackendPostgres,
			identities: postgres.NewIdentityRepository(pool, cfg.Embedding.Dim),
			logins:     postgres.NewLoginRepository(pool),
			close:      pool.Close,
		}, nil

	case config.BackendMariaDB:
		if cfg.MariaDB.DSN == "" {
			return nil, errors.New("MARIADB_DSN environment variable is required for the mariadb backend")
		}
		pool, err := mariadb.Open(ctx, cfg.MariaDB.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return &stores{
			backend:    config.BackendMariaDB,
			identities: mariadb.NewIdentityRepository(pool, cfg.Embedding.Dim),
			logins:     mariadb.NewLoginRepository(pool),
			close:      pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q (want %s, %s or %s)",
			cfg.Store.Backend, config.BackendFile, config.BackendPostgres, config.BackendMariaDB)
	}
}
