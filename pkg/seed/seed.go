// Package seed fills an empty database with the default catalog and the first administrator.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/repositories"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Entry is one named catalog row. Activo defaults to true.
type Entry struct {
	Nombre string `yaml:"nombre"`
	Activo *bool  `yaml:"activo"`
}

// IsActive reports the entry's activo flag, defaulting to true.
func (e Entry) IsActive() bool {
	return e.Activo == nil || *e.Activo
}

// Catalog is the seed file layout.
type Catalog struct {
	Statuses []Entry `yaml:"statuses"`
	Carteras []Entry `yaml:"carteras"`
}

// DefaultCatalog parses the embedded catalog.yaml.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes a catalog file, rejecting blank and duplicate names.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := validateEntries("statuses", c.Statuses); err != nil {
		return nil, err
	}
	if err := validateEntries("carteras", c.Carteras); err != nil {
		return nil, err
	}
	return &c, nil
}

func validateEntries(section string, entries []Entry) error {
	seen := make(map[string]bool, len(entries))
	for i := range entries {
		name := strings.TrimSpace(entries[i].Nombre)
		if name == "" {
			return fmt.Errorf("%s[%d]: nombre is required", section, i)
		}
		if seen[name] {
			return fmt.Errorf("%s: duplicate nombre %q", section, name)
		}
		seen[name] = true
		entries[i].Nombre = name
	}
	return nil
}

// Result counts the rows a seeding run inserted.
type Result struct {
	StatusesInserted int
	CarterasInserted int
}

// Seeder writes the catalog and bootstrap admin. The context passed to its
// methods must carry a database scope.
type Seeder struct {
	catalog repositories.CatalogRepository
	users   repositories.UserRepository
	logger  *zap.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(catalog repositories.CatalogRepository, users repositories.UserRepository, logger *zap.Logger) *Seeder {
	return &Seeder{
		catalog: catalog,
		users:   users,
		logger:  logger.Named("seed"),
	}
}

// SeedCatalog inserts the catalog entries that do not exist yet.
// Existing rows, including their activo flag, are left untouched.
func (s *Seeder) SeedCatalog(ctx context.Context, c *Catalog) (*Result, error) {
	result := &Result{}

	for _, e := range c.Statuses {
		inserted, err := s.catalog.EnsureStatus(ctx, e.Nombre, e.IsActive())
		if err != nil {
			return nil, fmt.Errorf("failed to seed status %q: %w", e.Nombre, err)
		}
		if inserted {
			result.StatusesInserted++
		}
	}

	for _, e := range c.Carteras {
		inserted, err := s.catalog.EnsureCartera(ctx, e.Nombre, e.IsActive())
		if err != nil {
			return nil, fmt.Errorf("failed to seed cartera %q: %w", e.Nombre, err)
		}
		if inserted {
			result.CarterasInserted++
		}
	}

	s.logger.Info("Catalog seeded",
		zap.Int("statuses_inserted", result.StatusesInserted),
		zap.Int("carteras_inserted", result.CarterasInserted))
	return result, nil
}

// EnsureAdmin creates an administrator when the users table holds no admin.
// Returns false without touching the database when password is empty.
func (s *Seeder) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if password == "" || username == "" {
		return false, nil
	}

	count, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return false, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	s.logger.Warn("Created bootstrap administrator, change its password",
		zap.String("username", username),
		zap.Int64("user_id", user.ID))
	return true, nil
}
