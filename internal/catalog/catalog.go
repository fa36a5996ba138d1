// Package catalog stores the simulation cards shown on the site's landing
// page. SQLite (pure Go, glebarez/sqlite) is the default; Postgres is used
// when configured.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Drivers accepted in Config.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrNotFound is returned when no simulation has the requested slug.
	ErrNotFound = errors.New("simulation not found")

	// ErrDuplicate is returned when creating a simulation whose slug exists.
	ErrDuplicate = errors.New("simulation already exists")

	// ErrInvalid is returned for simulations that fail validation.
	ErrInvalid = errors.New("invalid simulation")
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// Simulation is one card in the catalog.
type Simulation struct {
	ID          uint      `gorm:"primarykey" json:"-"`
	Slug        string    `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	Title       string    `gorm:"size:128;not null" json:"title"`
	Description string    `json:"description"`
	Grades      string    `gorm:"size:16" json:"grades"`
	Color       string    `gorm:"size:7" json:"color"`
	Thumbnail   string    `json:"thumbnail"`
	Link        string    `json:"link"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the fields a card needs to render.
func (s *Simulation) Validate() error {
	switch {
	case !slugPattern.MatchString(s.Slug):
		return fmt.Errorf("%w: slug %q must be lowercase words joined by hyphens", ErrInvalid, s.Slug)
	case s.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case s.Color != "" && !colorPattern.MatchString(s.Color):
		return fmt.Errorf("%w: color %q must be #rrggbb", ErrInvalid, s.Color)
	}
	return nil
}

// PlanetaryOrbits is the card seeded into an empty catalog.
func PlanetaryOrbits() Simulation {
	return Simulation{
		Slug:  "planetary-orbits",
		Title: "Planetary Orbits",
		Description: "Follow Earth around the Sun while the narration builds up Kepler's laws: " +
			"the ellipse and its foci, equal areas in equal times, and the vis-viva equation. " +
			"Then drag the eccentricity slider and watch the orbit change.",
		Grades:    "8-10",
		Color:     "#00ff00",
		Thumbnail: "/static/thumbnails/planetary-orbits.png",
		Link:      "/simulations/planetary-orbits",
	}
}

// Config selects the catalog database.
type Config struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres (default: sqlite)
	DSN    string `mapstructure:"dsn"`    // file path or connection string; empty sqlite DSN is in-memory
}

// Store is the simulation catalog.
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *slog.Logger
}

// Open connects to the configured database, migrates the schema and seeds
// an empty catalog.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	gormCfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file::memory:"
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	case DriverPostgres:
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gormCfg)
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql interface: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps an in-memory database alive and serialises
		// writers.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
	}

	s := &Store{db: db, sqlDB: sqlDB, logger: log.With("component", "catalog")}
	if err := s.setup(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// setup migrates the schema and seeds the default card into an empty table.
func (s *Store) setup(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&Simulation{}); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}

	var count int64
	if err := db.Model(&Simulation{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count simulations: %w", err)
	}
	if count == 0 {
		seed := PlanetaryOrbits()
		if err := db.Create(&seed).Error; err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		s.logger.Info("catalog seeded", "slug", seed.Slug)
	}

	s.logger.Info("catalog ready", "driver", s.db.Dialector.Name())
	return nil
}

// List returns every simulation ordered by title.
func (s *Store) List(ctx context.Context) ([]Simulation, error) {
	var sims []Simulation
	if err := s.db.WithContext(ctx).Order("title").Find(&sims).Error; err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	return sims, nil
}

// Get returns the simulation with the given slug.
func (s *Store) Get(ctx context.Context, slug string) (Simulation, error) {
	var sim Simulation
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&sim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Simulation{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	if err != nil {
		return Simulation{}, fmt.Errorf("get simulation %s: %w", slug, err)
	}
	return sim, nil
}

// Create adds a simulation. The slug must be unused.
func (s *Store) Create(ctx context.Context, sim *Simulation) error {
	if err := sim.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Simulation{}).Where("slug = ?", sim.Slug).Count(&count).Error; err != nil {
			return fmt.Errorf("check slug: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicate, sim.Slug)
		}
		if err := tx.Create(sim).Error; err != nil {
			return fmt.Errorf("create simulation %s: %w", sim.Slug, err)
		}
		return nil
	})
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}
