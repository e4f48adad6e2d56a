package repositories

import (
	"fmt"
	"github.com/glebarez/sqlite"
	"github.com/maxaizer/placement-matcher/internal/config"
	"github.com/maxaizer/placement-matcher/internal/entities"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(cfg config.DBConfig) (*DbContext, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.ConnectionString)
	case config.DriverSqlite, "":
		dialector = sqlite.Open(cfg.ConnectionString)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver != config.DriverPostgres {
		// sqlite has a single writer; one connection keeps transactions from tripping over locks
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	err := c.DB.AutoMigrate(
		entities.Student{},
		entities.Project{},
		entities.Certification{},
		entities.ReadinessRecord{},
		entities.Job{},
		entities.MatchResult{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate entities: %w", err)
	}

	if err := c.DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_match_job_student ON match_results (job_id, student_id)").
		Error; err != nil {
		return fmt.Errorf("failed to create match result index: %w", err)
	}

	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
