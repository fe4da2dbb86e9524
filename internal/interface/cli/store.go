package cli

import (
	"context"
	"fmt"

	"github.com/studentgrades/studentgrades-api/config"
	"github.com/studentgrades/studentgrades-api/internal/application/service"
	"github.com/studentgrades/studentgrades-api/internal/domain/grade"
	"github.com/studentgrades/studentgrades-api/internal/domain/student"
	"github.com/studentgrades/studentgrades-api/internal/infrastructure/persistence/postgres"
	"github.com/studentgrades/studentgrades-api/internal/infrastructure/persistence/sqlite"
	"github.com/studentgrades/studentgrades-api/pkg/logger"
)

// migrationState is one line of `migrate status`.
type migrationState struct {
	Version int
	Name    string
	Applied bool
}

// store hides which database driver backs the repositories.
type store struct {
	driver   string
	students student.Repository
	grades   grade.Repository

	ping     func(context.Context) error
	migrate  func(context.Context) error
	rollback func(context.Context) error
	status   func(context.Context) ([]migrationState, error)
	close    func()
}

func (s *store) Ping(ctx context.Context) error { return s.ping(ctx) }

func openStore(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, log)
	case config.DriverSQLite:
		return openSQLite(cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*store, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.URL
	pgCfg.MaxConns = int32(cfg.MaxConns)
	pgCfg.MinConns = int32(cfg.MinConns)
	pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	pgCfg.RetryAttempts = cfg.RetryAttempts

	conn, err := postgres.NewConnection(ctx, pgCfg, log)
	if err != nil {
		return nil, err
	}
	migrator := postgres.NewMigrator(conn)

	return &store{
		driver:   config.DriverPostgres,
		students: postgres.NewStudentRepository(conn),
		grades:   postgres.NewGradeRepository(conn),
		ping:     conn.Ping,
		migrate:  migrator.Migrate,
		rollback: migrator.Rollback,
		status: func(ctx context.Context) ([]migrationState, error) {
			migrations, err := migrator.Status(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]migrationState, 0, len(migrations))
			for _, m := range migrations {
				out = append(out, migrationState{Version: m.Version, Name: m.Name, Applied: m.IsApplied})
			}
			return out, nil
		},
		close: conn.Close,
	}, nil
}

func openSQLite(cfg config.DatabaseConfig) (*store, error) {
	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	return &store{
		driver:   config.DriverSQLite,
		students: sqlite.NewStudentRepository(db),
		grades:   sqlite.NewGradeRepository(db),
		ping:     db.Ping,
		migrate:  db.Migrate,
		rollback: db.Rollback,
		status: func(ctx context.Context) ([]migrationState, error) {
			v, err := db.Version(ctx)
			if err != nil {
				return nil, err
			}
			return []migrationState{{Version: 1, Name: "students_and_grades", Applied: v >= 1}}, nil
		},
		close: func() { _ = db.Close() },
	}, nil
}

// services builds both application services over st.
func (s *store) services(log *logger.Logger) (*service.StudentService, *service.GradeService) {
	deps := service.Deps{
		Students: s.students,
		Grades:   s.grades,
		Logger:   log,
	}
	return service.NewStudentService(deps), service.NewGradeService(deps)
}
