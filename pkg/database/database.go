package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/logger"
	"github.com/moyu-x/mql-organizer/pkg/report"
)

// driverName is the database/sql name modernc.org/sqlite registers under.
const driverName = "sqlite"

const batchSize = 200

type RunRecord struct {
	ID            uint      `gorm:"primaryKey"`
	TimeCompleted string    `gorm:"not null"`
	TotalFiles    int       `gorm:"not null"`
	SearchPath    string    `gorm:"not null"`
	SavePath      string    `gorm:"not null"`
	Extensions    string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (RunRecord) TableName() string {
	return "runs"
}

type ManifestRecord struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        uint   `gorm:"index;not null"`
	Seq          int    `gorm:"not null"`
	Name         string `gorm:"not null"`
	Extension    string `gorm:"not null"`
	IsSource     bool   `gorm:"not null"`
	FileSize     int64  `gorm:"not null"`
	TimeModified string `gorm:"not null"`
	Path         string `gorm:"not null"`
	Checksum     string `gorm:"index;not null"`
	Copyright    *string
	Link         *string
	Version      *string
	Dest         string `gorm:"not null;default:''"`
}

func (ManifestRecord) TableName() string {
	return "manifest"
}

type DiffRecord struct {
	ID              uint   `gorm:"primaryKey"`
	RunID           uint   `gorm:"index;not null"`
	Seq             int    `gorm:"not null"`
	OriginalPath    string `gorm:"not null"`
	ConflictingPath string `gorm:"not null"`
	ResolvedName    string `gorm:"not null"`
	Dest            string `gorm:"not null;default:''"`
}

func (DiffRecord) TableName() string {
	return "diff_files"
}

// Database stores finalized reports. Each SaveReport call adds one run.
type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	expandedPath, err := internal.ExpandHome(dbPath)
	if err != nil {
		logger.Get().Error().Err(err).Msg("expanding database path failed")
		return nil, err
	}

	logger.Get().Debug().Msgf("opening report database at %s", expandedPath)

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0755); err != nil {
		logger.Get().Error().Err(err).Msgf("creating database directory %s failed", filepath.Dir(expandedPath))
		return nil, fmt.Errorf("%w: %w", internal.ErrIO, err)
	}

	dsn := expandedPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: driverName, DSN: dsn}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Get().Error().Err(err).Msg("opening database failed")
		return nil, fmt.Errorf("%w: %w", internal.ErrIO, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		logger.Get().Error().Err(err).Msg("creating tables failed")
		sqlDB.Close()
		return nil, fmt.Errorf("%w: %w", internal.ErrIO, err)
	}

	return &Database{db: db}, nil
}

func createSchema(db *gorm.DB) error {
	return db.AutoMigrate(&RunRecord{}, &ManifestRecord{}, &DiffRecord{})
}

// SaveReport writes r as a new run and returns its id.
func (d *Database) SaveReport(r *report.Report) (uint, error) {
	run := RunRecord{
		TimeCompleted: r.TimeCompleted,
		TotalFiles:    r.TotalFiles,
		SearchPath:    r.SearchPath,
		SavePath:      r.SavePath,
		Extensions:    strings.Join(r.Extensions, " "),
	}

	err := d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}

		manifest := make([]ManifestRecord, 0, len(r.Manifest))
		for i, m := range r.Manifest {
			manifest = append(manifest, ManifestRecord{
				RunID:        run.ID,
				Seq:          i,
				Name:         m.Name,
				Extension:    m.Extension,
				IsSource:     m.IsSource,
				FileSize:     m.FileSize,
				TimeModified: m.TimeModified,
				Path:         m.Path,
				Checksum:     m.Checksum,
				Copyright:    m.Copyright,
				Link:         m.Link,
				Version:      m.Version,
				Dest:         m.Dest,
			})
		}
		if len(manifest) > 0 {
			if err := tx.CreateInBatches(manifest, batchSize).Error; err != nil {
				return err
			}
		}

		diffs := make([]DiffRecord, 0, len(r.DiffFiles))
		for i, df := range r.DiffFiles {
			diffs = append(diffs, DiffRecord{
				RunID:           run.ID,
				Seq:             i,
				OriginalPath:    df.OriginalPath,
				ConflictingPath: df.ConflictingPath,
				ResolvedName:    df.ResolvedName,
				Dest:            df.Dest,
			})
		}
		if len(diffs) > 0 {
			if err := tx.CreateInBatches(diffs, batchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Get().Error().Err(err).Msg("saving report failed")
		return 0, fmt.Errorf("%w: %w", internal.ErrIO, err)
	}

	logger.Get().Debug().Uint("run", run.ID).Int("manifest", len(r.Manifest)).Msg("report saved to database")
	return run.ID, nil
}

// Manifest returns the manifest rows of a run in recorded order.
func (d *Database) Manifest(runID uint) ([]ManifestRecord, error) {
	var rows []ManifestRecord
	err := d.db.Where("run_id = ?", runID).Order("seq").Find(&rows).Error
	return rows, err
}

// DiffFiles returns the collision rows of a run in recorded order.
func (d *Database) DiffFiles(runID uint) ([]DiffRecord, error) {
	var rows []DiffRecord
	err := d.db.Where("run_id = ?", runID).Order("seq").Find(&rows).Error
	return rows, err
}

// FindByChecksum returns every manifest row, across runs, holding checksum.
func (d *Database) FindByChecksum(checksum string) ([]ManifestRecord, error) {
	var rows []ManifestRecord
	err := d.db.Where("checksum = ?", checksum).Order("run_id, seq").Find(&rows).Error
	return rows, err
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
