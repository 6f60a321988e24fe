package nhsdir

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/tracker"
)

// Adapter reads hospital names from the legacy NHS organisation
// directory, a SQL Server database still maintained by an upstream
// team. Used only as a seed fallback when the primary HTTP list is
// down.
type Adapter struct {
	db *sql.DB
}

// New opens a connection to the legacy directory and verifies it.
func New(ctx context.Context, cfg config.LegacyDirectoryConfig) (*Adapter, error) {
	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s;encrypt=true;TrustServerCertificate=true",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy directory: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping legacy directory: %w", err)
	}

	return &Adapter{db: db}, nil
}

// Hospitals lists active acute hospitals from the directory.
func (a *Adapter) Hospitals(ctx context.Context) ([]tracker.TrackedEntity, error) {
	query := `
		SELECT OrganisationName, Town
		FROM dbo.Organisations
		WHERE OrganisationType = 'Hospital' AND Status = 'Active'
		ORDER BY OrganisationName`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy directory: %w", err)
	}
	defer rows.Close()

	var entities []tracker.TrackedEntity
	for rows.Next() {
		var name string
		var town sql.NullString
		if err := rows.Scan(&name, &town); err != nil {
			return nil, fmt.Errorf("failed to scan organisation: %w", err)
		}
		entities = append(entities, tracker.TrackedEntity{Name: name, City: town.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read organisations: %w", err)
	}

	return entities, nil
}

// Close closes the directory connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}
