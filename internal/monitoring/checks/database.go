package checks

import (
	"context"

	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/monitoring"
)

// Database pings the connection pool behind db.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError("database", err)
		}
		return monitoring.ResultFromError("database", sqlDB.PingContext(ctx))
	})
}
