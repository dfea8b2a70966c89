package database

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"vat-service/internal/models"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationRecord tracks which migrations have been applied
type MigrationRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Version   string `gorm:"uniqueIndex;size:255"`
	AppliedAt int64  `gorm:"autoCreateTime"`
}

// RunMigrations runs all pending database migrations
func RunMigrations(db *gorm.DB) error {
	logrus.Info("Starting database migrations")

	// Migration tracking table first
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migration tracking table: %w", err)
	}

	// Schema via GORM AutoMigrate, one model at a time for better errors
	modelsToMigrate := []struct {
		name  string
		model interface{}
	}{
		{"VATRate", &models.VATRate{}},
		{"ExpenseCategory", &models.ExpenseCategory{}},
		{"BusinessUsageOption", &models.BusinessUsageOption{}},
		{"Expense", &models.Expense{}},
		{"Invoice", &models.Invoice{}},
	}
	for _, m := range modelsToMigrate {
		if err := db.AutoMigrate(m.model); err != nil {
			return fmt.Errorf("failed to auto-migrate %s: %w", m.name, err)
		}
		logrus.WithField("model", m.name).Debug("Schema migrated")
	}

	// Embedded SQL seed migrations
	if err := runSQLMigrations(db); err != nil {
		return fmt.Errorf("failed to run SQL migrations: %w", err)
	}

	logrus.Info("Database migrations complete")
	return nil
}

// runSQLMigrations executes embedded SQL migration files in order
func runSQLMigrations(db *gorm.DB) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	// Sort files by name (ensures order: 001_, 002_, etc.)
	var fileNames []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			fileNames = append(fileNames, entry.Name())
		}
	}
	sort.Strings(fileNames)

	for _, fileName := range fileNames {
		var record MigrationRecord
		result := db.Where("version = ?", fileName).First(&record)
		if result.Error == nil {
			logrus.WithField("migration", fileName).Debug("Skipping (already applied)")
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + fileName)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", fileName, err)
		}

		if err := executeSQLStatements(db, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", fileName, err)
		}

		if err := db.Create(&MigrationRecord{Version: fileName}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", fileName, err)
		}

		logrus.WithField("migration", fileName).Info("Applied migration")
	}

	return nil
}

// executeSQLStatements executes a SQL script with multiple statements
func executeSQLStatements(db *gorm.DB, sql string) error {
	statements := splitSQLStatements(sql)

	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		// Strip leading comment lines
		lines := strings.Split(stmt, "\n")
		var sqlLines []string
		for _, line := range lines {
			trimmedLine := strings.TrimSpace(line)
			if !strings.HasPrefix(trimmedLine, "--") && trimmedLine != "" {
				sqlLines = append(sqlLines, line)
			}
		}
		stmt = strings.TrimSpace(strings.Join(sqlLines, "\n"))
		if stmt == "" {
			continue
		}

		result := db.Exec(stmt)
		if result.Error != nil {
			// Reruns against seeded data are not an error
			if strings.Contains(result.Error.Error(), "duplicate key") ||
				strings.Contains(result.Error.Error(), "already exists") {
				continue
			}
			return result.Error
		}
	}

	return nil
}

// splitSQLStatements splits SQL content into individual statements,
// ignoring semicolons inside string literals
func splitSQLStatements(sql string) []string {
	var statements []string
	var currentStmt strings.Builder
	inString := false
	stringChar := rune(0)

	for i, char := range sql {
		if (char == '\'' || char == '"') && (i == 0 || sql[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = char
			} else if char == stringChar {
				inString = false
			}
		}

		if char == ';' && !inString {
			stmt := strings.TrimSpace(currentStmt.String())
			if stmt != "" {
				statements = append(statements, stmt)
			}
			currentStmt.Reset()
		} else {
			currentStmt.WriteRune(char)
		}
	}

	stmt := strings.TrimSpace(currentStmt.String())
	if stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}
