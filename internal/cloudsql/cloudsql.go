package cloudsql

import (
	"errors"
	"fmt"
	"strings"
)

var errNotConfigured = errors.New("neither DATABASE_URL nor INSTANCE_CONNECTION_NAME is set")

// IsNotConfigured reports whether err means no database settings were given at all.
func IsNotConfigured(err error) bool {
	return errors.Is(err, errNotConfigured)
}

// BuildDatabaseURL constructs a PostgreSQL connection string that works with both
// local development and Google Cloud SQL on Cloud Run.
//
// DATABASE_URL wins when set. Otherwise INSTANCE_CONNECTION_NAME, DB_USER and
// DB_NAME (plus optional DB_PASSWORD) build a Unix socket DSN under /cloudsql.
func BuildDatabaseURL(getenv func(string) string) (string, error) {
	if dbURL := getenv("DATABASE_URL"); dbURL != "" {
		return dbURL, nil
	}

	instance := getenv("INSTANCE_CONNECTION_NAME")
	if instance == "" {
		return "", errNotConfigured
	}

	user := getenv("DB_USER")
	name := getenv("DB_NAME")
	if user == "" || name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	socketPath := fmt.Sprintf("/cloudsql/%s", instance)
	if password := getenv("DB_PASSWORD"); password != "" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			socketPath, user, password, name), nil
	}

	// IAM authentication
	return fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable", socketPath, user, name), nil
}

// Redact hides the password of a postgres:// URL or key=value DSN for logging.
func Redact(connStr string) string {
	if strings.HasPrefix(connStr, "postgresql://") || strings.HasPrefix(connStr, "postgres://") {
		parts := strings.SplitN(connStr, "@", 2)
		if len(parts) == 2 {
			userParts := strings.Split(parts[0], ":")
			if len(userParts) >= 3 {
				return userParts[0] + ":" + userParts[1] + ":***@" + parts[1]
			}
		}
		return connStr
	}

	fields := strings.Fields(connStr)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}
