package postgres

import (
	"context"

	"crimewatch/pkg/errors"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS reports (
		id            UUID PRIMARY KEY,
		city          VARCHAR(100) NOT NULL,
		crime_type    VARCHAR(100) NOT NULL,
		occurred_date VARCHAR(10)  NOT NULL,
		occurred_time VARCHAR(5)   NOT NULL,
		location      VARCHAR(255) NOT NULL,
		description   TEXT         NOT NULL,
		victim_age    INTEGER,
		victim_gender VARCHAR(1)   NOT NULL DEFAULT '',
		weapon_used   VARCHAR(100) NOT NULL DEFAULT '',
		crime_domain  VARCHAR(100) NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_city_created ON reports (city, created_at)`,
	`CREATE TABLE IF NOT EXISTS subscribers (
		id                 UUID PRIMARY KEY,
		name               VARCHAR(100) NOT NULL,
		email              VARCHAR(100) NOT NULL,
		phone              VARCHAR(32)  NOT NULL,
		city               VARCHAR(100) NOT NULL,
		state              VARCHAR(100) NOT NULL DEFAULT '',
		is_active          BOOLEAN      NOT NULL DEFAULT TRUE,
		notify_email       BOOLEAN      NOT NULL DEFAULT TRUE,
		notify_sms         BOOLEAN      NOT NULL DEFAULT FALSE,
		notify_high_risk   BOOLEAN      NOT NULL DEFAULT TRUE,
		notify_medium_risk BOOLEAN      NOT NULL DEFAULT TRUE,
		notify_low_risk    BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		last_notified      TIMESTAMPTZ,
		CONSTRAINT subscribers_email_key UNIQUE (email),
		CONSTRAINT subscribers_phone_key UNIQUE (phone)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscribers_city_active ON subscribers (city) WHERE is_active`,
}

// Migrate creates the tables when they do not exist
func Migrate(ctx context.Context, db DBTX) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration %d", i)
		}
	}
	return nil
}
