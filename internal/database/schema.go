package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect names the SQL driver a schema is created for.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite3"
)

// {{ts}} is replaced by the dialect's timestamp type.  go-sqlite3 only
// decodes columns declared exactly as DATETIME into time.Time, while MySQL
// needs DATETIME(6) to keep sub-second precision.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reservations (
		id                VARCHAR(36)  NOT NULL PRIMARY KEY,
		code              VARCHAR(16)  NOT NULL UNIQUE,
		client_id         VARCHAR(64)  NOT NULL,
		room_id           VARCHAR(64)  NOT NULL,
		suite_type        VARCHAR(16)  NOT NULL,
		policy            VARCHAR(16)  NOT NULL,
		rate_cents        BIGINT       NOT NULL,
		nights            INTEGER      NOT NULL,
		checkin_expected  {{ts}}       NOT NULL,
		checkout_expected {{ts}}       NOT NULL,
		checkin_actual    {{ts}}       NULL,
		checkout_actual   {{ts}}       NULL,
		status            VARCHAR(24)  NOT NULL,
		cancel_reason     VARCHAR(255) NOT NULL DEFAULT '',
		canceled_at       {{ts}}       NULL,
		penalty_cents     BIGINT       NOT NULL DEFAULT 0,
		refund_cents      BIGINT       NOT NULL DEFAULT 0,
		penalty_rule      VARCHAR(32)  NOT NULL DEFAULT '',
		penalty_waived_by VARCHAR(64)  NOT NULL DEFAULT '',
		version           BIGINT       NOT NULL,
		created_at        {{ts}}       NOT NULL,
		updated_at        {{ts}}       NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stays (
		reservation_id VARCHAR(36) NOT NULL PRIMARY KEY,
		status         VARCHAR(16) NOT NULL,
		checked_in_at  {{ts}}      NULL,
		checked_out_at {{ts}}      NULL,
		guests         INTEGER     NOT NULL DEFAULT 0,
		vehicle_plate  VARCHAR(16) NOT NULL DEFAULT '',
		deposit_cents  BIGINT      NOT NULL DEFAULT 0,
		deposit_status VARCHAR(16) NOT NULL,
		created_at     {{ts}}      NOT NULL,
		updated_at     {{ts}}      NOT NULL,
		FOREIGN KEY (reservation_id) REFERENCES reservations (id)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id               VARCHAR(36)  NOT NULL PRIMARY KEY,
		reservation_id   VARCHAR(36)  NOT NULL,
		amount_cents     BIGINT       NOT NULL,
		method           VARCHAR(16)  NOT NULL,
		status           VARCHAR(16)  NOT NULL,
		card_mask        VARCHAR(32)  NOT NULL DEFAULT '',
		card_fingerprint VARCHAR(64)  NOT NULL DEFAULT '',
		gateway_ref      VARCHAR(128) NOT NULL DEFAULT '',
		created_at       {{ts}}       NOT NULL,
		updated_at       {{ts}}       NOT NULL,
		UNIQUE (reservation_id, id),
		FOREIGN KEY (reservation_id) REFERENCES reservations (id)
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_transitions (
		id             VARCHAR(36)  NOT NULL PRIMARY KEY,
		reservation_id VARCHAR(36)  NOT NULL,
		seq            INTEGER      NOT NULL,
		transition     VARCHAR(24)  NOT NULL,
		from_status    VARCHAR(24)  NOT NULL,
		to_status      VARCHAR(24)  NOT NULL,
		actor_id       VARCHAR(64)  NOT NULL,
		actor_role     VARCHAR(16)  NOT NULL,
		note           VARCHAR(255) NOT NULL DEFAULT '',
		created_at     {{ts}}       NOT NULL,
		UNIQUE (reservation_id, seq),
		FOREIGN KEY (reservation_id) REFERENCES reservations (id)
	)`,
	`CREATE TABLE IF NOT EXISTS points_accounts (
		client_id  VARCHAR(64) NOT NULL PRIMARY KEY,
		balance    BIGINT      NOT NULL,
		version    BIGINT      NOT NULL,
		created_at {{ts}}      NOT NULL,
		updated_at {{ts}}      NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS points_ledger (
		id             VARCHAR(36)  NOT NULL PRIMARY KEY,
		client_id      VARCHAR(64)  NOT NULL,
		seq            BIGINT       NOT NULL,
		delta          BIGINT       NOT NULL,
		reason         VARCHAR(24)  NOT NULL,
		reservation_id VARCHAR(36)  NOT NULL DEFAULT '',
		balance_before BIGINT       NOT NULL,
		balance_after  BIGINT       NOT NULL,
		note           VARCHAR(255) NOT NULL DEFAULT '',
		actor_id       VARCHAR(64)  NOT NULL DEFAULT '',
		created_at     {{ts}}       NOT NULL,
		accrual_key    VARCHAR(36)  NULL UNIQUE,
		UNIQUE (client_id, seq)
	)`,
}

// Migrate creates the tables when they do not exist yet.  Statements are
// run one at a time because neither driver accepts multi-statement Exec by
// default.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	ts := "DATETIME"
	if d == MySQL {
		ts = "DATETIME(6)"
	}
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, strings.ReplaceAll(stmt, "{{ts}}", ts)); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
