// Package userconfig is the MySQL-backed implementation of the external
// user-config collaborator spec §6 leaves unspecified: it answers
// "which users are subscribed to marketplace X" and "what are user Y's
// rules", and exposes a version counter the Supervisor polls to detect
// filter changes, adapted from the teacher's order_store.go query/scan
// shape and sql_exec.go's sqlExecutor abstraction.
package userconfig

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/filter"
	"github.com/nertexqq/giftwatch/internal/marketplace"
)

// Store wraps access to the user_filter_rules / filter_meta tables.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitSchema creates the tables this store needs if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_filter_rules (
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  user_id VARCHAR(64) NOT NULL,
  rule_order INT NOT NULL DEFAULT 0,
  collections TEXT NOT NULL,
  models TEXT NOT NULL,
  backdrops TEXT NOT NULL,
  marketplaces VARCHAR(255) NOT NULL,
  price_min DECIMAL(20,9) NULL,
  price_max DECIMAL(20,9) NULL,
  INDEX idx_user (user_id),
  INDEX idx_marketplaces (marketplaces(32))
);
CREATE TABLE IF NOT EXISTS filter_meta (
  id TINYINT PRIMARY KEY DEFAULT 1,
  version BIGINT NOT NULL DEFAULT 0
);
INSERT IGNORE INTO filter_meta (id, version) VALUES (1, 0);`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Version returns the current filter_meta version counter. The
// Supervisor polls this to detect filter changes per spec §4.7 (the
// transport of that event is unspecified, so a version column bumped on
// write is this implementation's concrete choice).
func (s *Store) Version(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM filter_meta WHERE id = 1`).Scan(&v)
	return v, err
}

// BumpVersion increments the version counter; callers invoke this after
// any write to user_filter_rules.
func (s *Store) BumpVersion(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE filter_meta SET version = version + 1 WHERE id = 1`)
	return err
}

// SubscribedUsers returns the distinct users whose rule set includes mp
// in its marketplaces list (stored as a comma-joined column, or the
// literal "ANY").
func (s *Store) SubscribedUsers(mp marketplace.Name) ([]string, error) {
	return s.subscribedUsers(context.Background(), mp)
}

func (s *Store) subscribedUsers(ctx context.Context, mp marketplace.Name) ([]string, error) {
	return subscribedUsersExec(ctx, s.db, mp)
}

func subscribedUsersExec(ctx context.Context, exec sqlExecutor, mp marketplace.Name) ([]string, error) {
	const q = `
SELECT DISTINCT user_id FROM user_filter_rules
WHERE marketplaces = 'ANY' OR FIND_IN_SET(?, marketplaces) > 0`
	rows, err := exec.QueryContext(ctx, q, string(mp))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}

// RulesFor loads userID's ordered rule set, adapting each stored row
// into a filter.Rule.
func (s *Store) RulesFor(userID string) (filter.UserRules, error) {
	return s.rulesFor(context.Background(), userID)
}

func (s *Store) rulesFor(ctx context.Context, userID string) (filter.UserRules, error) {
	return rulesForExec(ctx, s.db, userID)
}

func rulesForExec(ctx context.Context, exec sqlExecutor, userID string) (filter.UserRules, error) {
	const q = `
SELECT collections, models, backdrops, marketplaces,
  IFNULL(price_min, ''), IFNULL(price_max, '')
FROM user_filter_rules
WHERE user_id = ?
ORDER BY rule_order ASC`

	rows, err := exec.QueryContext(ctx, q, userID)
	if err != nil {
		return filter.UserRules{}, err
	}
	defer rows.Close()

	var rules []filter.Rule
	for rows.Next() {
		var collections, models, backdrops, marketplaces, priceMin, priceMax string
		if err := rows.Scan(&collections, &models, &backdrops, &marketplaces, &priceMin, &priceMax); err != nil {
			return filter.UserRules{}, err
		}
		rules = append(rules, filter.Rule{
			Collections:  splitCSV(collections),
			Models:       splitCSV(models),
			Backdrops:    splitCSV(backdrops),
			Marketplaces: splitMarketplaces(marketplaces),
			PriceMin:     parseOptionalDecimal(priceMin),
			PriceMax:     parseOptionalDecimal(priceMax),
		})
	}
	if err := rows.Err(); err != nil {
		return filter.UserRules{}, err
	}
	return filter.UserRules{UserID: userID, Rules: rules}, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitMarketplaces(s string) []marketplace.Name {
	if s == "ANY" {
		return []marketplace.Name{marketplace.Portals, marketplace.Tonnel, marketplace.MRKT, marketplace.GetGems}
	}
	names := splitCSV(s)
	out := make([]marketplace.Name, 0, len(names))
	for _, n := range names {
		out = append(out, marketplace.Name(n))
	}
	return out
}

func parseOptionalDecimal(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			d = decimal.NewFromFloat(f)
		} else {
			return nil
		}
	}
	return &d
}
