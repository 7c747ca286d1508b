package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
)

// Client writes drawn picks to ClickHouse and answers aggregate questions about them.
type Client struct {
	conn driver.Conn
}

func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	c := &Client{conn: conn}
	if err := c.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) migrate(ctx context.Context) error {
	err := c.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS lottery_picks (
			view_id     String,
			pick_number UInt16,
			team_name   String,
			percentage  Float64,
			pool_size   UInt16,
			drawn_at    DateTime64(3)
		) ENGINE = MergeTree
		ORDER BY (drawn_at, view_id)
	`)
	if err != nil {
		return fmt.Errorf("failed to create lottery_picks: %w", err)
	}
	return nil
}

// RecordPick appends one pick.
func (c *Client) RecordPick(ctx context.Context, p models.PickRecord) error {
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO lottery_picks")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	if err := batch.Append(p.ViewID, uint16(p.PickNumber), p.TeamName, p.Percentage, uint16(p.PoolSize), p.DrawnAt); err != nil {
		return fmt.Errorf("append pick: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send pick: %w", err)
	}
	return nil
}

// TeamStats returns per-team pick counts over the last 90 days, most first picks first.
func (c *Client) TeamStats(ctx context.Context) ([]models.TeamStat, error) {
	query := `
		SELECT
			team_name,
			count()                  AS picks,
			countIf(pick_number = 1) AS first_picks,
			avg(percentage)          AS avg_percentage
		FROM lottery_picks
		WHERE drawn_at >= now() - INTERVAL 90 DAY
		GROUP BY team_name
		ORDER BY first_picks DESC, picks DESC, team_name
	`
	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []models.TeamStat{}
	for rows.Next() {
		var s models.TeamStat
		if err := rows.Scan(&s.TeamName, &s.Picks, &s.FirstPicks, &s.AvgPercentage); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
