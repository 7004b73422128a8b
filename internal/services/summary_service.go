package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// SummaryService materializes the aggregates the presentation layer reads:
// monthly income/expense/saving totals (transfer mirrors excluded) and net
// worth across accounts. Results are cached in Redis when available; the
// service runs uncached otherwise.
type SummaryService struct {
	db    *sql.DB
	redis *redis.Client
	ttl   time.Duration
}

type MonthlySummary struct {
	Year     int             `json:"year"`
	Month    time.Month      `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Saving   decimal.Decimal `json:"saving"`
	NetWorth decimal.Decimal `json:"net_worth"`
}

func NewSummaryService(db *sql.DB, rdb *redis.Client) *SummaryService {
	return &SummaryService{
		db:    db,
		redis: rdb,
		ttl:   5 * time.Minute,
	}
}

func summaryKey(userID string, year int, month time.Month) string {
	return fmt.Sprintf("summary:%s:%d-%02d", userID, year, int(month))
}

// GetMonthlySummary returns the aggregates for one owner-month.
func (ss *SummaryService) GetMonthlySummary(ctx context.Context, userID string, year int, month time.Month) (*MonthlySummary, error) {
	key := summaryKey(userID, year, month)

	if ss.redis != nil {
		cached, err := ss.redis.Get(ctx, key).Result()
		if err == nil {
			summary := &MonthlySummary{}
			if err := json.Unmarshal([]byte(cached), summary); err == nil {
				return summary, nil
			}
		} else if err != redis.Nil {
			log.Printf("[SUMMARY] Cache read failed, falling back to database: %v", err)
		}
	}

	summary, err := ss.computeMonthlySummary(userID, year, month)
	if err != nil {
		return nil, err
	}

	if ss.redis != nil {
		data, err := json.Marshal(summary)
		if err == nil {
			if err := ss.redis.Set(ctx, key, data, ss.ttl).Err(); err != nil {
				log.Printf("[SUMMARY] Cache write failed: %v", err)
			}
		}
	}

	return summary, nil
}

// Invalidate drops the cached summary for the month the mutation touched.
// Called by the effect engines after a successful commit.
func (ss *SummaryService) Invalidate(ctx context.Context, userID string, date time.Time) {
	if ss.redis == nil {
		return
	}
	key := summaryKey(userID, date.Year(), date.Month())
	if err := ss.redis.Del(ctx, key).Err(); err != nil {
		log.Printf("[SUMMARY] Cache invalidation failed for %s: %v", key, err)
	}
}

func (ss *SummaryService) computeMonthlySummary(userID string, year int, month time.Month) (*MonthlySummary, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	summary := &MonthlySummary{Year: year, Month: month}
	err := ss.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN c.kind = 'income' THEN t.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN c.kind = 'expense' THEN t.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN c.kind = 'saving' THEN t.amount ELSE 0 END), 0)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND NOT t.is_transfer AND t.date >= $2 AND t.date < $3`,
		userID, start, end).
		Scan(&summary.Income, &summary.Expense, &summary.Saving)
	if err != nil {
		return nil, fmt.Errorf("failed to compute monthly summary: %w", err)
	}

	err = ss.db.QueryRow(`
		SELECT COALESCE(SUM(balance), 0) FROM accounts
		WHERE user_id = $1`, userID).Scan(&summary.NetWorth)
	if err != nil {
		return nil, fmt.Errorf("failed to compute net worth: %w", err)
	}

	return summary, nil
}
