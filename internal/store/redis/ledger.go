// Package redis provides the Redis-backed alert cooldown ledger.
package redis

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"rsi-tracker/internal/alert"
	"rsi-tracker/internal/signal"

	goredis "github.com/go-redis/redis/v8"
)

const keyPrefix = "rsitracker:alert:"

// Config configures the Redis connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Ledger keeps cooldown state in Redis. Every key carries the retention
// window as its TTL, so pruning is Redis's problem.
type Ledger struct {
	client *goredis.Client
}

// NewLedger connects to Redis and pings the server.
func NewLedger(cfg Config) (*Ledger, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Ledger{client: client}, nil
}

// ledgerKey builds "rsitracker:alert:<symbol>:<type>". Symbols may contain
// "/" but never ":", so the last colon separates symbol from type.
func ledgerKey(symbol string, typ signal.Type) string {
	return keyPrefix + symbol + ":" + string(typ)
}

func (l *Ledger) Last(ctx context.Context, symbol string, typ signal.Type) (time.Time, bool, error) {
	val, err := l.client.Get(ctx, ledgerKey(symbol, typ)).Result()
	if err == goredis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis ledger: bad timestamp %q: %w", val, err)
	}
	return time.Unix(ts, 0).UTC(), true, nil
}

func (l *Ledger) Record(ctx context.Context, symbol string, typ signal.Type, at time.Time) error {
	return l.client.Set(ctx, ledgerKey(symbol, typ),
		strconv.FormatInt(at.Unix(), 10), alert.RetentionWindow).Err()
}

func (l *Ledger) Entries(ctx context.Context) ([]alert.Entry, error) {
	var out []alert.Entry

	iter := l.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()

		val, err := l.client.Get(ctx, k).Result()
		if err == goredis.Nil {
			// Expired between SCAN and GET.
			continue
		}
		if err != nil {
			return nil, err
		}
		ts, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}

		rest := strings.TrimPrefix(k, keyPrefix)
		i := strings.LastIndex(rest, ":")
		if i < 0 {
			continue
		}
		out = append(out, alert.Entry{
			Symbol: rest[:i],
			Type:   signal.Type(rest[i+1:]),
			At:     time.Unix(ts, 0).UTC(),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

// Client returns the underlying Redis client for health checks.
func (l *Ledger) Client() *goredis.Client { return l.client }

// Close closes the Redis connection.
func (l *Ledger) Close() error { return l.client.Close() }
