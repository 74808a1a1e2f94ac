package orphans

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	setKey     = "orphans:blobs"
	infoPrefix = "orphans:info:"
)

// Orphan is a blob left without a referencing record.
type Orphan struct {
	Identifier string
	Reason     string
	Kind       string
	ResourceID string
	At         time.Time
}

// Ledger keeps known orphan identifiers in Redis until the sweeper removes
// them. A nil *Ledger records nothing.
type Ledger struct {
	rdb *redis.Client
}

func NewLedger(rdb *redis.Client) *Ledger {
	return &Ledger{rdb: rdb}
}

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *Ledger) Record(ctx context.Context, o Orphan) error {
	if l == nil || l.rdb == nil {
		return nil
	}
	if o.At.IsZero() {
		o.At = time.Now().UTC()
	}
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, setKey, o.Identifier)
		p.HSet(ctx, infoPrefix+o.Identifier,
			"reason", o.Reason,
			"kind", o.Kind,
			"resource_id", o.ResourceID,
			"at", o.At.Format(time.RFC3339Nano),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record orphan %s: %w", o.Identifier, err)
	}
	return nil
}

// Pending lists recorded orphan identifiers, sorted.
func (l *Ledger) Pending(ctx context.Context) ([]string, error) {
	if l == nil || l.rdb == nil {
		return nil, nil
	}
	ids, err := l.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list orphans: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *Ledger) Get(ctx context.Context, identifier string) (Orphan, bool, error) {
	if l == nil || l.rdb == nil {
		return Orphan{}, false, nil
	}
	m, err := l.rdb.HGetAll(ctx, infoPrefix+identifier).Result()
	if err != nil {
		return Orphan{}, false, fmt.Errorf("get orphan %s: %w", identifier, err)
	}
	if len(m) == 0 {
		return Orphan{}, false, nil
	}
	at, _ := time.Parse(time.RFC3339Nano, m["at"])
	return Orphan{
		Identifier: identifier,
		Reason:     m["reason"],
		Kind:       m["kind"],
		ResourceID: m["resource_id"],
		At:         at,
	}, true, nil
}

// Resolve forgets an orphan once its blob is gone.
func (l *Ledger) Resolve(ctx context.Context, identifier string) error {
	if l == nil || l.rdb == nil {
		return nil
	}
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, setKey, identifier)
		p.Del(ctx, infoPrefix+identifier)
		return nil
	})
	if err != nil {
		return fmt.Errorf("resolve orphan %s: %w", identifier, err)
	}
	return nil
}
