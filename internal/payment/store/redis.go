package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"forexhub/internal/payment"
)

const defaultPrefix = "pending:"

// Each record is a hash with the JSON-encoded payment under "data" and the
// live state under "state". Only "state" is ever rewritten.
var (
	putScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "data", ARGV[1], "state", ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
end
return 1
`)

	// a CONFIRMED record is paid for and must outlive any TTL
	casScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "state") == ARGV[1] then
  redis.call("HSET", KEYS[1], "state", ARGV[2])
  if ARGV[3] == "1" then
    redis.call("PERSIST", KEYS[1])
  end
  return 1
end
return 0
`)
)

// Redis is a PendingStore shared by every replica of the service. The key TTL
// only bounds garbage from abandoned pushes; confirmed records are persisted.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: defaultPrefix, ttl: ttl}
}

func (r *Redis) key(requestID string) string {
	return r.prefix + requestID
}

func (r *Redis) Put(ctx context.Context, p *payment.PendingPayment) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode pending payment")
	}
	ok, err := putScript.Run(ctx, r.rdb, []string{r.key(p.RequestID)}, data, string(p.State), r.ttl.Milliseconds()).Int()
	if err != nil {
		return errors.Wrap(err, "redis put pending")
	}
	if ok == 0 {
		return payment.ErrDuplicatePending
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, requestID string) (*payment.PendingPayment, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(requestID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis get pending")
	}
	return decode(fields)
}

func (r *Redis) CompareAndSwapState(ctx context.Context, requestID string, from, to payment.State) (bool, error) {
	if err := payment.CheckTransition(from, to); err != nil {
		return false, err
	}
	persist := "0"
	if to == payment.StateConfirmed {
		persist = "1"
	}
	n, err := casScript.Run(ctx, r.rdb, []string{r.key(requestID)}, string(from), string(to), persist).Int()
	if err != nil {
		return false, errors.Wrap(err, "redis swap state")
	}
	return n == 1, nil
}

func (r *Redis) Remove(ctx context.Context, requestID string) error {
	return errors.Wrap(r.rdb.Del(ctx, r.key(requestID)).Err(), "redis remove pending")
}

func (r *Redis) List(ctx context.Context) ([]*payment.PendingPayment, error) {
	var out []*payment.PendingPayment
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		fields, err := r.rdb.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, errors.Wrap(err, "redis list pending")
		}
		p, err := decode(fields)
		if err != nil {
			return nil, err
		}
		// removed between SCAN and HGETALL
		if p != nil {
			out = append(out, p)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "redis scan pending")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func decode(fields map[string]string) (*payment.PendingPayment, error) {
	data, ok := fields["data"]
	if !ok {
		return nil, nil
	}
	p := &payment.PendingPayment{}
	if err := json.Unmarshal([]byte(data), p); err != nil {
		return nil, errors.Wrap(err, "decode pending payment")
	}
	if s, ok := fields["state"]; ok {
		p.State = payment.State(s)
	}
	return p, nil
}
