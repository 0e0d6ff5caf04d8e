// Package idempotency caches the response of an operation under a
// client-supplied key so that retries and concurrent duplicates observe
// the first execution instead of running it again.
//
// A key moves through two values in Redis:
//
//	pending:<token>:<fingerprint>   set with SET NX by the one caller that runs the operation
//	{"fingerprint":...,"status":...,"body":...}   written over the marker once it succeeded
//
// Callers that lose the SET NX race poll until the record is complete and
// return it verbatim.  A failed operation deletes its marker and caches
// nothing, so the key can be retried.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
)

const pendingPrefix = "pending:"

// completeScript replaces the caller's own marker with the final record.
var completeScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
		return 1
	end
	return 0
`)

// abandonScript deletes the caller's own marker.
var abandonScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Response is the cached outcome of an operation.  Body is replayed byte
// for byte.
type Response struct {
	Status   int             `json:"status"`
	Body     json.RawMessage `json:"body"`
	Replayed bool            `json:"-"`
}

type record struct {
	Fingerprint string          `json:"fingerprint"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Store implements the key → response cache on Redis.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	log    logrus.FieldLogger
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key.  Default "idem".
func WithPrefix(p string) Option { return func(s *Store) { s.prefix = p } }

// WithTTL sets how long completed responses are kept.  Default 24h.
func WithTTL(d time.Duration) Option { return func(s *Store) { s.ttl = d } }

// WithWait bounds how long a duplicate waits for the first execution to
// finish.  Default 10s.
func WithWait(d time.Duration) Option { return func(s *Store) { s.wait = d } }

// WithPollInterval sets how often a waiting duplicate checks the record.
func WithPollInterval(d time.Duration) Option { return func(s *Store) { s.poll = d } }

// WithLogger sets the logger used for cache write failures.
func WithLogger(l logrus.FieldLogger) Option { return func(s *Store) { s.log = l } }

// New returns a Store backed by rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		rdb:    rdb,
		prefix: "idem",
		ttl:    24 * time.Hour,
		wait:   10 * time.Second,
		poll:   20 * time.Millisecond,
		log:    logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Fingerprint digests the parts of a request that must match for a key to
// be reused.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Do runs fn at most once per key.  The first caller executes fn and
// caches its response; later or concurrent callers with the same key get
// that response with Replayed set.  A key reused with a different
// fingerprint is rejected.  A duplicate still waiting when the wait bound
// elapses gets an InFlight error.
func (s *Store) Do(ctx context.Context, key, fingerprint string, fn func(ctx context.Context) (Response, error)) (Response, error) {
	if key == "" {
		return Response{}, apperr.Validation("missing_idempotency_key", "idempotency key is required")
	}
	full := s.prefix + ":" + key
	deadline := time.Now().Add(s.wait)
	for {
		marker := pendingPrefix + uuid.NewString() + ":" + fingerprint
		won, err := s.rdb.SetNX(ctx, full, marker, s.markerTTL()).Result()
		if err != nil {
			return Response{}, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if won {
			return s.run(ctx, full, marker, fingerprint, fn)
		}

		raw, err := s.rdb.Get(ctx, full).Result()
		if errors.Is(err, redis.Nil) {
			// the holder failed and released the key; race for it again
			continue
		}
		if err != nil {
			return Response{}, fmt.Errorf("read idempotency key: %w", err)
		}

		if fp, pending := parsePending(raw); pending {
			if err := sameRequest(fingerprint, fp); err != nil {
				return Response{}, err
			}
		} else {
			var rec record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				return Response{}, fmt.Errorf("decode idempotency record: %w", err)
			}
			if err := sameRequest(fingerprint, rec.Fingerprint); err != nil {
				return Response{}, err
			}
			return Response{Status: rec.Status, Body: rec.Body, Replayed: true}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Response{}, apperr.InFlight("request_in_flight",
				"a request with this idempotency key is still being processed")
		}
		t := time.NewTimer(min(s.poll, remaining))
		select {
		case <-ctx.Done():
			t.Stop()
			return Response{}, ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Store) run(ctx context.Context, full, marker, fingerprint string, fn func(ctx context.Context) (Response, error)) (Response, error) {
	// effects committed by fn stand even if the request is canceled, so the
	// bookkeeping below must not be canceled with it
	bg := context.WithoutCancel(ctx)

	resp, err := fn(ctx)
	if err != nil {
		if derr := abandonScript.Run(bg, s.rdb, []string{full}, marker).Err(); derr != nil {
			s.log.WithFields(logrus.Fields{"key": full, "error": derr}).Warn("idempotency: release marker failed")
		}
		return Response{}, err
	}

	b, err := json.Marshal(record{
		Fingerprint: fingerprint,
		Status:      resp.Status,
		Body:        resp.Body,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Response{}, fmt.Errorf("encode idempotency record: %w", err)
	}
	stored, err := completeScript.Run(bg, s.rdb, []string{full}, marker, string(b), s.ttl.Milliseconds()).Int()
	if err != nil || stored != 1 {
		s.log.WithFields(logrus.Fields{"key": full, "error": err}).Warn("idempotency: response not cached")
	}
	return resp, nil
}

// markerTTL bounds how long a crashed holder blocks its key.
func (s *Store) markerTTL() time.Duration {
	d := 3 * s.wait
	if d < 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func parsePending(raw string) (fingerprint string, ok bool) {
	rest, ok := strings.CutPrefix(raw, pendingPrefix)
	if !ok {
		return "", false
	}
	_, fp, _ := strings.Cut(rest, ":")
	return fp, true
}

func sameRequest(want, got string) error {
	if want != "" && got != "" && want != got {
		return apperr.Validation("idempotency_key_reused",
			"idempotency key was already used for a different request")
	}
	return nil
}
