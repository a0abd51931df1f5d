package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/vault"
)

const (
	AttemptsStream = "access_attempts"

	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// auditEnvelope is what gets sealed per record. PrevHash is the SHA-256 of
// the previous record's plaintext envelope, so edits, drops and
// reorderings all break the chain.
type auditEnvelope struct {
	Seq      int64               `json:"seq"`
	PrevHash string              `json:"prev_hash"`
	Attempt  model.AccessAttempt `json:"attempt"`
}

type chainHead struct {
	seq  int64
	hash string
}

// AuditLog is the append-only record of access attempts. Appends are
// serialized in-process; records are never edited or deleted.
type AuditLog struct {
	logs   store.LogStore
	sealer *vault.Sealer
	stream string
	logger *zap.Logger

	mu   sync.Mutex
	head *chainHead
}

func NewAuditLog(logs store.LogStore, sealer *vault.Sealer, logger *zap.Logger) *AuditLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLog{
		logs:   logs,
		sealer: sealer,
		stream: AttemptsStream,
		logger: logger.Named("audit_log"),
	}
}

func (a *AuditLog) ad() []byte { return []byte("log:" + a.stream) }

// Append fills in ID and Timestamp when unset and writes one record.
func (a *AuditLog) Append(ctx context.Context, attempt model.AccessAttempt) (model.AccessAttempt, error) {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now().UTC()
	}
	if attempt.SubjectName == "" {
		attempt.SubjectName = model.UnknownSubject
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	head, err := a.loadHead(ctx)
	if err != nil {
		return model.AccessAttempt{}, err
	}

	plain, err := vault.EncodeDocument(auditEnvelope{
		Seq:      head.seq + 1,
		PrevHash: head.hash,
		Attempt:  attempt,
	})
	if err != nil {
		return model.AccessAttempt{}, err
	}
	sealed, err := a.sealer.Seal(plain, a.ad())
	if err != nil {
		return model.AccessAttempt{}, err
	}
	if err := a.logs.Append(ctx, a.stream, sealed); err != nil {
		return model.AccessAttempt{}, fmt.Errorf("audit append: %w", err)
	}

	a.head = &chainHead{seq: head.seq + 1, hash: digest(plain)}
	return attempt, nil
}

// loadHead reads the newest record once per process. An unreadable head
// restarts the chain; Verify reports the break.
func (a *AuditLog) loadHead(ctx context.Context) (chainHead, error) {
	if a.head != nil {
		return *a.head, nil
	}

	var (
		head    chainHead
		openErr error
	)
	err := a.logs.Scan(ctx, a.stream, func(sealed []byte) bool {
		plain, env, err := a.open(sealed)
		if err != nil {
			openErr = err
			return false
		}
		head = chainHead{seq: env.Seq, hash: digest(plain)}
		return false
	})
	if err != nil {
		return chainHead{}, fmt.Errorf("audit head: %w", err)
	}
	if openErr != nil {
		a.logger.Error("newest audit record unreadable, chain restarts", zap.Error(openErr))
	}

	a.head = &head
	return head, nil
}

func (a *AuditLog) open(sealed []byte) ([]byte, auditEnvelope, error) {
	var env auditEnvelope
	plain, err := a.sealer.Open(sealed, a.ad())
	if err != nil {
		return nil, env, err
	}
	if err := vault.DecodeDocument(plain, &env); err != nil {
		return nil, env, err
	}
	return plain, env, nil
}

func digest(plain []byte) string {
	sum := sha256.Sum256(plain)
	return hex.EncodeToString(sum[:])
}

// Query returns up to limit attempts newest first, optionally filtered by
// outcome. Unreadable records are skipped and logged.
func (a *AuditLog) Query(ctx context.Context, outcome *model.Outcome, limit int) ([]model.AccessAttempt, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	out := make([]model.AccessAttempt, 0, min(limit, 64))
	skipped := 0
	err := a.logs.Scan(ctx, a.stream, func(sealed []byte) bool {
		_, env, err := a.open(sealed)
		if err != nil {
			skipped++
			return true
		}
		if outcome == nil || env.Attempt.Outcome == *outcome {
			out = append(out, env.Attempt)
		}
		return len(out) < limit
	})
	if err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}
	if skipped > 0 {
		a.logger.Warn("skipped unreadable audit records", zap.Int("count", skipped))
	}
	return out, nil
}

// AttemptCounts summarises the log.
type AttemptCounts struct {
	Total     int
	ByOutcome map[model.Outcome]int
}

func (a *AuditLog) Count(ctx context.Context) (AttemptCounts, error) {
	c := AttemptCounts{ByOutcome: make(map[model.Outcome]int)}
	err := a.logs.Scan(ctx, a.stream, func(sealed []byte) bool {
		_, env, err := a.open(sealed)
		if err != nil {
			return true
		}
		c.Total++
		c.ByOutcome[env.Attempt.Outcome]++
		return true
	})
	if err != nil {
		return AttemptCounts{}, fmt.Errorf("audit count: %w", err)
	}
	return c, nil
}

// VerifyReport describes a successful chain walk.
type VerifyReport struct {
	Records int
	HeadSeq int64
}

// Verify walks the log newest to oldest and checks that each record names
// its predecessor's hash and sequence number, ending at seq 1.
func (a *AuditLog) Verify(ctx context.Context) (VerifyReport, error) {
	var (
		report VerifyReport
		newer  *auditEnvelope
		broken error
	)

	err := a.logs.Scan(ctx, a.stream, func(sealed []byte) bool {
		plain, env, err := a.open(sealed)
		if err != nil {
			broken = fmt.Errorf("%w: record %d from head unreadable: %v", ErrChainBroken, report.Records, err)
			return false
		}

		if newer == nil {
			report.HeadSeq = env.Seq
		} else {
			if newer.Seq != env.Seq+1 {
				broken = fmt.Errorf("%w: seq %d follows seq %d", ErrChainBroken, newer.Seq, env.Seq)
				return false
			}
			if newer.PrevHash != digest(plain) {
				broken = fmt.Errorf("%w: seq %d does not match predecessor hash", ErrChainBroken, newer.Seq)
				return false
			}
		}

		report.Records++
		newer = &env
		return true
	})
	if err != nil {
		return VerifyReport{}, fmt.Errorf("audit verify: %w", err)
	}
	if broken != nil {
		return report, broken
	}
	if newer != nil && (newer.Seq != 1 || newer.PrevHash != "") {
		return report, fmt.Errorf("%w: oldest record is seq %d", ErrChainBroken, newer.Seq)
	}
	return report, nil
}
