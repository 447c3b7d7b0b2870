package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/opensource-finance/claimguard/internal/domain"
)

const (
	claimsBucket = "claims"
	rulesBucket  = "rules"
)

// BoltRepository implements domain.Repository on an embedded bbolt file.
// Claims and rules are stored as JSON documents keyed by ID; queries scan
// the bucket. Writes are serialized by bbolt, which makes UpdateStatus
// atomic without extra locking.
type BoltRepository struct {
	db *bbolt.DB
}

// NewBoltRepository opens or creates the bolt file at path.
func NewBoltRepository(path string) (*BoltRepository, error) {
	if path == "" {
		path = "./claimguard.bolt"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{claimsBucket, rulesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltRepository{db: db}, nil
}

// Create stores a new claim. The ID is assigned when empty.
func (b *BoltRepository) Create(ctx context.Context, claim *domain.Claim) (string, error) {
	if claim == nil || claim.EmployeeName == "" {
		return "", fmt.Errorf("%w: claim with employee name is required", ErrInvalidInput)
	}

	prepareForCreate(claim)

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(claimsBucket))
		if bucket.Get([]byte(claim.ID)) != nil {
			return fmt.Errorf("%w: claim %s already exists", ErrInvalidInput, claim.ID)
		}
		return putJSON(bucket, claim.ID, claim)
	})
	if err != nil {
		return "", err
	}
	return claim.ID, nil
}

// GetByID retrieves a claim by ID.
func (b *BoltRepository) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	var claim *domain.Claim
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(claimsBucket)).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &claim)
	})
	if err != nil {
		return nil, err
	}
	normalize(claim)
	return claim, nil
}

// FindByClaimantVendorAmount scans for claims with exactly this claimant,
// vendor and total.
func (b *BoltRepository) FindByClaimantVendorAmount(ctx context.Context, claimantID, vendor string, total float64) ([]domain.ClaimRef, error) {
	refs := make([]domain.ClaimRef, 0)
	err := b.forEachClaim(ctx, func(c *domain.Claim) {
		if c.EmployeeName == claimantID && c.ReceiptData.Vendor == vendor && c.ReceiptData.Total == total {
			refs = append(refs, domain.ClaimRef{ID: c.ID, Date: c.ReceiptData.Date})
		}
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// List returns claims matching the filter, newest submission first.
func (b *BoltRepository) List(ctx context.Context, filter domain.ClaimFilter) ([]*domain.Claim, error) {
	claims := make([]*domain.Claim, 0)
	err := b.forEachClaim(ctx, func(c *domain.Claim) {
		if filter.Matches(c) {
			claims = append(claims, c)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(claims, func(i, j int) bool {
		a, c := claims[i], claims[j]
		if !a.SubmittedDate.Equal(c.SubmittedDate.Time) {
			return a.SubmittedDate.After(c.SubmittedDate.Time)
		}
		return a.CreatedAt.After(c.CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(claims) {
			return []*domain.Claim{}, nil
		}
		claims = claims[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(claims) {
		claims = claims[:filter.Limit]
	}
	return claims, nil
}

// Stats aggregates the matching claims in one bucket scan.
func (b *BoltRepository) Stats(ctx context.Context, filter domain.ClaimFilter) (*domain.ClaimStats, error) {
	stats := domain.NewClaimStats()
	err := b.forEachClaim(ctx, func(c *domain.Claim) {
		if filter.Matches(c) {
			stats.Add(c)
		}
	})
	if err != nil {
		return nil, err
	}
	stats.Finalize()
	return stats, nil
}

// UpdateStatus applies a review in a single bolt write transaction.
func (b *BoltRepository) UpdateStatus(ctx context.Context, id string, expected *domain.Status, update domain.StatusUpdate) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(claimsBucket))
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}

		var claim domain.Claim
		if err := json.Unmarshal(data, &claim); err != nil {
			return fmt.Errorf("unmarshaling claim %s: %w", id, err)
		}
		if expected != nil && claim.Status != *expected {
			return domain.ErrConflict
		}

		update.Apply(&claim)
		return putJSON(bucket, id, &claim)
	})
}

// SaveRuleConfig creates or replaces a rule configuration.
func (b *BoltRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(rulesBucket))

		now := time.Now().UTC()
		stored := *rule
		stored.CreatedAt, stored.UpdatedAt = now, now
		if data := bucket.Get([]byte(rule.ID)); data != nil {
			var existing domain.RuleConfig
			if err := json.Unmarshal(data, &existing); err == nil {
				stored.CreatedAt = existing.CreatedAt
			}
		}
		return putJSON(bucket, rule.ID, &stored)
	})
}

// GetRuleConfig retrieves a rule configuration.
func (b *BoltRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	var rule *domain.RuleConfig
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(rulesBucket)).Get([]byte(ruleID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rule)
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRuleConfigs returns every stored rule, ordered by ID.
func (b *BoltRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	rules := make([]*domain.RuleConfig, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		// bbolt iterates keys in byte order
		return tx.Bucket([]byte(rulesBucket)).ForEach(func(k, v []byte) error {
			var rule domain.RuleConfig
			if err := json.Unmarshal(v, &rule); err != nil {
				return fmt.Errorf("unmarshaling rule %s: %w", k, err)
			}
			rules = append(rules, &rule)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// DeleteRuleConfig removes a rule configuration.
func (b *BoltRepository) DeleteRuleConfig(ctx context.Context, ruleID string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(rulesBucket))
		if bucket.Get([]byte(ruleID)) == nil {
			return ErrNotFound
		}
		return bucket.Delete([]byte(ruleID))
	})
}

// Ping reports whether the file is still open.
func (b *BoltRepository) Ping(ctx context.Context) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(claimsBucket)) == nil {
			return fmt.Errorf("bucket %s missing", claimsBucket)
		}
		return nil
	})
}

// Close closes the database file.
func (b *BoltRepository) Close() error {
	return b.db.Close()
}

func (b *BoltRepository) forEachClaim(ctx context.Context, fn func(*domain.Claim)) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(claimsBucket)).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var claim domain.Claim
			if err := json.Unmarshal(v, &claim); err != nil {
				return fmt.Errorf("unmarshaling claim %s: %w", k, err)
			}
			normalize(&claim)
			fn(&claim)
			return nil
		})
	})
}

func putJSON(bucket *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	return bucket.Put([]byte(key), data)
}
