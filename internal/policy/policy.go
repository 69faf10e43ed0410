// Package policy resolves policy numbers to the policy holder and insured
// vehicle. Records come from PostgreSQL with a Redis cache in front.
package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "policy:"
	defaultCacheTTL = 5 * time.Minute

	lookupQuery = `SELECT policy_number, customer_name, customer_email, customer_phone,
		vehicle_make, vehicle_model, vehicle_year, vehicle_vin, vehicle_plate, active
		FROM policies WHERE policy_number = $1`
)

// Normalize trims and upper-cases a policy number.
func Normalize(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}

func notFound(number string) error {
	return apperrors.NewValidationFailedError("policyNumber", "no active policy found for "+number)
}

type Store struct {
	db     *sql.DB
	cache  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewStore builds a lookup over the policies table. cache may be nil.
func NewStore(db *sql.DB, cache *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Store{
		db:     db,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "policy-lookup"}),
	}
}

// LookupPolicy returns the active policy for number. Unknown and inactive
// policies are validation failures; database errors are retryable.
func (s *Store) LookupPolicy(ctx context.Context, number string) (*models.PolicyRecord, error) {
	number = Normalize(number)
	if number == "" {
		return nil, apperrors.NewValidationFailedError("policyNumber", "policy number is required")
	}

	if rec, ok := s.cached(ctx, number); ok {
		return rec, nil
	}

	var rec models.PolicyRecord
	err := s.db.QueryRowContext(ctx, lookupQuery, number).Scan(
		&rec.PolicyNumber, &rec.CustomerName, &rec.CustomerEmail, &rec.CustomerPhone,
		&rec.Vehicle.Make, &rec.Vehicle.Model, &rec.Vehicle.Year, &rec.Vehicle.VIN, &rec.Vehicle.LicensePlate,
		&rec.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(number)
		}
		return nil, apperrors.NewDependencyUnavailableError("postgres", err)
	}
	if !rec.Active {
		return nil, notFound(number)
	}

	s.store(ctx, &rec)
	return &rec, nil
}

func (s *Store) cached(ctx context.Context, number string) (*models.PolicyRecord, bool) {
	if s.cache == nil {
		return nil, false
	}
	val, err := s.cache.Get(ctx, cacheKeyPrefix+number).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Debug("policy cache read failed", map[string]interface{}{
				"policyNumber": number,
				"error":        err.Error(),
			})
		}
		return nil, false
	}
	var rec models.PolicyRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (s *Store) store(ctx context.Context, rec *models.PolicyRecord) {
	if s.cache == nil {
		return
	}
	data, _ := json.Marshal(rec)
	if err := s.cache.Set(ctx, cacheKeyPrefix+rec.PolicyNumber, data, s.ttl).Err(); err != nil {
		s.logger.Debug("policy cache write failed", map[string]interface{}{
			"policyNumber": rec.PolicyNumber,
			"error":        err.Error(),
		})
	}
}
