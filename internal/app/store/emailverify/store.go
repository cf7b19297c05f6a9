// internal/app/store/emailverify/store.go
package emailverify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the length of the verification code (6 digits).
	CodeLength = 6
	// DefaultExpiry is how long a verification code is valid.
	DefaultExpiry = 10 * time.Minute
	// BcryptCost for hashing codes.
	BcryptCost = 10
	// MaxVerifyAttempts is the maximum number of code checks per issued code.
	MaxVerifyAttempts = 5
	// MaxResends is the maximum number of resends within ResendWindow.
	MaxResends = 3
	// ResendWindow is the time window for tracking resends.
	ResendWindow = 10 * time.Minute
)

var (
	// ErrNotFound is returned when no live code exists for the account.
	ErrNotFound = errors.New("verification not found or expired")
	// ErrInvalidCode is returned when the code doesn't match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrTooManyAttempts is returned once MaxVerifyAttempts checks were made.
	ErrTooManyAttempts = errors.New("too many verification attempts")
	// ErrTooManyResends is returned when MaxResends is reached inside the window.
	ErrTooManyResends = errors.New("too many resend requests")
)

// Verification is a pending email confirmation for an inactive account.
// Only a bcrypt hash of the code is stored.
type Verification struct {
	ID          primitive.ObjectID `bson:"_id"`
	AccountID   primitive.ObjectID `bson:"account_id"`
	Email       string             `bson:"email"`
	CodeHash    string             `bson:"code_hash"`
	ExpiresAt   time.Time          `bson:"expires_at"` // TTL index field
	CreatedAt   time.Time          `bson:"created_at"`
	Attempts    int                `bson:"attempts"`
	ResendCount int                `bson:"resend_count"`
	WindowStart time.Time          `bson:"window_start"`
}

// Store manages email verification records.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
	now    func() time.Time
}

// New creates a new Store with the specified expiry duration.
// If expiry is 0 or negative, DefaultExpiry (10 minutes) is used.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{
		c:      db.Collection("email_verifications"),
		expiry: expiry,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests use it to move past expiry.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Expiry returns the expiry duration for verification codes.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}

// CreateResult carries the plain code to email.
type CreateResult struct {
	Code        string
	ExpiresAt   time.Time
	ResendCount int
}

// Create issues a fresh code for accountID, replacing any previous one.
// When isResend is true the request counts against the resend limit.
func (s *Store) Create(ctx context.Context, accountID primitive.ObjectID, email string, isResend bool) (*CreateResult, error) {
	now := s.now()

	var existing Verification
	err := s.c.FindOne(ctx, bson.M{"account_id": accountID}).Decode(&existing)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	found := err == nil
	inWindow := found && now.Before(existing.WindowStart.Add(ResendWindow))

	if isResend && inWindow && existing.ResendCount >= MaxResends {
		return nil, ErrTooManyResends
	}

	resendCount := 0
	windowStart := now
	if inWindow {
		windowStart = existing.WindowStart
		resendCount = existing.ResendCount
		if isResend {
			resendCount++
		}
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}

	if _, err := s.c.DeleteMany(ctx, bson.M{"account_id": accountID}); err != nil {
		return nil, fmt.Errorf("clear verification: %w", err)
	}

	v := Verification{
		ID:          primitive.NewObjectID(),
		AccountID:   accountID,
		Email:       email,
		CodeHash:    string(hash),
		ExpiresAt:   now.Add(s.expiry),
		CreatedAt:   now,
		ResendCount: resendCount,
		WindowStart: windowStart,
	}
	if _, err := s.c.InsertOne(ctx, v); err != nil {
		return nil, fmt.Errorf("insert verification: %w", err)
	}

	return &CreateResult{Code: code, ExpiresAt: v.ExpiresAt, ResendCount: resendCount}, nil
}

// Pending returns the live verification for accountID, if any.
func (s *Store) Pending(ctx context.Context, accountID primitive.ObjectID) (*Verification, error) {
	var v Verification
	err := s.c.FindOne(ctx, bson.M{
		"account_id": accountID,
		"expires_at": bson.M{"$gt": s.now()},
	}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// VerifyCode checks code for accountID. Every check counts as an attempt.
// On success the record is deleted, so a code works exactly once.
func (s *Store) VerifyCode(ctx context.Context, accountID primitive.ObjectID, code string) (*Verification, error) {
	v, err := s.Pending(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if v.Attempts >= MaxVerifyAttempts {
		return nil, ErrTooManyAttempts
	}

	if _, err := s.c.UpdateByID(ctx, v.ID, bson.M{"$inc": bson.M{"attempts": 1}}); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(code)); err != nil {
		return nil, ErrInvalidCode
	}

	// Only the request that actually removes the record wins.
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": v.ID})
	if err != nil {
		return nil, err
	}
	if res.DeletedCount == 0 {
		return nil, ErrNotFound
	}
	return v, nil
}

// DeleteByAccount deletes all verification records for an account.
func (s *Store) DeleteByAccount(ctx context.Context, accountID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"account_id": accountID})
	return err
}

// generateCode returns a uniformly random code in 100000..999999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
