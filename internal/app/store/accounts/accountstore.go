// internal/app/store/accounts/accountstore.go
package accountstore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/app/system/normalize"
	"github.com/dalemusser/ekomurojaat/internal/app/system/txn"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	db *mongo.Database
	c  *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{db: db, c: db.Collection("accounts")}
}

var (
	// ErrDuplicateUsername is returned when the folded username is already taken.
	ErrDuplicateUsername = errors.New("a user with this username already exists")
	// ErrBadCredentials covers unknown usernames and wrong passwords alike.
	ErrBadCredentials = errors.New("wrong login or password")
	// ErrInactive is returned by Authenticate for accounts that never verified their email.
	ErrInactive = errors.New("account is not active")
	// ErrAlreadyActive is returned by Activate when the account was already activated.
	ErrAlreadyActive = errors.New("account already active")

	errBadRole   = errors.New(`role must be "citizen"|"moderator"|"admin"`)
	errOrgNeeded = errors.New("moderator must have organization_id")
)

// BcryptCost is the work factor for account passwords.
var BcryptCost = bcrypt.DefaultCost

// HashPassword returns the bcrypt hash stored in PasswordHash.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Create normalizes and inserts an account. The plain password is hashed;
// a moderator must carry an organization and any other role drops it.
func (s *Store) Create(ctx context.Context, a models.Account, password string) (models.Account, error) {
	a.ID = primitive.NewObjectID()
	a.Username = normalize.Username(a.Username)
	a.UsernameCI = normalize.UsernameKey(a.Username)
	a.Email = normalize.Email(a.Email)
	a.FirstName = normalize.Name(a.FirstName)
	a.LastName = normalize.Name(a.LastName)
	a.Phone = normalize.Phone(a.Phone)
	a.Role = normalize.Role(a.Role)
	if a.Role == "" {
		a.Role = models.RoleCitizen
	}
	if !models.ValidRole(a.Role) {
		return models.Account{}, errBadRole
	}
	if a.Role == models.RoleModerator && a.OrganizationID == nil {
		return models.Account{}, errOrgNeeded
	}
	if a.Role != models.RoleModerator {
		a.OrganizationID = nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return models.Account{}, err
	}
	a.PasswordHash = hash

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Account{}, ErrDuplicateUsername
		}
		return models.Account{}, err
	}
	return a, nil
}

// GetByID loads an account by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var a models.Account
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByUsername looks up an account by folded username. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var a models.Account
	if err := s.c.FindOne(ctx, bson.M{"username_ci": normalize.UsernameKey(username)}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Authenticate checks a username/password pair. Unknown usernames still pay
// for a bcrypt comparison so timing does not reveal which accounts exist.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	a, err := s.GetByUsername(ctx, username)
	if err == mongo.ErrNoDocuments {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	if !a.IsActive {
		return a, ErrInactive
	}
	return a, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

// Activate flips an inactive account to active. It succeeds at most once per
// account; later calls return ErrAlreadyActive.
func (s *Store) Activate(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "is_active": false},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := s.c.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return mongo.ErrNoDocuments
		}
		return ErrAlreadyActive
	}
	return nil
}

// TouchLogin records a successful sign-in.
func (s *Store) TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_login_at": at.UTC()}})
	return err
}

// Update holds the admin-editable fields of an account.
type Update struct {
	Username       string
	Email          string
	FirstName      string
	LastName       string
	Phone          string
	Role           string
	OrganizationID *primitive.ObjectID
	IsActive       bool
	// Password is applied only when non-empty.
	Password string
}

// Update rewrites an account's editable fields.
// Returns ErrDuplicateUsername if the username belongs to another account.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) error {
	role := normalize.Role(upd.Role)
	if !models.ValidRole(role) {
		return errBadRole
	}
	if role == models.RoleModerator && upd.OrganizationID == nil {
		return errOrgNeeded
	}

	username := normalize.Username(upd.Username)
	set := bson.M{
		"username":    username,
		"username_ci": normalize.UsernameKey(username),
		"email":       normalize.Email(upd.Email),
		"first_name":  normalize.Name(upd.FirstName),
		"last_name":   normalize.Name(upd.LastName),
		"phone":       normalize.Phone(upd.Phone),
		"role":        role,
		"is_active":   upd.IsActive,
		"updated_at":  time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if role == models.RoleModerator {
		set["organization_id"] = *upd.OrganizationID
	} else {
		update["$unset"] = bson.M{"organization_id": ""}
	}
	if upd.Password != "" {
		hash, err := HashPassword(upd.Password)
		if err != nil {
			return err
		}
		set["password_hash"] = hash
	}

	res, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateUsername
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetPassword replaces the password hash.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	}})
	return err
}

// UsernameExistsForOther checks if a username is taken by an account other than excludeID.
func (s *Store) UsernameExistsForOther(ctx context.Context, username string, excludeID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"username_ci": normalize.UsernameKey(username),
		"_id":         bson.M{"$ne": excludeID},
	}).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}

// Deleted reports what an account deletion removed.
type Deleted struct {
	Accounts   int64
	Complaints int64
	// ImagePaths are the media files of the removed complaints; the caller
	// deletes them from storage after the records are gone.
	ImagePaths []string
}

// Delete removes an account together with its complaints, their image
// records and any pending email verification.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (Deleted, error) {
	var out Deleted
	err := txn.Run(ctx, s.db, nil, func(ctx context.Context) error {
		out = Deleted{}
		complaints := s.db.Collection("complaints")
		images := s.db.Collection("complaint_images")

		cids, err := idsWhere(ctx, complaints, bson.M{"owner_id": id})
		if err != nil {
			return err
		}
		if len(cids) > 0 {
			cur, err := images.Find(ctx, bson.M{"complaint_id": bson.M{"$in": cids}},
				options.Find().SetProjection(bson.M{"path": 1}))
			if err != nil {
				return err
			}
			var imgs []models.ComplaintImage
			if err := cur.All(ctx, &imgs); err != nil {
				return err
			}
			for _, img := range imgs {
				out.ImagePaths = append(out.ImagePaths, img.Path)
			}
			if _, err := images.DeleteMany(ctx, bson.M{"complaint_id": bson.M{"$in": cids}}); err != nil {
				return err
			}
			res, err := complaints.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": cids}})
			if err != nil {
				return err
			}
			out.Complaints = res.DeletedCount
		}
		if _, err := s.db.Collection("email_verifications").DeleteMany(ctx, bson.M{"account_id": id}); err != nil {
			return err
		}
		res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		out.Accounts = res.DeletedCount
		return nil
	})
	return out, err
}

func idsWhere(ctx context.Context, c *mongo.Collection, filter bson.M) ([]primitive.ObjectID, error) {
	cur, err := c.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// Find returns accounts matching filter.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Account, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Account
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewestFirst orders account listings by creation time, newest first.
func NewestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
}

// Count returns the number of accounts matching filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// CountByRole returns account counts keyed by role.
func (s *Store) CountByRole(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$role", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			Role string `bson:"_id"`
			N    int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Role] = row.N
	}
	return out, cur.Err()
}

// SearchFilter matches username, name or email by case-insensitive prefix.
func SearchFilter(q string) bson.M {
	q = text.Fold(q)
	if q == "" {
		return bson.M{}
	}
	re := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(q), Options: "i"}
	return bson.M{"$or": []bson.M{
		{"username_ci": re},
		{"email": re},
		{"first_name": re},
		{"last_name": re},
	}}
}
