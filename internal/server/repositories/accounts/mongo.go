package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is the MongoDB collection holding accounts.
const CollectionName = "users"

// accountDocument is the stored shape. Secret fields hold digests.
type accountDocument struct {
	ID                string     `bson:"_id"`
	Name              string     `bson:"name"`
	Email             string     `bson:"email"`
	Password          string     `bson:"password"`
	Role              string     `bson:"role"`
	IsVerified        bool       `bson:"isVerified"`
	VerificationToken *string    `bson:"verificationToken"`
	ResetToken        *string    `bson:"passwordResetToken"`
	ResetExpires      *time.Time `bson:"passwordResetExpires"`
	MfaCode           *string    `bson:"mfaCode"`
	MfaCodeExpires    *time.Time `bson:"mfaCodeExpires"`
	CreatedAt         time.Time  `bson:"createdAt"`
	UpdatedAt         time.Time  `bson:"updatedAt"`
	Version           int64      `bson:"version"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toDocument(a *models.Account) accountDocument {
	return accountDocument{
		ID:                a.ID,
		Name:              a.Name,
		Email:             a.Email,
		Password:          a.PasswordHash,
		Role:              string(a.Role),
		IsVerified:        a.IsVerified,
		VerificationToken: optString(a.VerificationTokenDigest),
		ResetToken:        optString(a.PasswordResetDigest),
		ResetExpires:      a.PasswordResetExpires,
		MfaCode:           optString(a.MfaCodeDigest),
		MfaCodeExpires:    a.MfaCodeExpires,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
		Version:           a.Version,
	}
}

func (d *accountDocument) toModel() (*models.Account, error) {
	role, err := models.ParseRole(d.Role)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", d.ID, err)
	}
	return &models.Account{
		ID:                      d.ID,
		Name:                    d.Name,
		Email:                   d.Email,
		PasswordHash:            d.Password,
		Role:                    role,
		IsVerified:              d.IsVerified,
		VerificationTokenDigest: derefString(d.VerificationToken),
		PasswordResetDigest:     derefString(d.ResetToken),
		PasswordResetExpires:    d.ResetExpires,
		MfaCodeDigest:           derefString(d.MfaCode),
		MfaCodeExpires:          d.MfaCodeExpires,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
		Version:                 d.Version,
	}, nil
}

// MongoRepository stores one document per account. Email uniqueness comes
// from a unique index; updates are a single FindOneAndUpdate filtered on
// the expected version.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		coll: db.Collection(CollectionName),
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes creates the unique email index and the token lookup indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "verificationToken", Value: 1}},
			Options: options.Index().SetName("verification_token"),
		},
		{
			Keys:    bson.D{{Key: "passwordResetToken", Value: 1}},
			Options: options.Index().SetName("password_reset_token"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.D) (*models.Account, error) {
	var doc accountDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return doc.toModel()
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *MongoRepository) FindByVerificationToken(ctx context.Context, digest string) (*models.Account, error) {
	if digest == "" {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "verificationToken", Value: digest}})
}

func (r *MongoRepository) FindByResetToken(ctx context.Context, digest string) (*models.Account, error) {
	if digest == "" {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "passwordResetToken", Value: digest}})
}

func (r *MongoRepository) Insert(ctx context.Context, a *models.Account) error {
	if err := checkRole(a.Role); err != nil {
		return err
	}

	now := r.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 1

	if _, err := r.coll.InsertOne(ctx, toDocument(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

// updateSet lists the mutable fields; identity and creation time are fixed.
func updateSet(d accountDocument) bson.D {
	return bson.D{
		{Key: "name", Value: d.Name},
		{Key: "email", Value: d.Email},
		{Key: "password", Value: d.Password},
		{Key: "role", Value: d.Role},
		{Key: "isVerified", Value: d.IsVerified},
		{Key: "verificationToken", Value: d.VerificationToken},
		{Key: "passwordResetToken", Value: d.ResetToken},
		{Key: "passwordResetExpires", Value: d.ResetExpires},
		{Key: "mfaCode", Value: d.MfaCode},
		{Key: "mfaCodeExpires", Value: d.MfaCodeExpires},
		{Key: "updatedAt", Value: d.UpdatedAt},
	}
}

func (r *MongoRepository) Update(ctx context.Context, a *models.Account) error {
	if err := checkRole(a.Role); err != nil {
		return err
	}

	next := a.Clone()
	next.UpdatedAt = r.now()

	filter := bson.D{{Key: "_id", Value: a.ID}, {Key: "version", Value: a.Version}}
	update := bson.D{
		{Key: "$set", Value: updateSet(toDocument(next))},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}

	var doc accountDocument
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrorConflict
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("mongo error: %w", err)
		}
		n, cerr := r.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: a.ID}})
		if cerr != nil {
			return fmt.Errorf("mongo error: %w", cerr)
		}
		if n == 0 {
			return common.ErrorNotFound
		}
		return common.ErrVersionConflict
	}

	a.UpdatedAt = doc.UpdatedAt
	a.Version = doc.Version
	return nil
}

func (r *MongoRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.DeletedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *MongoRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	defer cur.Close(ctx)

	var docs []accountDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}

	out := make([]*models.Account, 0, len(docs))
	for i := range docs {
		a, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
