package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const CollectionName = "users"

// userDocument is the BSON shape of a user record.
type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Username     string        `bson:"username"`
	Email        string        `bson:"email"`
	FullName     string        `bson:"fullName"`
	Avatar       string        `bson:"avatar"`
	CoverImage   string        `bson:"coverImage"`
	Password     string        `bson:"password,omitempty"`
	RefreshToken *string       `bson:"refreshToken,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		Avatar:       d.Avatar,
		CoverImage:   d.CoverImage,
		PasswordHash: d.Password,
		RefreshToken: d.RefreshToken,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func documentFromModel(u *models.User) *userDocument {
	return &userDocument{
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		Password:   u.PasswordHash,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// lookupFilter builds {$or: [{username}, {email}]} from the non-empty fields.
func lookupFilter(l Lookup) bson.M {
	or := bson.A{}
	if l.Username != "" {
		or = append(or, bson.M{"username": l.Username})
	}
	if l.Email != "" {
		or = append(or, bson.M{"email": l.Email})
	}
	return bson.M{"$or": or}
}

func projectionFor(p Projection) bson.D {
	if p == ProjectionPublic {
		return bson.D{{Key: "password", Value: 0}, {Key: "refreshToken", Value: 0}}
	}
	return nil
}

// refreshTokenUpdate sets the token, or unsets the field when token is nil.
func refreshTokenUpdate(token *string, now time.Time) bson.M {
	if token == nil {
		return bson.M{
			"$unset": bson.M{"refreshToken": ""},
			"$set":   bson.M{"updatedAt": now},
		}
	}
	return bson.M{"$set": bson.M{"refreshToken": *token, "updatedAt": now}}
}

type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName), now: time.Now}
}

// EnsureIndexes creates the unique indexes on username and email.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindOne(ctx context.Context, lookup Lookup) (*models.User, error) {
	if lookup.empty() {
		return nil, common.ErrorNotFound
	}

	var doc userDocument
	if err := r.coll.FindOne(ctx, lookupFilter(lookup)).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string, projection Projection) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}

	opts := options.FindOne()
	if p := projectionFor(projection); p != nil {
		opts.SetProjection(p)
	}

	var doc userDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := r.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	res, err := r.coll.InsertOne(ctx, documentFromModel(user))
	if err != nil {
		return nil, mapMongoError(err)
	}

	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return nil, fmt.Errorf("db error: unexpected inserted id %T", res.InsertedID)
	}
	user.ID = oid.Hex()
	return user, nil
}

func (r *MongoRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrorNotFound
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, refreshTokenUpdate(token, r.now().UTC()))
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// SwapRefreshToken replaces the token only if the stored value still equals
// expected; the filter and the update run as one atomic document operation.
func (r *MongoRepository) SwapRefreshToken(ctx context.Context, id string, expected, next string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrorNotFound
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "refreshToken": expected},
		refreshTokenUpdate(&next, r.now().UTC()))
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return mapMongoError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return common.ErrorConflict
}

func mapMongoError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return common.ErrorNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return common.ErrorConflict
	}
	return fmt.Errorf("db error: %w", err)
}
