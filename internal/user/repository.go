package user

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/crownlabs/academy-idp/internal/database"
	"github.com/crownlabs/academy-idp/pkg/logaction"
	"github.com/crownlabs/academy-idp/pkg/logger"
	"github.com/crownlabs/academy-idp/pkg/mlog"
	"github.com/crownlabs/academy-idp/pkg/query"
	"github.com/crownlabs/academy-idp/pkg/validate"
)

const UserCollection = "users"

type IUserRepository interface {
	// FindUserByID returns the profile without its password hash.
	FindUserByID(ctx context.Context, userID string) (Profile, error)
	// FindUserByUsername resolves either a username or an email address and
	// keeps the password hash for the login check.
	FindUserByUsername(ctx context.Context, username string) (Profile, error)
}

type UserRepository struct {
	collection *mongo.Collection
	dbTimeout  time.Duration
}

func NewUserRepository(db *database.Database) IUserRepository {
	return &UserRepository{
		collection: db.GetCollection(UserCollection),
		dbTimeout:  15 * time.Second,
	}
}

func (r *UserRepository) FindUserByID(c context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, errors.New("userID is required")
	}
	opts := options.FindOne().SetProjection(bson.M{"password": 0})
	return r.findOne(c, bson.M{"_id": userID}, opts)
}

func (r *UserRepository) FindUserByUsername(c context.Context, username string) (Profile, error) {
	if username == "" {
		return Profile{}, errors.New("username is required")
	}
	filter := bson.M{"username": username}
	if validate.IsEmail(username) {
		filter = bson.M{"email": username}
	}
	return r.findOne(c, filter, options.FindOne())
}

func (r *UserRepository) findOne(c context.Context, filter bson.M, opts *options.FindOneOptions) (Profile, error) {
	start := time.Now()
	log := mlog.L(c)
	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	raw := query.GenerateFindQuery(r.collection.Name(), filter)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logaction.DB_REQUEST(logaction.DB_READ, raw), filter)

	var profile Profile
	err := r.collection.FindOne(ctx, filter, opts).Decode(&profile)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = profile
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logaction.DB_RESPONSE(logaction.DB_READ, "mongo response"), result, logger.MaskingRule{
		Field: "data.email", Type: logger.MaskingTypeEmail,
	})

	if err != nil {
		return Profile{}, database.HandleMongoError(err)
	}
	return profile, nil
}
