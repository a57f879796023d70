package authcode

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/crownlabs/academy-idp/internal/database"
	"github.com/crownlabs/academy-idp/pkg/logaction"
	"github.com/crownlabs/academy-idp/pkg/logger"
	"github.com/crownlabs/academy-idp/pkg/mlog"
	"github.com/crownlabs/academy-idp/pkg/query"
)

const AuthCodeCollection = "authorization_codes"

type IAuthCodeRepository interface {
	// Issue mints an opaque single-use code bound to params.
	Issue(ctx context.Context, params IssueParams) (AuthorizationCode, error)
	// Consume atomically removes and returns the record for code. A second
	// call with the same code, or a call with an expired or unknown code,
	// returns database.ErrNotFound.
	Consume(ctx context.Context, code string) (AuthorizationCode, error)
}

type AuthCodeRepository struct {
	collection *mongo.Collection
	dbTimeout  time.Duration
}

func NewAuthCodeRepository(db *database.Database) IAuthCodeRepository {
	repo := &AuthCodeRepository{
		collection: db.GetCollection(AuthCodeCollection),
		dbTimeout:  15 * time.Second,
	}

	// Mongo's TTL sweeper garbage-collects stale codes; correctness never
	// depends on it, Consume re-checks expiry itself.
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at"),
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		panic("failed to create auth code indexes: " + err.Error())
	}

	return repo
}

func (r *AuthCodeRepository) Issue(c context.Context, params IssueParams) (AuthorizationCode, error) {
	now := time.Now()
	record := AuthorizationCode{
		Code:                uuid.NewString(),
		ClientID:            params.ClientID,
		RedirectURI:         params.RedirectURI,
		UserID:              params.UserID,
		Scope:               params.Scope,
		State:               params.State,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: params.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(Lifetime),
	}

	start := time.Now()
	log := mlog.L(c)
	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	raw := query.GenerateInsertQuery(r.collection.Name(), bson.M{"client_id": record.ClientID, "user_id": record.UserID})
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logaction.DB_REQUEST(logaction.DB_CREATE, raw), record, logger.MaskingRule{
		Field: "code", Type: logger.MaskingTypePartial,
	})

	_, err := r.collection.InsertOne(ctx, record)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = record.ClientID
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logaction.DB_RESPONSE(logaction.DB_CREATE, "mongo response"), result)

	if err != nil {
		return AuthorizationCode{}, database.HandleMongoError(err)
	}
	return record, nil
}

func (r *AuthCodeRepository) Consume(c context.Context, code string) (AuthorizationCode, error) {
	if code == "" {
		return AuthorizationCode{}, database.ErrNotFound
	}

	start := time.Now()
	log := mlog.L(c)
	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	filter := bson.M{"_id": code}
	raw := query.GenerateFindOneAndDeleteQuery(r.collection.Name(), filter)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logaction.DB_REQUEST(logaction.DB_DELETE, raw), bson.M{"_id": "***"})

	var record AuthorizationCode
	err := r.collection.FindOneAndDelete(ctx, filter).Decode(&record)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = record.ClientID
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logaction.DB_RESPONSE(logaction.DB_DELETE, "mongo response"), result)

	if err != nil {
		return AuthorizationCode{}, database.HandleMongoError(err)
	}

	// the record is already deleted either way; an expired code looks the
	// same to the caller as one that never existed
	if record.Expired(time.Now()) {
		return AuthorizationCode{}, database.ErrNotFound
	}
	return record, nil
}
