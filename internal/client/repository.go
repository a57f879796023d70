package client

import (
	"context"
	"encoding/json"
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
)

const ClientCollection = "oauth_clients"

type IClientRepository interface {
	// UpsertClient inserts or replaces the registration keyed by client_id
	// and returns the stored record.
	UpsertClient(ctx context.Context, c Client) (Client, error)
	// FindClientByID returns the registration or database.ErrNotFound.
	FindClientByID(ctx context.Context, clientID string) (Client, error)
}

type ClientRepository struct {
	collection *mongo.Collection
	cache      database.IRedisClient
	cacheTTL   time.Duration
	dbTimeout  time.Duration
}

func NewClientRepository(db *database.Database, cache database.IRedisClient) IClientRepository {
	repo := &ClientRepository{
		collection: db.GetCollection(ClientCollection),
		cache:      cache,
		cacheTTL:   10 * time.Minute,
		dbTimeout:  15 * time.Second,
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_client_id"),
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		panic("failed to create client indexes: " + err.Error())
	}

	return repo
}

func cacheKeyClient(clientID string) string {
	return "oauth_client:" + clientID
}

func (r *ClientRepository) UpsertClient(c context.Context, cl Client) (Client, error) {
	now := time.Now()
	cl.UpdatedAt = now

	filter := bson.M{"client_id": cl.ClientID}
	update := bson.M{
		"$set": bson.M{
			"client_secret": cl.ClientSecret,
			"name":          cl.Name,
			"redirect_uris": cl.RedirectURIs,
			"grant_types":   cl.GrantTypes,
			"updated_at":    cl.UpdatedAt,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}

	start := time.Now()
	log := mlog.L(c)
	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	raw := query.GenerateUpdateQuery(r.collection.Name(), filter, update)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logaction.DB_REQUEST(logaction.DB_UPDATE, raw), cl, logger.MaskingRule{
		Field: "clientSecret", Type: logger.MaskingTypeFull,
	})

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored Client
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = stored.ClientID
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logaction.DB_RESPONSE(logaction.DB_UPDATE, "mongo response"), result)

	if err != nil {
		return Client{}, database.HandleMongoError(err)
	}

	// the cached copy is now stale
	r.cache.Del(c, cacheKeyClient(stored.ClientID))

	return stored, nil
}

func (r *ClientRepository) FindClientByID(c context.Context, clientID string) (Client, error) {
	if clientID == "" {
		return Client{}, errors.New("clientID is required")
	}

	cacheKey := cacheKeyClient(clientID)
	if val, err := r.cache.Get(c, cacheKey); err == nil && val != "" {
		var cl Client
		if err := json.Unmarshal([]byte(val), &cl); err == nil {
			return cl, nil
		}
	}

	start := time.Now()
	log := mlog.L(c)
	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	filter := bson.M{"client_id": clientID}
	raw := query.GenerateFindQuery(r.collection.Name(), filter)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logaction.DB_REQUEST(logaction.DB_READ, raw), filter)

	var cl Client
	err := r.collection.FindOne(ctx, filter).Decode(&cl)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = cl
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logaction.DB_RESPONSE(logaction.DB_READ, "mongo response"), result, logger.MaskingRule{
		Field: "data.clientSecret", Type: logger.MaskingTypeFull,
	})

	if err != nil {
		return Client{}, database.HandleMongoError(err)
	}

	r.cache.Set(c, cacheKey, cl, r.cacheTTL)
	return cl, nil
}
