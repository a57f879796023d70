package jwks

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
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

const SigningKeyCollection = "signing_keys"

type ISigningKeyRepository interface {
	// EnsureSigningKey returns the active key, generating and persisting one
	// if none exists. Losing a concurrent first insert is not an error: the
	// loser re-reads the winner's key.
	EnsureSigningKey(ctx context.Context) (SigningKey, error)
	// FindActive returns the active key or database.ErrNotFound.
	FindActive(ctx context.Context) (SigningKey, error)
	FindByKID(ctx context.Context, kid string) (SigningKey, error)
}

type SigningKeyRepository struct {
	collection *mongo.Collection
	cache      database.IRedisClient
	cacheTTL   time.Duration
	dbTimeout  time.Duration
}

func NewSigningKeyRepository(db *database.Database, cache database.IRedisClient) ISigningKeyRepository {
	repo := &SigningKeyRepository{
		collection: db.GetCollection(SigningKeyCollection),
		cache:      cache,
		cacheTTL:   30 * time.Minute,
		dbTimeout:  15 * time.Second,
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "kid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_kid"),
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		panic("failed to create signing key indexes: " + err.Error())
	}

	return repo
}

// GenerateSigningKey mints a fresh 2048-bit RSA key: PKCS8 PEM private half,
// JWK-exported public half, random kid.
func GenerateSigningKey() (SigningKey, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return SigningKey{}, fmt.Errorf("rsa keygen: %w", err)
	}

	privateBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return SigningKey{}, err
	}
	privatePEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privateBytes,
	}))

	kid := uuid.NewString()
	jwkBytes, err := json.Marshal(RSAJWK(kid, &privateKey.PublicKey))
	if err != nil {
		return SigningKey{}, err
	}

	return SigningKey{
		ID:            singletonID,
		KID:           kid,
		Algorithm:     "RS256",
		PublicKeyJWK:  string(jwkBytes),
		PrivateKeyPEM: privatePEM,
		CreatedAt:     time.Now(),
	}, nil
}

func (r *SigningKeyRepository) EnsureSigningKey(c context.Context) (SigningKey, error) {
	key, err := r.FindActive(c)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return SigningKey{}, err
	}

	newKey, err := GenerateSigningKey()
	if err != nil {
		return SigningKey{}, err
	}

	start := time.Now()
	log := mlog.L(c)
	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	raw := query.GenerateInsertQuery(r.collection.Name(), bson.M{"_id": newKey.ID, "kid": newKey.KID})
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logaction.DB_REQUEST(logaction.DB_CREATE, raw), newKey, logger.MaskingRule{
		Field: "privateKey", Type: logger.MaskingTypeFull,
	})

	_, err = r.collection.InsertOne(ctx, newKey)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = newKey.KID
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logaction.DB_RESPONSE(logaction.DB_CREATE, "mongo response"), result)

	if err != nil {
		// another request won the insert race: its key is canonical
		if errors.Is(database.HandleMongoError(err), database.ErrDuplicate) {
			return r.FindActive(c)
		}
		return SigningKey{}, database.HandleMongoError(err)
	}

	return newKey, nil
}

func (r *SigningKeyRepository) FindActive(c context.Context) (SigningKey, error) {
	return r.findOne(c, "signing_key:active", bson.M{"_id": singletonID})
}

func (r *SigningKeyRepository) FindByKID(c context.Context, kid string) (SigningKey, error) {
	if kid == "" {
		return SigningKey{}, errors.New("kid is required")
	}
	return r.findOne(c, "signing_key:kid:"+kid, bson.M{"kid": kid})
}

func (r *SigningKeyRepository) findOne(c context.Context, cacheKey string, filter bson.M) (SigningKey, error) {
	if val, err := r.cache.Get(c, cacheKey); err == nil && val != "" {
		var key SigningKey
		if err := json.Unmarshal([]byte(val), &key); err == nil {
			return key, nil
		}
	}

	start := time.Now()
	log := mlog.L(c)
	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	raw := query.GenerateFindQuery(r.collection.Name(), filter)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logaction.DB_REQUEST(logaction.DB_READ, raw), filter)

	var key SigningKey
	err := r.collection.FindOne(ctx, filter).Decode(&key)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = key
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logaction.DB_RESPONSE(logaction.DB_READ, "mongo response"), result, logger.MaskingRule{
		Field: "data.privateKey", Type: logger.MaskingTypeFull,
	})

	if err != nil {
		return SigningKey{}, database.HandleMongoError(err)
	}

	r.cache.Set(c, cacheKey, key, r.cacheTTL)
	return key, nil
}
