package jwks

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"time"
)

// singletonID is the fixed _id of the one signing-key document. The unique
// primary key makes concurrent first-boot inserts collide instead of leaving
// two live keys behind.
const singletonID = "active-signing-key"

type SigningKey struct {
	ID            string    `bson:"_id" json:"-"`
	KID           string    `bson:"kid" json:"kid"`
	Algorithm     string    `bson:"algorithm" json:"algorithm"`
	PublicKeyJWK  string    `bson:"publicKeyJwk" json:"publicKeyJwk"`
	PrivateKeyPEM string    `bson:"privateKey" json:"privateKey"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
}

type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

func b64(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func RSAJWK(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   b64(pub.N.Bytes()),
		E:   b64(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// PublicKey rebuilds the rsa.PublicKey from the JWK's modulus and exponent.
func (j JWK) PublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// JWK parses the stored public-key JWK document.
func (k SigningKey) JWK() (JWK, error) {
	var jwk JWK
	if err := json.Unmarshal([]byte(k.PublicKeyJWK), &jwk); err != nil {
		return JWK{}, err
	}
	jwk.Kid = k.KID
	return jwk, nil
}
