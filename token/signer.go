package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs access tokens and supplies the key to verify them.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)

	// GetVerificationKey is a jwt.Keyfunc.
	GetVerificationKey(token *jwt.Token) (any, error)

	GetSigningMethod() jwt.SigningMethod
}

// HMACsigner signs with a shared HS256 secret. The dev backend is the only
// party that ever verifies its tokens.
type HMACsigner struct {
	secret []byte
}

var _ Signer = (*HMACsigner)(nil)

func NewHMACSigner(secret string) *HMACsigner {
	return &HMACsigner{secret: []byte(secret)}
}

func (h *HMACsigner) Sign(claims jwt.MapClaims) (string, error) {
	if len(h.secret) == 0 {
		return "", errors.New("[HMACsigner.Sign] secret is required")
	}
	signed, err := jwt.NewWithClaims(h.GetSigningMethod(), claims).SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "[HMACsigner.Sign] SignedString")
	}
	return signed, nil
}

func (h *HMACsigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

func (h *HMACsigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
