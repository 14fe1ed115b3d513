package exchange

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/gov-console/internal/utils"
	"github.com/jrsteele09/gov-console/session"
)

// tokenClaims reads the user and issue time carried by a JWT access token.
// The signature is not checked: the console never trusts these claims for
// authorization, it only uses them to label the session when the response
// omits a user record.
func tokenClaims(token string) (user session.User, issuedAt time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return session.User{}, time.Time{}, false
	}

	str := func(key string) string {
		v, _ := claims[key].(string)
		return v
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		issuedAt = iat.Time
	}

	sub, _ := claims.GetSubject()
	role := str("role")
	if role == "" {
		if roles, isSlice := claims["roles"].([]any); isSlice {
			if names := utils.ToStringSlice(roles); len(names) > 0 {
				role = names[0]
			}
		}
	}

	user = session.User{
		ID:          utils.FirstNonEmpty(sub, str("userId")),
		LoginID:     str("userId"),
		DisplayName: utils.FirstNonEmpty(str("name"), str("userId"), sub),
		Role:        role,
		Email:       str("email"),
	}
	if user.ID == "" {
		return session.User{}, issuedAt, false
	}
	return user, issuedAt, true
}
