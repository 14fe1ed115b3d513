package exchange

import (
	"bytes"
	"encoding/json"
	"strings"
)

// LoginRequest is the body of POST /gov/auth/login.
type LoginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /gov/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Payload holds the credential fields. The backend has been seen to place
// them both at the root of the response and under "data".
type Payload struct {
	Token        string `json:"token,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Response is the body returned by login and refresh.
type Response struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Payload
	Data *Payload `json:"data,omitempty"`
}

// User is the principal record on the wire.
type User struct {
	ID     FlexString `json:"id"`
	UserID FlexString `json:"userId,omitempty"`
	Name   string     `json:"name,omitempty"`
	Role   string     `json:"role,omitempty"`
	Email  string     `json:"email,omitempty"`
}

// FlexString accepts a JSON string or number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

func (r *Response) data() Payload {
	if r.Data == nil {
		return Payload{}
	}
	return *r.Data
}

// accessToken applies the fixed lookup order: token, data.token,
// data.accessToken, accessToken.
func (r *Response) accessToken() string {
	d := r.data()
	for _, t := range []string{r.Token, d.Token, d.AccessToken, r.AccessToken} {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return ""
}

func (r *Response) refreshToken() string {
	d := r.data()
	for _, t := range []string{r.RefreshToken, d.RefreshToken} {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return ""
}

func (r *Response) user() *User {
	if r.User != nil && r.User.identity() != "" {
		return r.User
	}
	if d := r.data(); d.User != nil && d.User.identity() != "" {
		return d.User
	}
	return nil
}

func (u *User) identity() string {
	if id := u.ID.String(); id != "" {
		return id
	}
	return u.UserID.String()
}
