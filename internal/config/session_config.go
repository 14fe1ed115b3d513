package config

import "time"

type Session struct {
	src *source
}

var _ SessionConfig = Session{}

func (s Session) GetRefreshInterval() time.Duration {
	return s.src.getDuration("REFRESH_INTERVAL", 30*time.Minute)
}

func (s Session) GetMinUserIDLength() int {
	return s.src.getInt("MIN_USER_ID_LENGTH", 3)
}

func (s Session) GetMinPasswordLength() int {
	return s.src.getInt("MIN_PASSWORD_LENGTH", 6)
}
