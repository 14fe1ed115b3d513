package config

import (
	"fmt"
	"time"
)

type DevServer struct {
	src *source
}

var _ DevServerConfig = DevServer{}

func (d DevServer) GetPort() string {
	port := d.src.get("PORT", "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (d DevServer) GetTokenSecret() string {
	return d.src.get("DEV_TOKEN_SECRET", "dev-secret-change-me")
}

func (d DevServer) GetAccessTokenExpiry() time.Duration {
	return d.src.getDuration("DEV_ACCESS_TOKEN_EXPIRY", 1*time.Hour)
}

func (d DevServer) GetRefreshTokenExpiry() time.Duration {
	return d.src.getDuration("DEV_REFRESH_TOKEN_EXPIRY", 7*24*time.Hour) // 7 days
}
