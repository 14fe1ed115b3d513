package config

type Routes struct {
	src *source
}

var _ RouteConfig = Routes{}

func (r Routes) GetSignInPath() string {
	return r.src.get("SIGN_IN_PATH", "/login")
}

func (r Routes) GetLandingPath() string {
	return r.src.get("LANDING_PATH", "/dashboard")
}
