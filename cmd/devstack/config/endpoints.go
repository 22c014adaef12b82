package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Endpoints are the base URLs the validation suite talks to. Each one
// can be overridden through a UNISON_* environment variable; the
// defaults match the local compose stack.
type Endpoints struct {
	AuthURL    string // UNISON_AUTH_URL
	APIURL     string // UNISON_API_URL
	GatewayURL string // UNISON_GATEWAY_URL
	AdminURL   string // UNISON_ADMIN_URL
}

// Credentials are the dev-stack test account and signing secret used by
// the validation suite. Never used outside local development.
type Credentials struct {
	Username   string // UNISON_TEST_USERNAME
	Password   string // UNISON_TEST_PASSWORD
	AuthSecret string // UNISON_JWT_SECRET
}

// devDefaultSecret is the secret the compose file ships with. The
// secret strength check is expected to flag it.
const devDefaultSecret = "dev-secret-key-change-in-production-256-bits-minimum"

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("UNISON")
	v.AutomaticEnv()
	return v
}

// ResolveEndpoints reads endpoint overrides from the environment,
// falling back to the local compose stack's ports.
func ResolveEndpoints() Endpoints {
	v := newEnv()
	v.SetDefault("auth_url", "http://localhost:8089")
	v.SetDefault("api_url", "http://localhost:8085")
	v.SetDefault("gateway_url", "http://localhost:8000")
	v.SetDefault("admin_url", "http://localhost:8001")

	return Endpoints{
		AuthURL:    v.GetString("auth_url"),
		APIURL:     v.GetString("api_url"),
		GatewayURL: v.GetString("gateway_url"),
		AdminURL:   v.GetString("admin_url"),
	}
}

// ResolveCredentials reads the test account and JWT secret from the
// environment, falling back to the compose stack defaults.
func ResolveCredentials() Credentials {
	v := newEnv()
	v.SetDefault("test_username", "testuser")
	v.SetDefault("test_password", "testpass")
	v.SetDefault("jwt_secret", devDefaultSecret)

	return Credentials{
		Username:   v.GetString("test_username"),
		Password:   v.GetString("test_password"),
		AuthSecret: v.GetString("jwt_secret"),
	}
}

// ServiceURL returns the readiness URL for a named service, honoring a
// UNISON_<NAME>_URL override. Hyphens in the service name map to
// underscores, so io-core reads UNISON_IO_CORE_URL.
func ServiceURL(name, fallback string) string {
	v := newEnv()
	key := fmt.Sprintf("%s_url", name)
	v.SetDefault(key, fallback)
	return v.GetString(key)
}
