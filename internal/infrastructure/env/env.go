package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"zenix/internal/application/port/output"
)

var _ output.ConfigPort = (*EnvService)(nil)

// EnvService reads settings from the process environment after loading
// .env and .env.<APP_ENV> from dir.
type EnvService struct {
	AppEnv string
	Loaded []string
}

func NewEnvService(dir string) *EnvService {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	preset := make(map[string]bool)
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok {
			preset[k] = true
		}
	}

	s := &EnvService{AppEnv: appEnv}
	base := filepath.Join(dir, ".env")
	if err := godotenv.Load(base); err == nil {
		s.Loaded = append(s.Loaded, base)
	}
	// .env.<APP_ENV> wins over .env; the real environment wins over both
	overlay := filepath.Join(dir, fmt.Sprintf(".env.%s", appEnv))
	if vals, err := godotenv.Read(overlay); err == nil {
		for k, v := range vals {
			if !preset[k] {
				_ = os.Setenv(k, v)
			}
		}
		s.Loaded = append(s.Loaded, overlay)
	}
	return s
}

func (e *EnvService) Get(key string) string {
	return os.Getenv(key)
}

func (e *EnvService) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}
