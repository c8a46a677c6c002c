package discovery

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/avrouter/internal/config"
	"github.com/vyrodovalexey/avrouter/internal/pipeline"
	"github.com/vyrodovalexey/avrouter/internal/ratelimit"
	"github.com/vyrodovalexey/avrouter/internal/util"
)

// Rate limit key scopes accepted in route files.
const (
	PerGlobal = "global"
	PerIP     = "ip"
	PerKey    = "key"
)

// Key expression prefixes for rateLimitKey.
const (
	keyExprHeader = "header:"
	keyExprCookie = "cookie:"
)

// MethodConfig carries the per-verb decorator settings declared in a
// route file. The zero value means no decorators beyond logging.
type MethodConfig struct {
	// RateLimit is a "<count>/<period>" spec, e.g. "100/min".
	RateLimit string `yaml:"rateLimit"`

	// RateLimitPer scopes the counter key: global, ip, or key.
	// Empty defaults to global.
	RateLimitPer string `yaml:"rateLimitPer"`

	// RateLimitKey names the client key source when RateLimitPer is
	// "key": "header:<Name>" or "cookie:<name>".
	RateLimitKey string `yaml:"rateLimitKey"`

	CacheTTL  config.Duration `yaml:"cacheTTL"`
	Timeout   config.Duration `yaml:"timeout"`
	AuthRoles []string        `yaml:"authRoles"`
	Auth      bool            `yaml:"auth"`

	limit ratelimit.Limit
}

// Limit returns the parsed rate limit. Zero when the method declares
// none.
func (mc MethodConfig) Limit() ratelimit.Limit {
	return mc.limit
}

// KeyFunc returns the client key function matching RateLimitPer and
// RateLimitKey. Only valid after the config has been validated.
func (mc MethodConfig) KeyFunc() pipeline.KeyFunc {
	switch mc.RateLimitPer {
	case PerIP:
		return pipeline.ClientIPKey()
	case PerKey:
		if name, ok := strings.CutPrefix(mc.RateLimitKey, keyExprHeader); ok {
			return pipeline.HeaderKey(name)
		}
		if name, ok := strings.CutPrefix(mc.RateLimitKey, keyExprCookie); ok {
			return pipeline.CookieKey(name)
		}
	}
	return pipeline.GlobalKey()
}

// validate parses the rate limit spec and rejects contradictory key
// settings. All failures here are registration-time failures.
func (mc *MethodConfig) validate(verb string) error {
	field := func(name string) string {
		return fmt.Sprintf("methods.%s.%s", verb, name)
	}

	if mc.RateLimit != "" {
		limit, err := ratelimit.ParseLimit(mc.RateLimit)
		if err != nil {
			return err
		}
		mc.limit = limit
	}

	switch mc.RateLimitPer {
	case "", PerGlobal, PerIP, PerKey:
	default:
		return util.NewMisconfigurationError("route", field("rateLimitPer"),
			fmt.Sprintf("unknown scope %q (want global, ip, or key)", mc.RateLimitPer))
	}

	if mc.RateLimitPer != "" && mc.RateLimit == "" {
		return util.NewMisconfigurationError("route", field("rateLimitPer"),
			"rateLimitPer requires rateLimit")
	}

	if mc.RateLimitPer == PerKey {
		if mc.RateLimitKey == "" {
			return util.NewMisconfigurationError("route", field("rateLimitKey"),
				"rateLimitPer: key requires rateLimitKey")
		}
		name := strings.TrimPrefix(mc.RateLimitKey, keyExprHeader)
		if name == mc.RateLimitKey {
			name = strings.TrimPrefix(mc.RateLimitKey, keyExprCookie)
		}
		if name == mc.RateLimitKey || name == "" {
			return util.NewMisconfigurationError("route", field("rateLimitKey"),
				fmt.Sprintf("invalid key expression %q (want header:<Name> or cookie:<name>)", mc.RateLimitKey))
		}
	} else if mc.RateLimitKey != "" {
		return util.NewMisconfigurationError("route", field("rateLimitKey"),
			"rateLimitKey requires rateLimitPer: key")
	}

	if mc.CacheTTL < 0 {
		return util.NewMisconfigurationError("route", field("cacheTTL"), "must not be negative")
	}
	if mc.Timeout < 0 {
		return util.NewMisconfigurationError("route", field("timeout"), "must not be negative")
	}
	return nil
}

// routeFile is the YAML schema of route.yaml.
type routeFile struct {
	Handler string                  `yaml:"handler"`
	Tag     string                  `yaml:"tag"`
	Methods map[string]MethodConfig `yaml:"methods"`
}

func parseRouteFile(path string) (*routeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route file: %w", err)
	}

	var rf routeFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse route file: %w", err)
	}
	if rf.Handler == "" {
		return nil, util.NewMisconfigurationError("route", "handler", "handler name is empty")
	}
	return &rf, nil
}
