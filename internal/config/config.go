package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// DefaultMaxDelay is the freshness threshold used when application.maxDelayTime is absent.
const DefaultMaxDelay = 10 * time.Minute

// Keys understood by Load. Environment variables use the upper-case form with
// dots replaced by underscores, e.g. SERVICE_HOST.
const (
	KeyServiceHost        = "service.host"
	KeyServicePort        = "service.port"
	KeyServiceUsername    = "service.username"
	KeyServicePassword    = "service.password"
	KeyServiceReadTimeout = "service.readTimeOutSeconds"
	KeyServiceSite        = "service.site"
	KeyMaxDelayTime       = "application.maxDelayTime"
	KeyServices           = "topology.services"
	KeyAppID              = "appId"

	KeyAddr            = "server.addr"
	KeyLogDir          = "log.dir"
	KeyLogLevel        = "log.level"
	KeyDatabaseURL     = "database.url"
	KeyCheckInterval   = "check.intervalSeconds"
	KeyCheckTimeout    = "check.timeoutSeconds"
	KeyCheckAttempts   = "check.attempts"
	KeyCheckBackoff    = "check.retryBackoffSeconds"
	KeyAlertCooldown   = "alert.cooldownSeconds"
	KeyAlertOnRecovery = "alert.onRecovery"
	KeySlackWebhook    = "slack.webhook"
	KeyPublicAPIKeys   = "api.publicKeys"
	KeyAdminAPIKeys    = "api.adminKeys"
)

// DefaultServices are the topology entity services whose freshness is tracked.
var DefaultServices = []string{"HbaseServiceInstance", "HdfsServiceInstance", "MRServiceInstance"}

// ProbeConfig is everything one freshness check needs. It is passed by value
// and never mutated after Load.
type ProbeConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	ReadTimeout time.Duration // bounds every remote query
	Site        string        // site the topology entities are scoped to
	AppID       string        // application whose run status is read
	Services    []string
	MaxDelay    time.Duration
	MaxDelaySet bool // application.maxDelayTime was configured
}

// MaxDelayOrDefault returns the configured threshold, zero included, or
// DefaultMaxDelay when none was configured.
func (p ProbeConfig) MaxDelayOrDefault() time.Duration {
	if p.MaxDelaySet {
		return p.MaxDelay
	}
	return DefaultMaxDelay
}

func (p ProbeConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", p.Host, p.Port)
}

type Config struct {
	Addr            string        // API bind address, e.g. "127.0.0.1:8080" or ":8080" (Docker)
	LogDir          string        // logs directory
	LogLevel        string        // debug | info | warn | error
	DatabaseURL     string        // empty means in-memory verdict history
	CheckInterval   time.Duration // 0 disables the scheduler
	CheckTimeout    time.Duration // overall budget for one check
	CheckAttempts   int           // unhealthy verdicts are retried up to this many attempts
	CheckBackoff    time.Duration
	AlertCooldown   time.Duration
	AlertOnRecovery bool
	SlackWebhook    string
	PublicAPIKeys   []string
	AdminAPIKeys    []string

	Probe ProbeConfig
}

// Load reads configuration from the optional file at path and from the
// environment; environment values win.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config read %q: %w", path, err)
		}
	}

	readTimeout := time.Duration(v.GetInt(KeyServiceReadTimeout)) * time.Second

	var maxDelay time.Duration
	maxDelaySet := v.IsSet(KeyMaxDelayTime)
	if maxDelaySet {
		maxDelay = time.Duration(v.GetInt64(KeyMaxDelayTime)) * time.Millisecond
	}

	checkTimeout := 2*readTimeout + 5*time.Second
	if v.IsSet(KeyCheckTimeout) {
		checkTimeout = time.Duration(v.GetInt(KeyCheckTimeout)) * time.Second
	}

	services := stringList(v.Get(KeyServices))
	if len(services) == 0 {
		services = append([]string(nil), DefaultServices...)
	}

	return Config{
		Addr:            v.GetString(KeyAddr),
		LogDir:          v.GetString(KeyLogDir),
		LogLevel:        v.GetString(KeyLogLevel),
		DatabaseURL:     v.GetString(KeyDatabaseURL),
		CheckInterval:   time.Duration(v.GetInt(KeyCheckInterval)) * time.Second,
		CheckTimeout:    checkTimeout,
		CheckAttempts:   v.GetInt(KeyCheckAttempts),
		CheckBackoff:    time.Duration(v.GetInt(KeyCheckBackoff)) * time.Second,
		AlertCooldown:   time.Duration(v.GetInt(KeyAlertCooldown)) * time.Second,
		AlertOnRecovery: v.GetBool(KeyAlertOnRecovery),
		SlackWebhook:    v.GetString(KeySlackWebhook),
		PublicAPIKeys:   stringList(v.Get(KeyPublicAPIKeys)),
		AdminAPIKeys:    stringList(v.Get(KeyAdminAPIKeys)),
		Probe: ProbeConfig{
			Host:        v.GetString(KeyServiceHost),
			Port:        v.GetInt(KeyServicePort),
			Username:    v.GetString(KeyServiceUsername),
			Password:    v.GetString(KeyServicePassword),
			ReadTimeout: readTimeout,
			Site:        v.GetString(KeyServiceSite),
			AppID:       v.GetString(KeyAppID),
			Services:    services,
			MaxDelay:    maxDelay,
			MaxDelaySet: maxDelaySet,
		},
	}, nil
}

// FromEnv is Load without a config file.
func FromEnv() (Config, error) {
	return Load("")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyServiceHost, "localhost")
	v.SetDefault(KeyServicePort, 9090)
	v.SetDefault(KeyServiceReadTimeout, 60)

	v.SetDefault(KeyAddr, "127.0.0.1:8080")
	v.SetDefault(KeyLogDir, "logs")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyCheckInterval, 60)
	v.SetDefault(KeyCheckAttempts, 1)
	v.SetDefault(KeyCheckBackoff, 5)
	v.SetDefault(KeyAlertCooldown, 900)
	v.SetDefault(KeyAlertOnRecovery, true)
}

// stringList accepts either a real list (from a config file) or a
// comma-separated string (from the environment).
func stringList(raw any) []string {
	var parts []string
	switch x := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(x, ",")
	case []string:
		parts = x
	case []any:
		for _, p := range x {
			parts = append(parts, fmt.Sprint(p))
		}
	default:
		parts = []string{fmt.Sprint(x)}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	p := c.Probe
	if strings.TrimSpace(p.Host) == "" {
		err = multierr.Append(err, errors.New(KeyServiceHost+" is empty"))
	}
	if p.Port <= 0 || p.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("%s %d is out of range", KeyServicePort, p.Port))
	}
	if p.ReadTimeout <= 0 {
		err = multierr.Append(err, errors.New(KeyServiceReadTimeout+" must be positive"))
	}
	if strings.TrimSpace(p.Site) == "" {
		err = multierr.Append(err, errors.New(KeyServiceSite+" is empty"))
	}
	if strings.TrimSpace(p.AppID) == "" {
		err = multierr.Append(err, errors.New(KeyAppID+" is empty"))
	}
	if len(p.Services) == 0 {
		err = multierr.Append(err, errors.New(KeyServices+" is empty"))
	}
	if p.MaxDelay < 0 {
		err = multierr.Append(err, errors.New(KeyMaxDelayTime+" must not be negative"))
	}
	if c.CheckInterval < 0 {
		err = multierr.Append(err, errors.New(KeyCheckInterval+" must not be negative"))
	}
	if c.CheckAttempts < 1 {
		err = multierr.Append(err, errors.New(KeyCheckAttempts+" must be at least 1"))
	}
	if c.CheckTimeout <= 0 {
		err = multierr.Append(err, errors.New(KeyCheckTimeout+" must be positive"))
	}
	return err
}
