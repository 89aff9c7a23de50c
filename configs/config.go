package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIBaseURL   string        `yaml:"api_base_url"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PageSize     int           `yaml:"page_size"`
	MessagePage  int           `yaml:"message_page_size"`
	RedisHost    string        `yaml:"redis_host"`
	RedisPort    string        `yaml:"redis_port"`
	SessionKey   string        `yaml:"session_key"`
	KafkaBrokers string        `yaml:"kafka_brokers"`
	KafkaTopic   string        `yaml:"kafka_topic"`
	MetricsAddr  string        `yaml:"metrics_addr"`
	OTELEndpoint string        `yaml:"otel_endpoint"`
	OTELSampler  float64       `yaml:"otel_sampler"`
	ServiceName  string        `yaml:"service_name"`
	Env          string        `yaml:"env"`
	Timezone     string        `yaml:"timezone"`
}

// LoadConfig reads the optional YAML file named by CHATTER_CONFIG and then
// lets environment variables override it.
func LoadConfig() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("CHATTER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("config: api base url is empty")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		APIBaseURL:   "http://localhost:3000",
		HTTPTimeout:  15 * time.Second,
		PollInterval: 30 * time.Second,
		PageSize:     20,
		MessagePage:  30,
		RedisPort:    "6379",
		SessionKey:   "chatter:session",
		KafkaTopic:   "client.mutations",
		MetricsAddr:  ":9464",
		OTELSampler:  1.0,
		ServiceName:  "chatter-client",
		Env:          "local",
	}
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.APIBaseURL = getEnv("CHATTER_API_URL", c.APIBaseURL)
	c.HTTPTimeout = getDuration("CHATTER_HTTP_TIMEOUT", c.HTTPTimeout)
	c.PollInterval = getDuration("CHATTER_POLL_INTERVAL", c.PollInterval)
	c.PageSize = getInt("CHATTER_PAGE_SIZE", c.PageSize)
	c.MessagePage = getInt("CHATTER_MESSAGE_PAGE_SIZE", c.MessagePage)
	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = getEnv("REDIS_PORT", c.RedisPort)
	c.SessionKey = getEnv("CHATTER_SESSION_KEY", c.SessionKey)
	c.KafkaBrokers = getEnv("KAFKA_BOOTSTRAP_SERVERS", c.KafkaBrokers)
	c.KafkaTopic = getEnv("KAFKA_TOPIC_MUTATIONS", c.KafkaTopic)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTELEndpoint)
	c.ServiceName = getEnv("OTEL_SERVICE_NAME", c.ServiceName)
	c.Env = getEnv("ENV", c.Env)
	c.Timezone = getEnv("TZ", c.Timezone)
	if s := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
			c.OTELSampler = f
		}
	}
}

// RedisEnabled reports whether a session store host was configured.
func (c *Config) RedisEnabled() bool { return c.RedisHost != "" }

func (c *Config) RedisAddr() string { return c.RedisHost + ":" + c.RedisPort }

// Brokers splits the comma separated broker list; empty disables the journal.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Location is the viewer-local zone used to bucket messages by date.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
