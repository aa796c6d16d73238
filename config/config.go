package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "TRANSIT"

// Config holds application-wide configuration. It is read once at startup.
type Config struct {
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	SchemaRegistry SchemaRegistryConfig `mapstructure:"schemaRegistry"`
	Connect        ConnectConfig        `mapstructure:"connect"`
	KSQL           KSQLConfig           `mapstructure:"ksql"`
	Postgres       PostgresConfig       `mapstructure:"postgres"`
	Topics         TopicsConfig         `mapstructure:"topics"`
	Consumer       ConsumerConfig       `mapstructure:"consumer"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Log            LogConfig            `mapstructure:"log"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"groupID"`
	AutoOffsetReset string   `mapstructure:"autoOffsetReset"`
}

type SchemaRegistryConfig struct {
	// URL enables Avro with the registry wire format when set.
	URL string `mapstructure:"url"`
}

type ConnectConfig struct {
	URL           string        `mapstructure:"url"`
	ConnectorName string        `mapstructure:"connectorName"`
	DatabaseURL   string        `mapstructure:"databaseURL"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	PollInterval  time.Duration `mapstructure:"pollInterval"`
}

type KSQLConfig struct {
	URL string `mapstructure:"url"`
}

type PostgresConfig struct {
	ConnString string `mapstructure:"connString"`
}

type TopicsConfig struct {
	Version    int   `mapstructure:"version"`
	Partitions int32 `mapstructure:"partitions"`
	Replicas   int16 `mapstructure:"replicas"`
}

type ConsumerConfig struct {
	UseAvro         bool          `mapstructure:"useAvro"`
	ResetToEarliest bool          `mapstructure:"resetToEarliest"`
	IdleSleep       time.Duration `mapstructure:"idleSleep"`
	PollTimeout     time.Duration `mapstructure:"pollTimeout"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.groupID", "transit")
	v.SetDefault("kafka.autoOffsetReset", "earliest")

	v.SetDefault("schemaRegistry.url", "")

	v.SetDefault("connect.url", "http://localhost:8083")
	v.SetDefault("connect.connectorName", "stations")
	v.SetDefault("connect.databaseURL", "jdbc:postgresql://localhost:5432/cta")
	v.SetDefault("connect.user", "cta_admin")
	v.SetDefault("connect.password", "")
	v.SetDefault("connect.pollInterval", 10*time.Second)

	v.SetDefault("ksql.url", "http://localhost:8088")

	v.SetDefault("postgres.connString", "postgres://cta_admin@localhost:5432/cta")

	v.SetDefault("topics.version", 1)
	v.SetDefault("topics.partitions", 1)
	v.SetDefault("topics.replicas", 1)

	v.SetDefault("consumer.useAvro", false)
	v.SetDefault("consumer.resetToEarliest", true)
	v.SetDefault("consumer.idleSleep", time.Second)
	v.SetDefault("consumer.pollTimeout", 100*time.Millisecond)

	v.SetDefault("metrics.addr", ":9100")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads cfgFile when given, otherwise transit.yaml from the working
// directory if present. Environment variables such as TRANSIT_KAFKA_BROKERS
// override both.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("transit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers must not be empty"))
	}
	if c.Kafka.AutoOffsetReset != "earliest" && c.Kafka.AutoOffsetReset != "latest" {
		errs = append(errs, fmt.Errorf("kafka.autoOffsetReset must be earliest or latest, got %q", c.Kafka.AutoOffsetReset))
	}
	if c.Topics.Version < 1 {
		errs = append(errs, errors.New("topics.version must be at least 1"))
	}
	if c.Topics.Partitions < 1 || c.Topics.Replicas < 1 {
		errs = append(errs, errors.New("topics.partitions and topics.replicas must be at least 1"))
	}
	if c.Consumer.IdleSleep <= 0 || c.Consumer.PollTimeout <= 0 {
		errs = append(errs, errors.New("consumer.idleSleep and consumer.pollTimeout must be positive"))
	}
	return errors.Join(errs...)
}
