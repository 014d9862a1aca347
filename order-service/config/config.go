package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string     `mapstructure:"service_name"`
	Env         string     `mapstructure:"env"`
	Port        string     `mapstructure:"port"`
	Database    Database   `mapstructure:"database"`
	AWS         AWS        `mapstructure:"aws"`
	Queue       Queue      `mapstructure:"queue"`
	Processing  Processing `mapstructure:"processing"`
}

type Database struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
	EndpointSNS     string `mapstructure:"endpoint_sns"`
	EndpointSQS     string `mapstructure:"endpoint_sqs"`
}

// Queue describes the order exchange, primary queue and dead-letter queue
type Queue struct {
	ExchangeArn   string `mapstructure:"exchange_arn"`
	QueueURL      string `mapstructure:"queue_url"`
	RoutingKey    string `mapstructure:"routing_key"`
	DLQURL        string `mapstructure:"dlq_url"`
	DLQRoutingKey string `mapstructure:"dlq_routing_key"`
	MessageTTLMs  int    `mapstructure:"message_ttl_ms"`
	AutoStartup   bool   `mapstructure:"auto_startup"`
	MinConsumers  int    `mapstructure:"min_consumers"`
	MaxConsumers  int    `mapstructure:"max_consumers"`
}

// Processing configures the simulated business-processing step
type Processing struct {
	DelayMs int `mapstructure:"delay_ms"`
}

func ReadConfig() (*Config, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("unable to get current file")
	}

	configDir := filepath.Dir(filename)
	viper.SetConfigName(getConfigName())
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ORDER")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func getConfigName() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "local"
	}
	return env
}

func setDefaults() {
	viper.SetDefault("service_name", "order-service")
	viper.SetDefault("env", getEnv("ENV", "local"))
	viper.SetDefault("port", getEnv("PORT", "8080"))

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "order_system")
	viper.SetDefault("database.ssl_mode", "disable")

	viper.SetDefault("aws.access_key_id", getEnv("AWS_ACCESS_KEY_ID", "test"))
	viper.SetDefault("aws.secret_access_key", getEnv("AWS_SECRET_ACCESS_KEY", "test"))
	viper.SetDefault("aws.region", getEnv("AWS_DEFAULT_REGION", "us-east-1"))
	viper.SetDefault("aws.endpoint_sns", getEnv("AWS_ENDPOINT_URL_SNS", "http://localhost:4566"))
	viper.SetDefault("aws.endpoint_sqs", getEnv("AWS_ENDPOINT_URL_SQS", "http://localhost:4566"))

	viper.SetDefault("queue.exchange_arn", getEnv("ORDER_EXCHANGE_ARN", "arn:aws:sns:us-east-1:000000000000:order-exchange"))
	viper.SetDefault("queue.queue_url", getEnv("ORDER_QUEUE_URL", "http://localhost:4566/000000000000/order-queue"))
	viper.SetDefault("queue.routing_key", "order.created")
	viper.SetDefault("queue.dlq_url", getEnv("ORDER_DLQ_URL", "http://localhost:4566/000000000000/order-dlq"))
	viper.SetDefault("queue.dlq_routing_key", "order.dlq")
	viper.SetDefault("queue.message_ttl_ms", 30000)
	viper.SetDefault("queue.auto_startup", true)
	viper.SetDefault("queue.min_consumers", 2)
	viper.SetDefault("queue.max_consumers", 10)

	viper.SetDefault("processing.delay_ms", 5000)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetDatabaseURL constructs database URL from config
func (c *Config) GetDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}
