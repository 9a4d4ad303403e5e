// Package config loads acquisition settings from defaults, an optional
// bitalino.yaml in the working directory, a .env file and BITALINO_*
// environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/aakash-soni-git/bitalino/internal/convert"
	"github.com/aakash-soni-git/bitalino/internal/device"
)

var ErrBadChannelSpec = errors.New("bad channel specification")

// ChannelAssignment pairs an analog input with the sensor wired to it.
type ChannelAssignment struct {
	Channel device.Channel
	Kind    convert.Kind
}

type Config struct {
	// Address is the serial node of the paired device. Empty plus
	// Simulate=false is a startup error.
	Address  string
	Simulate bool

	Channels     []ChannelAssignment
	SamplingRate int
	BlockSize    int
	Runtime      time.Duration
	PrintState   bool
	LogBlocks    bool

	CSVEnabled bool
	CSVDir     string
	CSVPrefix  string

	PlotEnabled bool
	PlotCommand string

	// optional sinks, enabled by presence
	KafkaBrokers string
	KafkaTopic   string

	PostgresConn       string
	PostgresMigrations string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	APIAddr string
}

// Load reads the configuration stack and parses the channel selection.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("bitalino")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("BITALINO")
	v.AutomaticEnv()

	channels, err := ParseChannels(v.GetString("channels"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Address:  v.GetString("address"),
		Simulate: v.GetBool("simulate"),

		Channels:     channels,
		SamplingRate: v.GetInt("sampling_rate"),
		BlockSize:    v.GetInt("block_size"),
		Runtime:      time.Duration(v.GetInt("runtime_seconds")) * time.Second,
		PrintState:   v.GetBool("print_state"),
		LogBlocks:    v.GetBool("log_blocks"),

		CSVEnabled: v.GetBool("csv_enabled"),
		CSVDir:     v.GetString("csv_dir"),
		CSVPrefix:  v.GetString("csv_prefix"),

		PlotEnabled: v.GetBool("plot_enabled"),
		PlotCommand: v.GetString("plot_command"),

		KafkaBrokers: v.GetString("kafka_brokers"),
		KafkaTopic:   v.GetString("kafka_topic"),

		PostgresConn:       v.GetString("postgres_conn"),
		PostgresMigrations: v.GetString("postgres_migrations"),

		InfluxURL:    v.GetString("influx_url"),
		InfluxToken:  v.GetString("influx_token"),
		InfluxOrg:    v.GetString("influx_org"),
		InfluxBucket: v.GetString("influx_bucket"),

		APIAddr: v.GetString("api_addr"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", "")
	v.SetDefault("simulate", false)
	v.SetDefault("channels", "A1:EDA")
	v.SetDefault("sampling_rate", 100)
	v.SetDefault("block_size", 100)
	v.SetDefault("runtime_seconds", 0)
	v.SetDefault("print_state", false)
	v.SetDefault("log_blocks", false)
	v.SetDefault("csv_enabled", true)
	v.SetDefault("csv_dir", "data/bitalino")
	v.SetDefault("csv_prefix", "BITALINO")
	v.SetDefault("plot_enabled", false)
	v.SetDefault("plot_command", "liveplot")
	v.SetDefault("kafka_topic", "biosignal-blocks")
	v.SetDefault("postgres_migrations", "internal/db/migrations")
	v.SetDefault("api_addr", ":8080")
}

// ParseChannels parses a selection such as "A1:EDA,A2:ECG". A missing or
// unknown sensor kind downgrades the channel to RAW with a warning, an
// unknown channel or a duplicate is an error.
func ParseChannels(spec string) ([]ChannelAssignment, error) {
	var out []ChannelAssignment
	seen := make(map[device.Channel]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, kindName, _ := strings.Cut(part, ":")
		ch, err := device.ParseChannel(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrBadChannelSpec, part, err)
		}
		if seen[ch] {
			return nil, fmt.Errorf("%w: channel %s selected twice", ErrBadChannelSpec, ch.Name())
		}
		seen[ch] = true

		kind, known := convert.ParseKind(kindName)
		if !known {
			slog.Warn("Invalid sensor type, switching to RAW acquisition",
				"channel", ch.Name(), "sensor", strings.TrimSpace(kindName))
		}
		out = append(out, ChannelAssignment{Channel: ch, Kind: kind})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty channel selection", ErrBadChannelSpec)
	}
	return out, nil
}
