package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config is the service configuration, read from YAML with EQUITY_* environment overrides.
type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Log struct {
		AppLogFile string `mapstructure:"app_log_file"`
		Level      string `mapstructure:"level"`
	} `mapstructure:"log"`
	LevelDB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"leveldb"`
	Token struct {
		Address          string `mapstructure:"address"`
		Owner            string `mapstructure:"owner"`
		InitialValuation uint64 `mapstructure:"initial_valuation"`
	} `mapstructure:"token"`
	Vesting struct {
		CliffDuration   time.Duration `mapstructure:"cliff_duration"`
		VestingDuration time.Duration `mapstructure:"vesting_duration"`
	} `mapstructure:"vesting"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.app_log_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("leveldb.path", "data/ledger")
	v.SetDefault("token.address", "")
	v.SetDefault("token.owner", "")
	v.SetDefault("token.initial_valuation", 10_000_000)
	v.SetDefault("vesting.cliff_duration", "8760h")
	v.SetDefault("vesting.vesting_duration", "35040h")
}

// Load reads the config file at path. An empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("EQUITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if !common.IsHexAddress(c.Token.Owner) {
		return fmt.Errorf("token.owner %q is not a hex address", c.Token.Owner)
	}
	if !common.IsHexAddress(c.Token.Address) {
		return fmt.Errorf("token.address %q is not a hex address", c.Token.Address)
	}
	if c.Vesting.CliffDuration < 0 || c.Vesting.VestingDuration <= 0 {
		return fmt.Errorf("vesting durations must be positive")
	}
	if c.Vesting.CliffDuration%time.Second != 0 || c.Vesting.VestingDuration%time.Second != 0 {
		return fmt.Errorf("vesting durations must be whole seconds")
	}
	return nil
}

func (c *Config) OwnerAddress() common.Address {
	return common.HexToAddress(c.Token.Owner)
}

func (c *Config) TokenAddress() common.Address {
	return common.HexToAddress(c.Token.Address)
}
