package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Soar-Robotics/SoarchainFaucet/internal/faucet"
	"github.com/joho/godotenv"
)

type Config struct {
	RPCEndpoint    string       `json:"rpc_endpoint"`
	ListenAddr     string       `json:"listen_addr"`
	DatabaseDSN    string       `json:"database_dsn"`
	AllowedOrigins []string     `json:"allowed_origins"`
	Faucet         FaucetConfig `json:"faucet"`
}

type FaucetConfig struct {
	Denom           string `json:"denom"`
	ClaimAmount     uint64 `json:"claim_amount"`
	CooldownSeconds int64  `json:"cooldown_seconds"`
	LifetimeLimit   uint64 `json:"lifetime_limit"`
	Owner           string `json:"owner"`
	ReserveAddress  string `json:"reserve_address"`
	InitialReserve  uint64 `json:"initial_reserve"`
}

// LoadConfig reads the JSON file at filePath, then applies FAUCET_*
// overrides from a .env file in the working directory and from the process
// environment, the environment winning.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	config := Config{ListenAddr: ":8080"}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}

	dotenv, err := godotenv.Read()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	config.applyEnv(dotenv)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv(dotenv map[string]string) {
	overrides := map[string]*string{
		"FAUCET_RPC_ENDPOINT": &c.RPCEndpoint,
		"FAUCET_LISTEN_ADDR":  &c.ListenAddr,
		"FAUCET_DATABASE_DSN": &c.DatabaseDSN,
		"FAUCET_OWNER":        &c.Faucet.Owner,
	}
	for key, field := range overrides {
		if value, ok := os.LookupEnv(key); ok {
			*field = value
		} else if value, ok := dotenv[key]; ok {
			*field = value
		}
	}
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if c.Faucet.CooldownSeconds < 0 {
		return errors.New("faucet.cooldown_seconds must not be negative")
	}
	return c.Faucet.EngineConfig().Validate()
}

func (f FaucetConfig) Cooldown() time.Duration {
	return time.Duration(f.CooldownSeconds) * time.Second
}

func (f FaucetConfig) EngineConfig() faucet.Config {
	return faucet.Config{
		ClaimAmount:   f.ClaimAmount,
		Cooldown:      f.Cooldown(),
		LifetimeLimit: f.LifetimeLimit,
		Owner:         f.Owner,
		Reserve:       f.ReserveAddress,
	}
}
