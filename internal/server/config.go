package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/holdemtables/internal/game"
)

// Environment variables that override the matching config blocks.
const (
	EnvRedisAddr   = "HOLDEM_REDIS_ADDR"
	EnvDatabaseURL = "HOLDEM_DATABASE_URL"
	EnvNATSURL     = "HOLDEM_NATS_URL"
)

// Config represents the complete server configuration
type Config struct {
	Server   *ServerSettings   `hcl:"server,block"`
	Table    *TableSettings    `hcl:"table,block"`
	AI       *AISettings       `hcl:"ai,block"`
	Redis    *RedisSettings    `hcl:"redis,block"`
	Postgres *PostgresSettings `hcl:"postgres,block"`
	NATS     *NATSSettings     `hcl:"nats,block"`
	Rooms    []RoomSettings    `hcl:"room,block"`
}

// ServerSettings contains listener and logging configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	LogLevel string `hcl:"log_level,optional"`
	// OpenRooms lets a join create an unknown room, with the joiner as creator.
	OpenRooms bool `hcl:"open_rooms,optional"`
	// StateDir keeps table state on disk when no redis block is set.
	StateDir string `hcl:"state_dir,optional"`
}

// TableSettings are the defaults applied to every new table
type TableSettings struct {
	SmallBlind       int `hcl:"small_blind,optional"`
	BigBlind         int `hcl:"big_blind,optional"`
	MaxSeats         int `hcl:"max_seats,optional"`
	DesiredSeatCount int `hcl:"desired_seat_count,optional"`
	BuyIn            int `hcl:"buy_in,optional"`
}

// AISettings controls how AI turns are paced
type AISettings struct {
	PacingMS        int  `hcl:"pacing_ms,optional"`
	MaxTurns        int  `hcl:"max_turns,optional"`
	NextHandDelayMS int  `hcl:"next_hand_delay_ms,optional"`
	AutoDeal        bool `hcl:"auto_deal,optional"`
	StartingChips   int  `hcl:"starting_chips,optional"`
}

type RedisSettings struct {
	Address  string `hcl:"address,optional"`
	Password string `hcl:"password,optional"`
	DB       int    `hcl:"db,optional"`
	TTLHours int    `hcl:"ttl_hours,optional"`
}

type PostgresSettings struct {
	URL     string `hcl:"url,optional"`
	Migrate bool   `hcl:"migrate,optional"`
}

type NATSSettings struct {
	URL           string `hcl:"url,optional"`
	SubjectPrefix string `hcl:"subject_prefix,optional"`
}

// RoomSettings pre-registers a room
type RoomSettings struct {
	ID         string `hcl:"id,label"`
	SmallBlind int    `hcl:"small_blind,optional"`
	BigBlind   int    `hcl:"big_blind,optional"`
	MaxPlayers int    `hcl:"max_players,optional"`
	Creator    string `hcl:"creator,optional"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from an HCL file and applies environment
// overrides. A missing file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Table == nil {
		c.Table = &TableSettings{}
	}
	d := game.DefaultTableConfig()
	if c.Table.SmallBlind == 0 && c.Table.BigBlind == 0 {
		c.Table.SmallBlind, c.Table.BigBlind = d.SmallBlind, d.BigBlind
	}
	if c.Table.MaxSeats == 0 {
		c.Table.MaxSeats = d.MaxSeats
	}
	if c.Table.BuyIn == 0 {
		c.Table.BuyIn = c.Table.BigBlind * 50
	}

	if c.AI == nil {
		c.AI = &AISettings{PacingMS: 800, NextHandDelayMS: 3000, AutoDeal: true}
	}
	if c.AI.MaxTurns == 0 {
		c.AI.MaxTurns = 500
	}
	if c.AI.StartingChips == 0 {
		c.AI.StartingChips = d.AIStartingChips
	}

	if c.Redis != nil && c.Redis.TTLHours == 0 {
		c.Redis.TTLHours = 24
	}
	if c.NATS != nil && c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "holdem.room"
	}

	for i := range c.Rooms {
		r := &c.Rooms[i]
		if r.SmallBlind == 0 && r.BigBlind == 0 {
			r.SmallBlind, r.BigBlind = c.Table.SmallBlind, c.Table.BigBlind
		}
		if r.MaxPlayers == 0 {
			r.MaxPlayers = c.Table.MaxSeats
		}
	}
}

func (c *Config) applyEnv() {
	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		if c.Redis == nil {
			c.Redis = &RedisSettings{TTLHours: 24}
		}
		c.Redis.Address = addr
	}
	if url := os.Getenv(EnvDatabaseURL); url != "" {
		if c.Postgres == nil {
			c.Postgres = &PostgresSettings{Migrate: true}
		}
		c.Postgres.URL = url
	}
	if url := os.Getenv(EnvNATSURL); url != "" {
		if c.NATS == nil {
			c.NATS = &NATSSettings{SubjectPrefix: "holdem.room"}
		}
		c.NATS.URL = url
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if err := c.TableConfig("").Validate(); err != nil {
		return fmt.Errorf("table: %w", err)
	}
	if c.Table.DesiredSeatCount < 0 || c.Table.DesiredSeatCount > c.Table.MaxSeats {
		return fmt.Errorf("table: desired seat count must be between 0 and %d", c.Table.MaxSeats)
	}
	if c.Table.BuyIn <= 0 {
		return fmt.Errorf("table: buy-in must be positive")
	}
	if c.AI.PacingMS < 0 || c.AI.NextHandDelayMS < 0 {
		return fmt.Errorf("ai: delays must not be negative")
	}
	if c.Redis != nil && c.Redis.Address == "" {
		return fmt.Errorf("redis: address is required")
	}
	if c.Postgres != nil && c.Postgres.URL == "" {
		return fmt.Errorf("postgres: url is required")
	}
	if c.NATS != nil && c.NATS.URL == "" {
		return fmt.Errorf("nats: url is required")
	}

	seen := make(map[string]bool, len(c.Rooms))
	for _, r := range c.Rooms {
		if seen[r.ID] {
			return fmt.Errorf("room %s: declared twice", r.ID)
		}
		seen[r.ID] = true
		if err := r.RoomConfig().Apply(c.TableConfig(r.ID)).Validate(); err != nil {
			return fmt.Errorf("room %s: %w", r.ID, err)
		}
	}
	return nil
}

// TableConfig returns the table defaults for roomID.
func (c *Config) TableConfig(roomID string) game.TableConfig {
	return game.TableConfig{
		RoomID:           roomID,
		SmallBlind:       c.Table.SmallBlind,
		BigBlind:         c.Table.BigBlind,
		MaxSeats:         c.Table.MaxSeats,
		DesiredSeatCount: c.Table.DesiredSeatCount,
		AIStartingChips:  c.AI.StartingChips,
	}
}

// OrchestratorConfig derives the orchestrator settings.
func (c *Config) OrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		AIPacing:      time.Duration(c.AI.PacingMS) * time.Millisecond,
		MaxAITurns:    c.AI.MaxTurns,
		NextHandDelay: time.Duration(c.AI.NextHandDelayMS) * time.Millisecond,
		AutoDeal:      c.AI.AutoDeal,
		OpenRooms:     c.Server.OpenRooms,
		BuyIn:         c.Table.BuyIn,
		Defaults:      c.TableConfig(""),
	}
}

// RoomConfig converts the block to the store representation.
func (r RoomSettings) RoomConfig() RoomConfig {
	return RoomConfig{
		SmallBlind: r.SmallBlind,
		BigBlind:   r.BigBlind,
		MaxPlayers: r.MaxPlayers,
		CreatorID:  r.Creator,
	}
}

// RedisTTL is how long idle table state is kept.
func (r *RedisSettings) RedisTTL() time.Duration {
	return time.Duration(r.TTLHours) * time.Hour
}
