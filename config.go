package contactsync

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pior/contactsync/wire"
)

// AddressBookChoice selects how the folder of an added contact is chosen.
type AddressBookChoice string

const (
	// AddressBookIndividual asks the FolderResolver for every added contact.
	AddressBookIndividual AddressBookChoice = "individual"

	// AddressBookDefault always uses Config.FolderPath.
	AddressBookDefault AddressBookChoice = "default"
)

// StoreBackend names a contact store implementation.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreSQLite StoreBackend = "sqlite"
)

// DefaultAppName is the application part of the default socket path.
const DefaultAppName = "claws-mail"

// SourceConfig declares an address book.
type SourceConfig struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// Config holds the bridge preferences and its collaborators.
type Config struct {
	// SocketPath overrides the default <tmp>/<app>-opensync-<uid> path.
	SocketPath string

	// AppName is used to build the default socket path.
	// Default: "claws-mail".
	AppName string

	// AskAdd, AskDelete and AskModify route the matching operation through
	// the Confirmer first. Default: false.
	AskAdd    bool
	AskDelete bool
	AskModify bool

	// AddressBookChoice selects the folder of added contacts.
	// Default: AddressBookIndividual.
	AddressBookChoice AddressBookChoice

	// FolderPath is the folder for added contacts with AddressBookDefault,
	// and the preselection handed to the FolderResolver otherwise.
	FolderPath string

	// AllowIDOverwrite applies the UID of a modify record to the contact.
	AllowIDOverwrite bool

	// AlwaysEncodeName emits N even for contacts without name parts.
	AlwaysEncodeName bool

	// IdleTimeout bounds the wait for each line from the peer.
	// Zero means no limit.
	IdleTimeout time.Duration

	// MaxLineLength bounds a single protocol line.
	// Default: 8192.
	MaxLineLength int

	// Store selects the backend built by the daemon. Default: memory.
	Store StoreBackend

	// SQLitePath is the database file used with StoreSQLite.
	SQLitePath string

	// Sources are the address books created at startup.
	Sources []SourceConfig

	// MetricsAddr enables the /metrics and /health endpoint when set.
	MetricsAddr string

	// Interactive enables terminal prompts for confirmation and folder
	// selection in the daemon.
	Interactive bool

	// Confirmer decides on operations gated by the Ask flags.
	// If nil, every operation is accepted.
	Confirmer Confirmer

	// FolderResolver picks folders with AddressBookIndividual.
	// If nil, FolderPath is used, or the first address book of the store
	// when FolderPath is empty.
	FolderResolver FolderResolver

	// Logger receives session and command events.
	// The zero value discards everything.
	Logger zerolog.Logger

	// Registerer receives the server metrics. If nil, metrics are collected
	// but not registered.
	Registerer prometheus.Registerer
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		AppName:           DefaultAppName,
		AddressBookChoice: AddressBookIndividual,
		MaxLineLength:     wire.MaxLineLength,
		Store:             StoreMemory,
	}
}

// WithDefaults fills zero fields with their default value.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.AppName == "" {
		c.AppName = d.AppName
	}
	if c.AddressBookChoice == "" {
		c.AddressBookChoice = d.AddressBookChoice
	}
	if c.MaxLineLength == 0 {
		c.MaxLineLength = d.MaxLineLength
	}
	if c.Store == "" {
		c.Store = d.Store
	}
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath(c.AppName)
	}
	if c.Confirmer == nil {
		c.Confirmer = AutoConfirm
	}
	if c.FolderResolver == nil {
		c.FolderResolver = StaticFolder
	}
	return c
}

// minLineLength keeps room for the longest protocol token.
const minLineLength = 64

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.AddressBookChoice {
	case AddressBookIndividual, "":
	case AddressBookDefault:
		if c.FolderPath == "" {
			return errors.New("addrbook_folderpath is required with addrbook_choice = \"default\"")
		}
	default:
		return fmt.Errorf("invalid addrbook_choice %q", c.AddressBookChoice)
	}

	switch c.Store {
	case StoreMemory, "":
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite_path is required with store = \"sqlite\"")
		}
	default:
		return fmt.Errorf("invalid store %q", c.Store)
	}

	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must not be negative, got %s", c.IdleTimeout)
	}
	if c.MaxLineLength != 0 && c.MaxLineLength < minLineLength {
		return fmt.Errorf("max_line_length must be at least %d, got %d", minLineLength, c.MaxLineLength)
	}
	for i, src := range c.Sources {
		if strings.TrimSpace(src.Path) == "" {
			return fmt.Errorf("source %d: path is required", i)
		}
	}
	return nil
}

type fileConfig struct {
	SocketPath        string         `toml:"socket_path"`
	AppName           string         `toml:"app_name"`
	AskAdd            bool           `toml:"ask_add"`
	AskDelete         bool           `toml:"ask_delete"`
	AskModify         bool           `toml:"ask_modify"`
	AddressBookChoice string         `toml:"addrbook_choice"`
	FolderPath        string         `toml:"addrbook_folderpath"`
	AllowIDOverwrite  bool           `toml:"allow_id_overwrite"`
	AlwaysEncodeName  bool           `toml:"always_encode_name"`
	IdleTimeout       string         `toml:"idle_timeout,omitempty"`
	MaxLineLength     int            `toml:"max_line_length"`
	Store             string         `toml:"store"`
	SQLitePath        string         `toml:"sqlite_path"`
	MetricsAddr       string         `toml:"metrics_addr"`
	Interactive       bool           `toml:"interactive"`
	Sources           []SourceConfig `toml:"source,omitempty"`
}

// LoadConfig reads a TOML file over DefaultConfig. Keys absent from the file
// keep their default.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("socket_path") {
		cfg.SocketPath = strings.TrimSpace(raw.SocketPath)
	}
	if meta.IsDefined("app_name") {
		if name := strings.TrimSpace(raw.AppName); name != "" {
			cfg.AppName = name
		}
	}
	if meta.IsDefined("ask_add") {
		cfg.AskAdd = raw.AskAdd
	}
	if meta.IsDefined("ask_delete") {
		cfg.AskDelete = raw.AskDelete
	}
	if meta.IsDefined("ask_modify") {
		cfg.AskModify = raw.AskModify
	}
	if meta.IsDefined("addrbook_choice") {
		cfg.AddressBookChoice = AddressBookChoice(strings.TrimSpace(raw.AddressBookChoice))
	}
	if meta.IsDefined("addrbook_folderpath") {
		cfg.FolderPath = strings.TrimSpace(raw.FolderPath)
	}
	if meta.IsDefined("allow_id_overwrite") {
		cfg.AllowIDOverwrite = raw.AllowIDOverwrite
	}
	if meta.IsDefined("always_encode_name") {
		cfg.AlwaysEncodeName = raw.AlwaysEncodeName
	}
	if meta.IsDefined("idle_timeout") && strings.TrimSpace(raw.IdleTimeout) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw.IdleTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse idle_timeout: %w", err)
		}
		cfg.IdleTimeout = d
	}
	if meta.IsDefined("max_line_length") {
		cfg.MaxLineLength = raw.MaxLineLength
	}
	if meta.IsDefined("store") {
		cfg.Store = StoreBackend(strings.TrimSpace(raw.Store))
	}
	if meta.IsDefined("sqlite_path") {
		cfg.SQLitePath = strings.TrimSpace(raw.SQLitePath)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("interactive") {
		cfg.Interactive = raw.Interactive
	}
	if meta.IsDefined("source") {
		cfg.Sources = raw.Sources
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the file-backed settings of cfg to path.
func SaveConfig(path string, cfg Config) error {
	raw := fileConfig{
		SocketPath:        cfg.SocketPath,
		AppName:           cfg.AppName,
		AskAdd:            cfg.AskAdd,
		AskDelete:         cfg.AskDelete,
		AskModify:         cfg.AskModify,
		AddressBookChoice: string(cfg.AddressBookChoice),
		FolderPath:        cfg.FolderPath,
		AllowIDOverwrite:  cfg.AllowIDOverwrite,
		AlwaysEncodeName:  cfg.AlwaysEncodeName,
		MaxLineLength:     cfg.MaxLineLength,
		Store:             string(cfg.Store),
		SQLitePath:        cfg.SQLitePath,
		MetricsAddr:       cfg.MetricsAddr,
		Interactive:       cfg.Interactive,
		Sources:           cfg.Sources,
	}
	if cfg.IdleTimeout > 0 {
		raw.IdleTimeout = cfg.IdleTimeout.String()
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(raw); err != nil {
		f.Close()
		return fmt.Errorf("save config: %w", err)
	}
	return f.Close()
}
