package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/angas/entsoe-go/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
}

type AppConfigDatabase struct {
	Path string
	// bbolt file holding the entity registry, default: next to Path as registry.db
	RegistryPath *string `mapstructure:"registry_path"`
	// How many days price data should be stored in database before it gets purged
	DataRetentionDays *int `mapstructure:"data_retention_days"`
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetRegistryPath() string {
	if d.RegistryPath == nil || *d.RegistryPath == "" {
		idx := strings.LastIndexAny(d.Path, `/\`)
		if idx < 0 {
			return "registry.db"
		}
		return d.Path[:idx+1] + "registry.db"
	}
	return *d.RegistryPath
}

func (d AppConfigDatabase) GetDataRetentionDays() int {
	if d.DataRetentionDays == nil {
		return 90
	}
	return *d.DataRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 90
	}
	return *d.BackupRetentionDays
}

type AppConfigMqtt struct {
	Host     string
	Port     int16
	Username string
	Password string
	ClientId *string `mapstructure:"client_id"`
	// Home Assistant discovery prefix, default: "homeassistant"
	DiscoveryPrefix *string `mapstructure:"discovery_prefix"`
	// Prefix of state, attribute and availability topics, default: "entsoe"
	BaseTopic *string `mapstructure:"base_topic"`
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Host != ""
}

func (m AppConfigMqtt) GetClientId() string {
	if m.ClientId == nil {
		return "entsoe-go"
	}
	return *m.ClientId
}

func (m AppConfigMqtt) GetDiscoveryPrefix() string {
	if m.DiscoveryPrefix == nil {
		return "homeassistant"
	}
	return *m.DiscoveryPrefix
}

func (m AppConfigMqtt) GetBaseTopic() string {
	if m.BaseTopic == nil {
		return "entsoe"
	}
	return *m.BaseTopic
}

type AppConfigEnergyPrice struct {
	Area  string `mapstructure:"area"`   // Bidding zone, e.g. "SE3", "NL", "DE-LU"
	RunAt string `mapstructure:"run_at"` // Cron spec for fetching prices
	// Timezone of the bidding zone, decides where "today" starts, default: "Europe/Amsterdam"
	Timezone *string `mapstructure:"timezone"`
	// Optional third provider, only used when a token is given
	TibberToken  string `mapstructure:"tibber_token"`
	TibberHomeId string `mapstructure:"tibber_home_id"`
}

func (e AppConfigEnergyPrice) GetTimezone() string {
	if e.Timezone == nil {
		return "Europe/Amsterdam"
	}
	return *e.Timezone
}

// AppConfigEntry is one configured instance of the price sensors.
type AppConfigEntry struct {
	EntryId string            `mapstructure:"entry_id"`
	Title   string            `mapstructure:"title"`
	Options map[string]string `mapstructure:"options"`
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return logging.LogAttrFormatJSON
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api         AppConfigApi
	Database    AppConfigDatabase
	Mqtt        AppConfigMqtt        `mapstructure:"mqtt"`
	EnergyPrice AppConfigEnergyPrice `mapstructure:"energy_price"`
	Entries     []AppConfigEntry     `mapstructure:"entries"`
	Logging     AppConfigLogging     `mapstructure:"logging"`
}

func (c *AppConfig) validate() error {
	if c.EnergyPrice.Area == "" {
		return fmt.Errorf("energy_price.area is required")
	}
	if len(c.Entries) == 0 {
		return fmt.Errorf("at least one entry is required")
	}
	seen := make(map[string]bool, len(c.Entries))
	for i, e := range c.Entries {
		if e.EntryId == "" {
			return fmt.Errorf("entries[%d].entry_id is required", i)
		}
		if seen[e.EntryId] {
			return fmt.Errorf("duplicate entry_id %q", e.EntryId)
		}
		seen[e.EntryId] = true
	}
	return nil
}

// Loader reads the config file and keeps watching it for changes.
type Loader struct {
	v *viper.Viper
}

func NewLoader(path string) *Loader {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetDefault("energy_price.run_at", "15 13,14,15 * * *")
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.path", "entsoe.db")
	return &Loader{v: v}
}

func (l *Loader) Load() (*AppConfig, error) {
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*AppConfig, error) {
	var c AppConfig
	if err := l.v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// Watch calls onChange with the reloaded config every time the file is
// written. Configs that fail to load are reported through onError and
// otherwise ignored.
func (l *Loader) Watch(onChange func(*AppConfig), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := l.unmarshal()
		if err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		onChange(c)
	})
	l.v.WatchConfig()
}

func Load(path string) (*AppConfig, error) {
	return NewLoader(path).Load()
}
