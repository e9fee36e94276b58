package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cp "github.com/otiai10/copy"
	"gopkg.in/yaml.v3"
)

var (
	cfgMux  sync.RWMutex
	AFK     *BotCfg
	Version = "dev"

	// Dir is the directory holding afkbot.yaml and template.yaml.
	Dir = "config"
)

const (
	configFile   = "afkbot.yaml"
	templateFile = "template.yaml"

	defaultHTTPPort             = 8000
	defaultReconnectDelayMs     = 5000
	defaultAuthTimeoutSeconds   = 30
	defaultRepeatDelaySeconds   = 60
	defaultHighPingThreshold    = 1000
	defaultPingSustainedSeconds = 30
)

type BotCfg struct {
	Debug struct {
		Log bool `yaml:"log"`
	} `yaml:"debug"`
	LogSaveDirectory string `yaml:"logSaveDirectory"`
	Account          struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		AuthType string `yaml:"authType"` // "offline" or "microsoft"
	} `yaml:"account"`
	Server struct {
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
		Version string `yaml:"version"`
	} `yaml:"server"`
	Bridge struct {
		URL string `yaml:"url"`
	} `yaml:"bridge"`
	HTTP struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	AutoAuth struct {
		Enabled        bool   `yaml:"enabled"`
		Password       string `yaml:"password"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"autoAuth"`
	ChatMessages ChatMessagesCfg `yaml:"chatMessages"`
	Position     struct {
		Enabled bool    `yaml:"enabled"`
		X       float64 `yaml:"x"`
		Y       float64 `yaml:"y"`
		Z       float64 `yaml:"z"`
	} `yaml:"position"`
	AntiAfk struct {
		Enabled bool `yaml:"enabled"`
		Sneak   bool `yaml:"sneak"`
	} `yaml:"antiAfk"`
	AutoReconnect struct {
		Enabled bool `yaml:"enabled"`
		DelayMs int  `yaml:"delayMs"`
	} `yaml:"autoReconnect"`
	PingMonitor struct {
		Enabled           bool `yaml:"enabled"`
		HighPingThreshold int  `yaml:"highPingThreshold"` // ms
		SustainedDuration int  `yaml:"sustainedDuration"` // seconds
	} `yaml:"pingMonitor"`
	Discord struct {
		Enabled                bool     `yaml:"enabled"`
		EnableSessionMessages  bool     `yaml:"enableSessionMessages"`
		EnableKickMessages     bool     `yaml:"enableKickMessages"`
		EnableDeathMessages    bool     `yaml:"enableDeathMessages"`
		EnableAuthFailMessages bool     `yaml:"enableAuthFailMessages"`
		BotAdmins              []string `yaml:"botAdmins"`
		ChannelID              string   `yaml:"channelId"`
		Token                  string   `yaml:"token"`
		UseWebhook             bool     `yaml:"useWebhook"`
		WebhookURL             string   `yaml:"webhookUrl"`
	} `yaml:"discord"`
	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		ChatID  int64  `yaml:"chatId"`
		Token   string `yaml:"token"`
	} `yaml:"telegram"`
	Ngrok struct {
		Enabled       bool   `yaml:"enabled"`
		SendURL       bool   `yaml:"sendUrl"`
		Authtoken     string `yaml:"authtoken"`
		Region        string `yaml:"region"`
		Domain        string `yaml:"domain"`
		BasicAuthUser string `yaml:"basicAuthUser"`
		BasicAuthPass string `yaml:"basicAuthPass"`
	} `yaml:"ngrok"`
}

type ChatMessagesCfg struct {
	Enabled            bool     `yaml:"enabled"`
	Repeat             bool     `yaml:"repeat"`
	RepeatDelaySeconds int      `yaml:"repeatDelaySeconds"`
	Messages           []string `yaml:"messages"`
}

// Load reads afkbot.yaml from Dir, creating it from the template on first run.
func Load() error {
	path := filepath.Join(Dir, configFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := CreateFromTemplate(); err != nil {
			return err
		}
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return err
	}

	cfgMux.Lock()
	AFK = cfg
	cfgMux.Unlock()

	return nil
}

// Get returns the loaded configuration, nil before Load.
func Get() *BotCfg {
	cfgMux.RLock()
	defer cfgMux.RUnlock()
	return AFK
}

func LoadFile(path string) (*BotCfg, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", path, err)
	}
	defer r.Close()

	cfg := &BotCfg{}
	d := yaml.NewDecoder(r)
	if err = d.Decode(cfg); err != nil {
		return nil, fmt.Errorf("error reading config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// CreateFromTemplate copies template.yaml to afkbot.yaml.
func CreateFromTemplate() error {
	src := filepath.Join(Dir, templateFile)
	dst := filepath.Join(Dir, configFile)

	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		return errors.New("configuration already exists")
	}

	if err := cp.Copy(src, dst); err != nil {
		return fmt.Errorf("error copying template: %w", err)
	}

	return nil
}

// Validate fills defaults and turns off remotes that are missing credentials.
func (c *BotCfg) Validate() error {
	if strings.TrimSpace(c.Account.Username) == "" {
		return errors.New("account.username is required")
	}
	if strings.TrimSpace(c.Bridge.URL) == "" {
		return errors.New("bridge.url is required")
	}
	if c.Account.AuthType == "" {
		c.Account.AuthType = "offline"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 25565
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = defaultHTTPPort
	}
	if c.AutoAuth.Enabled && c.AutoAuth.Password == "" {
		return errors.New("autoAuth.password is required when autoAuth is enabled")
	}
	if c.AutoAuth.TimeoutSeconds <= 0 {
		c.AutoAuth.TimeoutSeconds = defaultAuthTimeoutSeconds
	}
	if c.ChatMessages.RepeatDelaySeconds <= 0 {
		c.ChatMessages.RepeatDelaySeconds = defaultRepeatDelaySeconds
	}
	if c.ChatMessages.Enabled && len(c.ChatMessages.Messages) == 0 {
		c.ChatMessages.Enabled = false
	}
	if c.AutoReconnect.DelayMs <= 0 {
		c.AutoReconnect.DelayMs = defaultReconnectDelayMs
	}
	if c.PingMonitor.HighPingThreshold <= 0 {
		c.PingMonitor.HighPingThreshold = defaultHighPingThreshold
	}
	if c.PingMonitor.SustainedDuration <= 0 {
		c.PingMonitor.SustainedDuration = defaultPingSustainedSeconds
	}

	sanitizeDiscordConfig(c)
	sanitizeTelegramConfig(c)

	return nil
}

func (c *BotCfg) ReconnectDelay() time.Duration {
	return time.Duration(c.AutoReconnect.DelayMs) * time.Millisecond
}

func (c *BotCfg) AuthTimeout() time.Duration {
	return time.Duration(c.AutoAuth.TimeoutSeconds) * time.Second
}

func (c *BotCfg) ChatRepeatDelay() time.Duration {
	return time.Duration(c.ChatMessages.RepeatDelaySeconds) * time.Second
}

func sanitizeDiscordConfig(cfg *BotCfg) {
	if !cfg.Discord.Enabled {
		return
	}
	useWebhook := cfg.Discord.UseWebhook
	webhookURL := strings.TrimSpace(cfg.Discord.WebhookURL)
	token := strings.TrimSpace(cfg.Discord.Token)
	channelID := strings.TrimSpace(cfg.Discord.ChannelID)

	if (useWebhook && webhookURL == "") || (!useWebhook && (token == "" || channelID == "")) {
		cfg.Discord.Enabled = false
	}
}

func sanitizeTelegramConfig(cfg *BotCfg) {
	if cfg.Telegram.Enabled && (strings.TrimSpace(cfg.Telegram.Token) == "" || cfg.Telegram.ChatID == 0) {
		cfg.Telegram.Enabled = false
	}
}
