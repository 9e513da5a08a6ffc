package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Strategy   StrategyConfig   `yaml:"strategy"`
	Loop       LoopConfig       `yaml:"loop"`
	Settlement SettlementConfig `yaml:"settlement"`
	Risk       RiskConfig       `yaml:"risk"`
	Venue      VenueConfig      `yaml:"venue"`
	Paper      PaperConfig      `yaml:"paper"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Log        LogConfig        `yaml:"log"`
}

// StrategyConfig controla la señal RSI y el tamaño de las órdenes.
type StrategyConfig struct {
	Assets               []string `yaml:"assets"`
	RSIPeriod            int      `yaml:"rsi_period"`
	Oversold             float64  `yaml:"oversold"`   // RSI por debajo → PUT
	Overbought           float64  `yaml:"overbought"` // RSI por encima → CALL
	ExpiryMinutes        int      `yaml:"expiry_minutes"`
	CandleSeconds        int      `yaml:"candle_seconds"`
	CandleCount          int      `yaml:"candle_count"`
	PositionPct          float64  `yaml:"position_pct"`
	PositionFloor        float64  `yaml:"position_floor"`
	SignalSpacingMinutes int      `yaml:"signal_spacing_minutes"`
	PayoutPct            float64  `yaml:"payout_pct"` // payout por defecto si el registro no lo trae
}

// LoopConfig controla la cadencia del ciclo.
type LoopConfig struct {
	CycleSeconds    int `yaml:"cycle_seconds"`
	MinSleepSeconds int `yaml:"min_sleep_seconds"`
	SaveEvery       int `yaml:"save_every"`    // ciclos entre guardados del estado
	ResolveEvery    int `yaml:"resolve_every"` // ciclos entre re-resoluciones de instrumentos
}

// SettlementConfig controla la reconciliación de órdenes vencidas.
type SettlementConfig struct {
	GuardSeconds       int     `yaml:"guard_seconds"` // nunca menos de 10
	StatusAfterSeconds int     `yaml:"status_after_seconds"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
	BalanceEpsilon     float64 `yaml:"balance_epsilon"`
}

// RiskConfig controla los stops y bloqueos diarios.
type RiskConfig struct {
	AbsoluteStopPct           float64 `yaml:"absolute_stop_pct"`
	MonthlyStopPct            float64 `yaml:"monthly_stop_pct"`
	MaxDailyConsecutiveLosses int     `yaml:"max_daily_consecutive_losses"`
	WarmupMinutes             *int    `yaml:"warmup_minutes"` // 0 desactiva el calentamiento
}

// VenueConfig describe el bridge HTTP hacia el broker.
type VenueConfig struct {
	BridgeURL          string            `yaml:"bridge_url"`
	StreamURL          string            `yaml:"stream_url"` // ws:// de liquidaciones; vacío = sin stream
	Email              string            `yaml:"-"`          // solo desde .env
	Password           string            `yaml:"-"`
	AccountType        string            `yaml:"account_type"` // PRACTICE | REAL
	Workers            int               `yaml:"workers"`
	CallTimeoutSeconds int               `yaml:"call_timeout_seconds"`
	Mapping            map[string]string `yaml:"mapping"`    // activo → instrumento fijo
	Suffixes           []string          `yaml:"suffixes"`   // sufijos probados para activos sin mapping
	Categories         []string          `yaml:"categories"` // binary | turbo, en orden
}

// PaperConfig describe la cuenta simulada de `run --paper`.
type PaperConfig struct {
	StartBalance   float64 `yaml:"start_balance"`
	WinProbability float64 `yaml:"win_probability"`
	TieProbability float64 `yaml:"tie_probability"`
	PayoutPct      float64 `yaml:"payout_pct"`
	Seed           int64   `yaml:"seed"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	StatePath  string `yaml:"state_path"`
	BackupDir  string `yaml:"backup_dir"`
	JournalDSN string `yaml:"journal_dsn"` // ruta al archivo SQLite, o ":memory:"
}

// MetricsConfig controla el endpoint de Prometheus.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // p.ej. ":9102"; vacío = desactivado
}

// AlertsConfig controla las alertas externas.
type AlertsConfig struct {
	DiscordWebhook string `yaml:"discord_webhook"`
	Source         string `yaml:"source"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse interpreta un YAML ya leído y aplica entorno y defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Validate comprueba lo que hace falta para operar contra el broker real.
// Las ejecuciones en papel no necesitan credenciales.
func (c *Config) Validate(paper bool) error {
	var errs []error
	if len(c.Strategy.Assets) == 0 {
		errs = append(errs, errors.New("strategy.assets is empty"))
	}
	if c.Strategy.Oversold >= c.Strategy.Overbought {
		errs = append(errs, fmt.Errorf("strategy.oversold (%.0f) must be below overbought (%.0f)",
			c.Strategy.Oversold, c.Strategy.Overbought))
	}
	if c.Risk.AbsoluteStopPct >= 1 || c.Risk.MonthlyStopPct >= 1 {
		errs = append(errs, errors.New("risk stop percentages must be below 1"))
	}
	if !paper {
		if c.Venue.Email == "" || c.Venue.Password == "" {
			errs = append(errs, errors.New("VENUE_EMAIL and VENUE_PASSWORD are required for live runs"))
		}
		if t := c.Venue.AccountType; t != "PRACTICE" && t != "REAL" {
			errs = append(errs, fmt.Errorf("venue.account_type %q must be PRACTICE or REAL", t))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}

// Expiry devuelve la duración de cada opción.
func (c *Config) Expiry() time.Duration {
	return time.Duration(c.Strategy.ExpiryMinutes) * time.Minute
}

// CandleSize devuelve la granularidad de las velas.
func (c *Config) CandleSize() time.Duration {
	return time.Duration(c.Strategy.CandleSeconds) * time.Second
}

// SignalSpacing devuelve el tiempo mínimo entre señales del mismo activo.
func (c *Config) SignalSpacing() time.Duration {
	return time.Duration(c.Strategy.SignalSpacingMinutes) * time.Minute
}

// Cycle devuelve la duración objetivo de un ciclo.
func (c *Config) Cycle() time.Duration {
	return time.Duration(c.Loop.CycleSeconds) * time.Second
}

// MinSleep devuelve la espera mínima entre ciclos.
func (c *Config) MinSleep() time.Duration {
	return time.Duration(c.Loop.MinSleepSeconds) * time.Second
}

// Warmup devuelve el calentamiento tras el arranque.
func (c *Config) Warmup() time.Duration {
	return time.Duration(*c.Risk.WarmupMinutes) * time.Minute
}

// CallTimeout devuelve el límite duro de cada llamada al venue.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Venue.CallTimeoutSeconds) * time.Second
}

// SettleGuard, StatusAfter y SettleTimeout miden desde el vencimiento.
func (c *Config) SettleGuard() time.Duration {
	return time.Duration(c.Settlement.GuardSeconds) * time.Second
}

func (c *Config) StatusAfter() time.Duration {
	return time.Duration(c.Settlement.StatusAfterSeconds) * time.Second
}

func (c *Config) SettleTimeout() time.Duration {
	return time.Duration(c.Settlement.TimeoutSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VENUE_EMAIL"); v != "" {
		cfg.Venue.Email = v
	}
	if v := os.Getenv("VENUE_PASSWORD"); v != "" {
		cfg.Venue.Password = v
	}
	if v := os.Getenv("VENUE_ACCOUNT"); v != "" {
		cfg.Venue.AccountType = v
	}
	if v := os.Getenv("VENUE_BRIDGE_URL"); v != "" {
		cfg.Venue.BridgeURL = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.DiscordWebhook = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	s := &cfg.Strategy
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = 14
	}
	if s.Oversold <= 0 {
		s.Oversold = 35
	}
	if s.Overbought <= 0 {
		s.Overbought = 65
	}
	if s.ExpiryMinutes <= 0 {
		s.ExpiryMinutes = 2
	}
	if s.CandleSeconds <= 0 {
		s.CandleSeconds = 300
	}
	if s.CandleCount <= 0 {
		s.CandleCount = 100
	}
	if s.PositionPct <= 0 {
		s.PositionPct = 0.025
	}
	if s.PositionFloor <= 0 {
		s.PositionFloor = 4000
	}
	if s.SignalSpacingMinutes <= 0 {
		s.SignalSpacingMinutes = 60
	}
	if s.PayoutPct <= 0 {
		s.PayoutPct = 85
	}

	if cfg.Loop.CycleSeconds <= 0 {
		cfg.Loop.CycleSeconds = 15
	}
	if cfg.Loop.MinSleepSeconds <= 0 {
		cfg.Loop.MinSleepSeconds = 5
	}
	if cfg.Loop.SaveEvery <= 0 {
		cfg.Loop.SaveEvery = 30
	}
	if cfg.Loop.ResolveEvery <= 0 {
		cfg.Loop.ResolveEvery = 100
	}

	st := &cfg.Settlement
	if st.GuardSeconds <= 0 {
		st.GuardSeconds = 15
	}
	st.GuardSeconds = max(st.GuardSeconds, 10)
	if st.StatusAfterSeconds <= 0 {
		st.StatusAfterSeconds = 20
	}
	if st.TimeoutSeconds <= 0 {
		st.TimeoutSeconds = 120
	}
	if st.BalanceEpsilon <= 0 {
		st.BalanceEpsilon = 0.10
	}

	r := &cfg.Risk
	if r.AbsoluteStopPct <= 0 {
		r.AbsoluteStopPct = 0.75
	}
	if r.MonthlyStopPct <= 0 {
		r.MonthlyStopPct = 0.40
	}
	if r.MaxDailyConsecutiveLosses <= 0 {
		r.MaxDailyConsecutiveLosses = 3
	}
	if r.WarmupMinutes == nil || *r.WarmupMinutes < 0 {
		warmup := 60
		r.WarmupMinutes = &warmup
	}

	v := &cfg.Venue
	if v.BridgeURL == "" {
		v.BridgeURL = "http://127.0.0.1:8765"
	}
	v.AccountType = strings.ToUpper(v.AccountType)
	if v.AccountType == "" {
		v.AccountType = "PRACTICE"
	}
	if v.Workers <= 0 {
		v.Workers = 3
	}
	if v.CallTimeoutSeconds <= 0 {
		v.CallTimeoutSeconds = 10
	}

	p := &cfg.Paper
	if p.StartBalance <= 0 {
		p.StartBalance = 200000
	}
	if p.WinProbability <= 0 {
		p.WinProbability = 0.5
	}
	if p.PayoutPct <= 0 {
		p.PayoutPct = s.PayoutPct
	}

	if cfg.Storage.StatePath == "" {
		cfg.Storage.StatePath = "state.json"
	}
	if cfg.Storage.BackupDir == "" {
		cfg.Storage.BackupDir = "backups"
	}
	if cfg.Storage.JournalDSN == "" {
		cfg.Storage.JournalDSN = "rsibot.db"
	}
	if cfg.Alerts.Source == "" {
		cfg.Alerts.Source = "rsibot"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
