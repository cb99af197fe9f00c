package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del mirror.
type Config struct {
	Wallet     WalletConfig     `yaml:"wallet"`
	Mirror     MirrorConfig     `yaml:"mirror"`
	Redemption RedemptionConfig `yaml:"redemption"`
	API        APIConfig        `yaml:"api"`
	RPC        RPCConfig        `yaml:"rpc"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

// WalletConfig identifica la wallet propia y la wallet a copiar.
type WalletConfig struct {
	PrivateKey    string `yaml:"private_key"`    // clave privada de Polygon, sin prefijo 0x
	TargetAddress string `yaml:"target_address"` // wallet cuyos trades se copian
}

// MirrorConfig controla el sizing y el comportamiento del copiado.
type MirrorConfig struct {
	Enabled            bool    `yaml:"enabled"`
	SizeMultiplier     float64 `yaml:"size_multiplier"`       // escala del trade observado
	MaxOrderAmount     float64 `yaml:"max_order_amount"`      // techo en USDC por orden; 0 = sin límite
	OrderType          string  `yaml:"order_type"`            // FAK | FOK
	TickSize           float64 `yaml:"tick_size"`
	NegRisk            bool    `yaml:"neg_risk"`
	MaxTradeAgeMinutes int     `yaml:"max_trade_age_minutes"` // eventos más viejos se descartan
	PauseBehavior      string  `yaml:"pause_behavior"`        // defer | drop
}

// RedemptionConfig controla el barrido de redenciones.
type RedemptionConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"` // 0 = scheduler deshabilitado
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	CLOBBase string `yaml:"clob_base"`
	WSBase   string `yaml:"ws_base"`
}

// RPCConfig contiene los endpoints RPC de Polygon en orden de preferencia.
type RPCConfig struct {
	Endpoints []string `yaml:"endpoints"`
}

// StorageConfig controla dónde se persiste el ledger.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
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

	// enabled=true salvo que el YAML o el env digan lo contrario.
	cfg := Config{Mirror: MirrorConfig{Enabled: true}}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		// Sin YAML también vale: todo puede venir de env vars.
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Validate comprueba las credenciales requeridas para operar en vivo.
// Los reportes de holdings/history no las necesitan.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("config: missing wallet private key (POLY_PRIVATE_KEY)")
	}
	if c.Wallet.TargetAddress == "" {
		return fmt.Errorf("config: missing target wallet address (TARGET_WALLET)")
	}
	if len(c.RPC.Endpoints) == 0 {
		return fmt.Errorf("config: no RPC endpoints configured (RPC_ENDPOINTS)")
	}
	switch c.Mirror.OrderType {
	case "FAK", "FOK":
	default:
		return fmt.Errorf("config: invalid order_type %q (want FAK or FOK)", c.Mirror.OrderType)
	}
	switch c.Mirror.PauseBehavior {
	case "defer", "drop":
	default:
		return fmt.Errorf("config: invalid pause_behavior %q (want defer or drop)", c.Mirror.PauseBehavior)
	}
	return nil
}

// RedemptionInterval devuelve el intervalo del scheduler; 0 = deshabilitado.
func (c *Config) RedemptionInterval() time.Duration {
	return time.Duration(c.Redemption.IntervalMinutes) * time.Minute
}

// MaxTradeAge devuelve la edad máxima aceptada para un evento del feed.
func (c *Config) MaxTradeAge() time.Duration {
	return time.Duration(c.Mirror.MaxTradeAgeMinutes) * time.Minute
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POLY_PRIVATE_KEY"); v != "" {
		cfg.Wallet.PrivateKey = strings.TrimPrefix(v, "0x")
	}
	if v := os.Getenv("TARGET_WALLET"); v != "" {
		cfg.Wallet.TargetAddress = v
	}
	if v := os.Getenv("RPC_ENDPOINTS"); v != "" {
		cfg.RPC.Endpoints = splitAndTrim(v)
	}
	if v := os.Getenv("MIRROR_ENABLED"); v != "" {
		cfg.Mirror.Enabled = strings.EqualFold(v, "true") || v == "1"
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
	if cfg.Mirror.SizeMultiplier <= 0 {
		cfg.Mirror.SizeMultiplier = 1.0
	}
	if cfg.Mirror.OrderType == "" {
		cfg.Mirror.OrderType = "FAK"
	}
	if cfg.Mirror.TickSize <= 0 {
		cfg.Mirror.TickSize = 0.01
	}
	if cfg.Mirror.MaxTradeAgeMinutes <= 0 {
		cfg.Mirror.MaxTradeAgeMinutes = 5
	}
	if cfg.Mirror.PauseBehavior == "" {
		cfg.Mirror.PauseBehavior = "defer"
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.WSBase == "" {
		cfg.API.WSBase = "wss://ws-live-data.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polymirror.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
