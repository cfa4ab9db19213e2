package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Storage struct {
	// DBPath is the Pebble database directory. Empty means memory-only
	// (no persistence), used by tests and throwaway devnets.
	DBPath string
}

type Exchange struct {
	// AdminAddress is the hex address of the single identity allowed to
	// create markets. Resolved here and passed into the engine as a
	// capability value.
	AdminAddress string

	// BookCapacity is the fixed maximum number of resting orders per book
	// side. Insertions beyond it fail rather than evict.
	BookCapacity int

	// SelfTradeSkip makes the engine skip a trader's own resting orders
	// during matching instead of crossing them.
	SelfTradeSkip bool
}

type API struct {
	ListenAddr string
}

type Config struct {
	Storage  Storage
	Exchange Exchange
	API      API
	LogFile  string
}

func Default() Config {
	return Config{
		Storage: Storage{DBPath: "data/harbor.db"},
		Exchange: Exchange{
			AdminAddress:  "0x0000000000000000000000000000000000000001",
			BookCapacity:  1024,
			SelfTradeSkip: false,
		},
		API:     API{ListenAddr: ":8080"},
		LogFile: "data/harbor.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("ADMIN_ADDRESS"); v != "" {
		cfg.Exchange.AdminAddress = v
	}
	if v := os.Getenv("BOOK_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Exchange.BookCapacity = n
		}
	}
	if v := os.Getenv("SELF_TRADE_SKIP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Exchange.SelfTradeSkip = b
		}
	}
	if v := os.Getenv("API_LISTEN_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}
