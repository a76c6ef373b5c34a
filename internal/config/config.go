package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const envPrefix = "CRUDADMIN_"

type Config struct {
	Port string `json:"port"`

	// Схема и конфиги
	SchemaPath  string `json:"schemaPath"`
	ModelsDir   string `json:"modelsDir"`
	CrudDir     string `json:"crudDir"`
	CrudPrefix  string `json:"crudPrefix"`
	PruneDetail bool   `json:"pruneDetail"`

	// Необязательные таблицы: эвристики типов и справочники
	HeuristicsPath string `json:"heuristicsPath"`
	CatalogsDir    string `json:"catalogsDir"`

	// Хранилище записей: memory | postgres | mysql | sqlite
	StoreDriver string `json:"storeDriver"`
	DSN         string `json:"dsn"`
}

func Default() Config {
	return Config{
		Port:        "8080",
		SchemaPath:  "prisma/schema.prisma",
		ModelsDir:   "config/models",
		CrudDir:     "config/crud",
		CrudPrefix:  "Crud",
		PruneDetail: false,

		HeuristicsPath: "",
		CatalogsDir:    "",

		StoreDriver: "memory",
		DSN:         "",
	}
}

func loadJSON(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, c)
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + k); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(envPrefix + k); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return fallback
}

func parseBool(v string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// Load: значения по умолчанию → JSON (если есть) → .env (не перекрывает уже
// заданные переменные) → переменные CRUDADMIN_*. Флаги применяет ApplyFlags.
func Load(jsonPath, envPath string) (Config, error) {
	cfg := Default()

	if jsonPath != "" {
		if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
			if err := loadJSON(jsonPath, &cfg); err != nil {
				return cfg, errors.Wrapf(err, "config %s", jsonPath)
			}
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return cfg, errors.Wrapf(err, "env file %s", envPath)
		}
	}

	// PORT: общепринятая переменная платформ, CRUDADMIN_PORT важнее
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Port = v
	}
	cfg.Port = getenv("PORT", cfg.Port)
	cfg.SchemaPath = getenv("SCHEMA_PATH", cfg.SchemaPath)
	cfg.ModelsDir = getenv("MODELS_DIR", cfg.ModelsDir)
	cfg.CrudDir = getenv("CRUD_DIR", cfg.CrudDir)
	cfg.CrudPrefix = getenv("CRUD_PREFIX", cfg.CrudPrefix)
	cfg.PruneDetail = getenvBool("PRUNE_DETAIL", cfg.PruneDetail)
	cfg.HeuristicsPath = getenv("HEURISTICS", cfg.HeuristicsPath)
	cfg.CatalogsDir = getenv("CATALOGS_DIR", cfg.CatalogsDir)
	cfg.StoreDriver = getenv("STORE", cfg.StoreDriver)
	cfg.DSN = getenv("DSN", cfg.DSN)

	return cfg, nil
}

// BindFlags регистрирует флаги конфигурации; значения по умолчанию пустые,
// применяются только явно заданные флаги.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("port", "", "HTTP port")
	fs.String("schema", "", "Path to schema.prisma")
	fs.String("models-dir", "", "Directory of per-model JSON configs")
	fs.String("crud-dir", "", "Directory of index/detail JSON files")
	fs.String("crud-prefix", "", "Model name prefix that enables CRUD without annotation")
	fs.String("prune-detail", "", "Prune vanished models from the detail file (true/false)")
	fs.String("heuristics", "", "YAML file with field type heuristics")
	fs.String("catalogs-dir", "", "Directory of YAML option catalogs")
	fs.String("store", "", "Record store: memory|postgres|mysql|sqlite")
	fs.String("dsn", "", "Database DSN for sql stores")
}

func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = strings.TrimSpace(v)
		}
	}
	str("port", &c.Port)
	str("schema", &c.SchemaPath)
	str("models-dir", &c.ModelsDir)
	str("crud-dir", &c.CrudDir)
	str("crud-prefix", &c.CrudPrefix)
	str("heuristics", &c.HeuristicsPath)
	str("catalogs-dir", &c.CatalogsDir)
	str("store", &c.StoreDriver)
	str("dsn", &c.DSN)
	if fs.Changed("prune-detail") {
		v, _ := fs.GetString("prune-detail")
		b, ok := parseBool(v)
		if !ok {
			return errors.Newf("invalid --prune-detail %q", v)
		}
		c.PruneDetail = b
	}
	return nil
}

func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return errors.Newf("invalid port %q", c.Port)
	}
	if c.SchemaPath == "" || c.ModelsDir == "" || c.CrudDir == "" {
		return errors.New("schemaPath, modelsDir and crudDir are required")
	}
	switch strings.ToLower(c.StoreDriver) {
	case "memory":
	case "postgres", "mysql", "sqlite":
		if c.DSN == "" {
			return errors.Newf("store %q requires a dsn", c.StoreDriver)
		}
	default:
		return errors.Newf("unknown store %q", c.StoreDriver)
	}
	return nil
}

// Addr возвращает адрес http-сервера.
func (c Config) Addr() string { return ":" + c.Port }
