package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	ML       MLConfig       `yaml:"ml" mapstructure:"ml"`
	Train    TrainConfig    `yaml:"train" mapstructure:"train"`
	Partners PartnersConfig `yaml:"partners" mapstructure:"partners"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// MLConfig locates the serving artifacts and the selection report.
type MLConfig struct {
	BestModelPath     string `yaml:"best_model_path" mapstructure:"best_model_path"`
	RunnerUpModelPath string `yaml:"runner_up_model_path" mapstructure:"runner_up_model_path"`
	ReportPath        string `yaml:"report_path" mapstructure:"report_path"`
}

// TrainConfig configures the training pipeline.
type TrainConfig struct {
	DatasetPath string         `yaml:"dataset_path" mapstructure:"dataset_path"`
	OutputDir   string         `yaml:"output_dir" mapstructure:"output_dir"`
	RandomSeed  int64          `yaml:"random_seed" mapstructure:"random_seed"`
	Tiebreak    TiebreakConfig `yaml:"tiebreak" mapstructure:"tiebreak"`
}

// TiebreakConfig holds the technical-tie epsilons for model selection.
type TiebreakConfig struct {
	ROCAUC float64 `yaml:"roc_auc" mapstructure:"roc_auc"`
	PRAUC  float64 `yaml:"pr_auc" mapstructure:"pr_auc"`
	Brier  float64 `yaml:"brier" mapstructure:"brier"`
}

// PartnersConfig configures the partner directory build.
type PartnersConfig struct {
	TargetStates []string `yaml:"target_states" mapstructure:"target_states"`
	Separator    string   `yaml:"separator" mapstructure:"separator"`
	ChunkSize    int      `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// ServerConfig configures the scoring server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "leadscore.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("ml.best_model_path", "models/lead_scoring_best_model.gob")
	v.SetDefault("ml.runner_up_model_path", "models/lead_scoring_runner_up_model.gob")
	v.SetDefault("ml.report_path", "models/model_selection_report.json")
	v.SetDefault("train.dataset_path", "data/lead_scoring_dataset.csv")
	v.SetDefault("train.output_dir", "models")
	v.SetDefault("train.random_seed", 42)
	v.SetDefault("train.tiebreak.roc_auc", 0.005)
	v.SetDefault("train.tiebreak.pr_auc", 0.003)
	v.SetDefault("train.tiebreak.brier", 0.002)
	v.SetDefault("partners.target_states", []string{"MG", "SP", "GO"})
	v.SetDefault("partners.separator", ";")
	v.SetDefault("partners.chunk_size", 5000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given command mode depends on.
func (c *Config) Validate(mode string) error {
	var problems []string

	storeRequired := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.SQLitePath == "" {
				problems = append(problems, "store.sqlite_path is required")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.ML.BestModelPath == "" {
			problems = append(problems, "ml.best_model_path is required")
		}
	case "train":
		if c.Train.DatasetPath == "" {
			problems = append(problems, "train.dataset_path is required")
		}
		if c.Train.OutputDir == "" {
			problems = append(problems, "train.output_dir is required")
		}
		if c.Train.Tiebreak.ROCAUC < 0 || c.Train.Tiebreak.PRAUC < 0 || c.Train.Tiebreak.Brier < 0 {
			problems = append(problems, "train.tiebreak epsilons must be >= 0")
		}
	case "backfill":
		storeRequired()
		if c.ML.BestModelPath == "" {
			problems = append(problems, "ml.best_model_path is required")
		}
	case "partners", "migrate":
		storeRequired()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
