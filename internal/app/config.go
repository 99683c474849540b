package app

import (
	"strings"
	"time"

	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
	"github.com/vigilhq/recallwatch-backend/internal/utils"
)

type Config struct {
	Port string

	// Path to the YAML risk config seeded as version 1 on an empty
	// database.
	RiskConfigPath string

	// Marketplaces searched when a recall or investigation does not name
	// its own.
	DefaultMarketplaces []string

	SearchTimeout     time.Duration
	SearchesPerSecond float64
	QueueThreshold    float64

	// Mirror run events from the bus into the process log.
	LogRunEvents bool
}

func LoadConfig(log *logger.Logger) Config {
	port := utils.GetEnv("PORT", "8080", log)
	riskConfigPath := utils.GetEnv("RISK_CONFIG_PATH", "configs/risk_default.yaml", log)
	marketplaces := splitCSV(utils.GetEnv("DEFAULT_MARKETPLACES", "ebay,facebook,craigslist", log))
	searchTimeoutSeconds := utils.GetEnvAsInt("SEARCH_TIMEOUT_SECONDS", 30, log)
	searchesPerSecond := utils.GetEnvAsFloat("SEARCHES_PER_SECOND", 2.0, log)
	queueThreshold := utils.GetEnvAsFloat("QUEUE_SCORE_THRESHOLD", 0.6, log)
	logRunEvents := utils.GetEnvAsBool("LOG_RUN_EVENTS", true, log)

	return Config{
		Port:                port,
		RiskConfigPath:      riskConfigPath,
		DefaultMarketplaces: marketplaces,
		SearchTimeout:       time.Duration(searchTimeoutSeconds) * time.Second,
		SearchesPerSecond:   searchesPerSecond,
		QueueThreshold:      queueThreshold,
		LogRunEvents:        logRunEvents,
	}
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
