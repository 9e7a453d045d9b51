package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"das-core/params"
)

// Config is the process configuration. Values come from the environment
// (optionally seeded from a .env file) and may be overridden by flags.
type Config struct {
	// SocketCAN interfaces. An empty CamIface reads the autopilot messages
	// from the party interface.
	PartyIface   string
	VehicleIface string
	CamIface     string

	// Optional signal map overrides (.dbc or .csv). Empty uses the built-in tables.
	PartyMap   string
	VehicleMap string

	ScenarioPath string
	ParamsRoot   string

	// Export backends: any of msgq, redis, mqtt, http.
	Export       []string
	MsgqName     string
	RedisAddr    string
	RedisKey     string
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string
	HTTPAddr     string

	LogLevel string
	LogFile  string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, using environment variables")
	}

	return Config{
		PartyIface:   getEnv("DAS_PARTY_IFACE", "can0"),
		VehicleIface: getEnv("DAS_VEHICLE_IFACE", "can1"),
		CamIface:     getEnv("DAS_CAM_IFACE", ""),

		PartyMap:   getEnv("DAS_PARTY_MAP", ""),
		VehicleMap: getEnv("DAS_VEHICLE_MAP", ""),

		ScenarioPath: getEnv("DAS_SCENARIO", "control_loop/scenarios/highway_lka.json"),
		ParamsRoot:   getEnv("DAS_PARAMS_ROOT", params.DefaultRoot),

		Export:       splitList(getEnv("DAS_EXPORT", "")),
		MsgqName:     getEnv("DAS_MSGQ_NAME", "carState"),
		RedisAddr:    getEnv("DAS_REDIS_ADDR", "localhost:6379"),
		RedisKey:     getEnv("DAS_REDIS_KEY", "das:carstate"),
		MQTTBroker:   getEnv("DAS_MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("DAS_MQTT_CLIENT_ID", "dasctl"),
		MQTTTopic:    getEnv("DAS_MQTT_TOPIC", "das/carstate"),
		HTTPAddr:     getEnv("DAS_HTTP_ADDR", ":8080"),

		LogLevel: getEnv("DAS_LOG_LEVEL", "info"),
		LogFile:  getEnv("DAS_LOG_FILE", "control_loop.log"),
	}
}

// SharedCam reports whether the autopilot messages arrive on the party interface.
func (c Config) SharedCam() bool {
	return c.CamIface == "" || c.CamIface == c.PartyIface
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(strings.ToLower(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
