package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// VoiceServer describes a media server clients connect to for voice rooms.
type VoiceServer struct {
	ID     string
	Socket string
}

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	GatewayToken           string
	EventChannelBase       string
	UserTokenTTL           time.Duration
	ChallengeTokenTTL      time.Duration
	VoiceTokenTTL          time.Duration
	VoiceServers           []VoiceServer
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// VoiceServer looks up a configured media server by id.
func (c Config) VoiceServer(id string) (VoiceServer, bool) {
	for _, server := range c.VoiceServers {
		if server.ID == id {
			return server, true
		}
	}
	return VoiceServer{}, false
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("OCTAVE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Octave API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel_base", "octave")
	v.SetDefault("token.user_ttl", "1176h")
	v.SetDefault("token.challenge_ttl", "30s")
	v.SetDefault("token.voice_ttl", "30s")
	v.SetDefault("cloudinary.folder", "octave/avatars")

	userTTL, err := time.ParseDuration(v.GetString("token.user_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid user token ttl: %w", err)
	}

	challengeTTL, err := time.ParseDuration(v.GetString("token.challenge_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid challenge token ttl: %w", err)
	}

	voiceTTL, err := time.ParseDuration(v.GetString("token.voice_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid voice token ttl: %w", err)
	}

	voiceServers, err := parseVoiceServers(v.GetString("voice.servers"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		GatewayToken:           v.GetString("gateway.token"),
		EventChannelBase:       v.GetString("events.channel_base"),
		UserTokenTTL:           userTTL,
		ChallengeTokenTTL:      challengeTTL,
		VoiceTokenTTL:          voiceTTL,
		VoiceServers:           voiceServers,
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}

func parseVoiceServers(raw string) ([]VoiceServer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	pairs := strings.Split(raw, ",")
	servers := make([]VoiceServer, 0, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid voice server entry %q", pair)
		}
		servers = append(servers, VoiceServer{ID: parts[0], Socket: parts[1]})
	}

	return servers, nil
}
