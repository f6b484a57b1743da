package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	BlobConfig struct {
		RootDir string
		BaseURL string // external prefix under which stored files are served
	}

	GoogleConfig struct {
		ClientID string // audience expected in Google ID tokens
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		Build    string
		AppName  string

		SecretKey       []byte
		FrontendBaseURL string
		WorkDir         string

		// admin allow-list: these emails get an admin marker at registration
		AdminEmails []string

		EmailVerificationTimeoutDelta time.Duration
		PasswordResetTimeoutDelta     time.Duration

		DefaultFromName  string
		defaultFromEmail string
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Blob     BlobConfig
		Google   GoogleConfig
	}
)

func NewConfig() *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "DDQuest")
	conf.SetDefault("secretKey", "e0q5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("adminEmails", []string{"bhoidhruv24@gmail.com", "dhobived252@gmail.com"})
	conf.SetDefault("emailVerificationTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.addr", ":8000")
	conf.SetDefault("server.debugHost", "localhost:9000")
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("server.shutdownTimeout", 20*time.Second)
	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.name", "ddquest")
	conf.SetDefault("database.user", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("blob.rootDir", "var/blobs")
	conf.SetDefault("blob.baseURL", "http://localhost:8000/v1/files")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Debug:           conf.GetBool("debug"),
		TestMode:        env == "TEST",
		Env:             env,
		Build:           conf.GetString("build"),
		AppName:         conf.GetString("appName"),
		SecretKey:       []byte(conf.GetString("secretKey")),
		FrontendBaseURL: conf.GetString("frontendBaseURL"),
		WorkDir:         wd,
		AdminEmails:     conf.GetStringSlice("adminEmails"),

		EmailVerificationTimeoutDelta: conf.GetDuration("emailVerificationTimeoutDelta"),
		PasswordResetTimeoutDelta:     conf.GetDuration("passwordResetTimeoutDelta"),

		DefaultFromName:  conf.GetString("appName"),
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),

		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			Addr:                      conf.GetString("server.addr"),
			DebugHost:                 conf.GetString("server.debugHost"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Blob: BlobConfig{
			RootDir: conf.GetString("blob.rootDir"),
			BaseURL: conf.GetString("blob.baseURL"),
		},
		Google: GoogleConfig{
			ClientID: conf.GetString("google.clientID"),
		},
	}
}

// NewTestConfig returns a fixed configuration for tests.
func NewTestConfig() *Config {
	return &Config{
		Debug:                         true,
		TestMode:                      true,
		Env:                           "TEST",
		AppName:                       "DDQuest",
		SecretKey:                     []byte("secret"),
		FrontendBaseURL:               "http://localhost:3000",
		WorkDir:                       Getwd(),
		AdminEmails:                   []string{"bhoidhruv24@gmail.com", "dhobived252@gmail.com"},
		EmailVerificationTimeoutDelta: 3 * 24 * time.Hour,
		PasswordResetTimeoutDelta:     3 * 24 * time.Hour,
		DefaultFromName:               "DDQuest",
		defaultFromEmail:              "noreply@test.test",
		Server: ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
	}
}

func (conf *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.DefaultFromName, Address: conf.defaultFromEmail}
}

// IsAdminEmail reports whether email is on the administrator allow-list.
func (conf *Config) IsAdminEmail(email string) bool {
	for _, adm := range conf.AdminEmails {
		if strings.EqualFold(email, adm) {
			return true
		}
	}
	return false
}

func (db DatabaseConfig) Address() string {
	return db.Host + ":" + db.Port
}
