package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		Address            string
		DebugAddress       string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		CORSOrigins        []string
	}

	DatabaseConfig struct {
		Engine        string // postgres | pgx | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Address  string
		Password string
	}

	UploadsConfig struct {
		Dir       string
		URLPrefix string
	}

	SchedulingConfig struct {
		TimeZone          string
		ReminderInterval  time.Duration
		ReminderLead      time.Duration
		ReminderTimeout   time.Duration
		TutorCancelNotice time.Duration
	}

	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		SecretKey        string
		FrontendBaseURL  string
		SendgridApiKey   string
		RollbarToken     string
		defaultFromEmail string

		Server     ServerConfig
		Database   DatabaseConfig
		Redis      RedisConfig
		Uploads    UploadsConfig
		Scheduling SchedulingConfig

		location *time.Location
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// Location is the time zone used to match booking times against weekly availability.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "TutorConnect")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", "k3v!0q9z-tutor)connect$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", `"TutorConnect" <noreply@localhost>`)
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":5000")
	conf.SetDefault("server.debugAddress", ":5001")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	conf.SetDefault("server.corsOrigins", []string{"http://localhost:3000"})

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "tutorconnect")
	conf.SetDefault("database.user", "tutorconnect")
	conf.SetDefault("database.password", "tutorconnect")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("redis.address", "")
	conf.SetDefault("redis.password", "")

	conf.SetDefault("uploads.dir", "uploads")
	conf.SetDefault("uploads.urlPrefix", "/uploads")

	conf.SetDefault("scheduling.timeZone", "UTC")
	conf.SetDefault("scheduling.reminderInterval", time.Minute)
	conf.SetDefault("scheduling.reminderLead", time.Hour)
	conf.SetDefault("scheduling.reminderTimeout", 30*time.Second)
	conf.SetDefault("scheduling.tutorCancelNotice", 2*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("database.engine", "memory")
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	c := &Config{
		AppName:          conf.GetString("appName"),
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		WorkDir:          wd,
		SecretKey:        conf.GetString("secretKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:               conf.GetString("server.host"),
			Address:            conf.GetString("server.address"),
			DebugAddress:       conf.GetString("server.debugAddress"),
			ShutdownTimeout:    conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("server.jwtExpirationDelta"),
			CORSOrigins:        conf.GetStringSlice("server.corsOrigins"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Address:  conf.GetString("redis.address"),
			Password: conf.GetString("redis.password"),
		},
		Uploads: UploadsConfig{
			Dir:       conf.GetString("uploads.dir"),
			URLPrefix: conf.GetString("uploads.urlPrefix"),
		},
		Scheduling: SchedulingConfig{
			TimeZone:          conf.GetString("scheduling.timeZone"),
			ReminderInterval:  conf.GetDuration("scheduling.reminderInterval"),
			ReminderLead:      conf.GetDuration("scheduling.reminderLead"),
			ReminderTimeout:   conf.GetDuration("scheduling.reminderTimeout"),
			TutorCancelNotice: conf.GetDuration("scheduling.tutorCancelNotice"),
		},
	}
	if !filepath.IsAbs(c.Uploads.Dir) {
		c.Uploads.Dir = filepath.Join(wd, c.Uploads.Dir)
	}

	loc, err := time.LoadLocation(c.Scheduling.TimeZone)
	if err != nil {
		log.Fatalf("config.time.LoadLocation(%s): %v", c.Scheduling.TimeZone, err)
	}
	c.location = loc
	return c
}

// NewTestConfig returns the configuration used by package tests.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "TutorConnect",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		WorkDir:          os.TempDir(),
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		defaultFromEmail: `"TutorConnect" <noreply@localhost>`,
		Server: ServerConfig{
			Host:               "example.com",
			JWTExpirationDelta: 24 * time.Hour,
		},
		Database: DatabaseConfig{Engine: "memory"},
		Uploads: UploadsConfig{
			Dir:       filepath.Join(os.TempDir(), "tutorconnect-uploads"),
			URLPrefix: "/uploads",
		},
		Scheduling: SchedulingConfig{
			TimeZone:          "UTC",
			ReminderInterval:  time.Minute,
			ReminderLead:      time.Hour,
			ReminderTimeout:   30 * time.Second,
			TutorCancelNotice: 2 * time.Hour,
		},
		location: time.UTC,
	}
}
