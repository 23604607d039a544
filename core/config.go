package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug                     bool          `mapstructure:"debug"`
		TestMode                  bool          `mapstructure:"testMode"`
		AppName                   string        `mapstructure:"appName"`
		Build                     string        `mapstructure:"build"`
		Env                       string        `mapstructure:"-"`
		SecretKey                 string        `mapstructure:"secretKey"`
		RollbarToken              string        `mapstructure:"rollbarToken"`
		SendgridApiKey            string        `mapstructure:"sendgridApiKey"`
		DefaultFromEmailRaw       string        `mapstructure:"defaultFromEmail"`
		FrontendBaseURL           string        `mapstructure:"frontendBaseURL"`
		PasswordResetTimeoutDelta time.Duration `mapstructure:"passwordResetTimeoutDelta"`
		WorkDir                   string        `mapstructure:"workDir"`

		Server    ServerConfig    `mapstructure:"server"`
		Database  DatabaseConfig  `mapstructure:"database"`
		Redis     RedisConfig     `mapstructure:"redis"`
		Scheduler SchedulerConfig `mapstructure:"scheduler"`
	}

	ServerConfig struct {
		Host                      string        `mapstructure:"host"`
		DebugHost                 string        `mapstructure:"debugHost"`
		ReadTimeout               time.Duration `mapstructure:"readTimeout"`
		WriteTimeout              time.Duration `mapstructure:"writeTimeout"`
		ShutdownTimeout           time.Duration `mapstructure:"shutdownTimeout"`
		JWTExpirationDelta        time.Duration `mapstructure:"jwtExpirationDelta"`
		JWTRefreshExpirationDelta time.Duration `mapstructure:"jwtRefreshExpirationDelta"`
	}

	DatabaseConfig struct {
		Engine        string `mapstructure:"engine"`
		Host          string `mapstructure:"host"`
		Port          int    `mapstructure:"port"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminUser"`
		AdminPassword string `mapstructure:"adminPassword"`
		Name          string `mapstructure:"name"`
		DisableTLS    bool   `mapstructure:"disableTLS"`
		MaxOpenConns  int    `mapstructure:"maxOpenConns"`
	}

	RedisConfig struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Prefix   string `mapstructure:"prefix"`
	}

	SchedulerConfig struct {
		Enabled            bool          `mapstructure:"enabled"`
		QuizReminderSpec   string        `mapstructure:"quizReminderSpec"`
		QuizReminderWindow time.Duration `mapstructure:"quizReminderWindow"`
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmailRaw)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.DefaultFromEmailRaw}
	}
	return *addr
}

// NewConfig loads the configuration of the current ENV (DEV by default).
// Values come from defaults, then config/.env.<env> (if any), then <ENV>_ prefixed environment variables,
// e.g. DEV_DATABASE_HOST or PROD_SECRETKEY.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := new(Config)
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(conf, viper.DecodeHook(hook)); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	conf.Env = env
	if conf.WorkDir == "" {
		conf.WorkDir = workDir
	}
	return conf
}

// NewTestConfig returns the configuration used by tests: no files, no environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("testMode", true)

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		panic(fmt.Sprintf("config.Unmarshal: %v", err))
	}
	conf.Env = "TEST"
	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "EduNex")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "EduNex <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("workDir", "")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "edunex")
	v.SetDefault("database.password", "edunex")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.name", "edunex")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 25)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "edunex")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.quizReminderSpec", "*/10 * * * *")
	v.SetDefault("scheduler.quizReminderWindow", time.Hour)
}
