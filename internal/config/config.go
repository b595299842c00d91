package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "CRMDESK_"

type Application struct {
	Host     string   `koanf:"host"`
	Port     int      `koanf:"port"`
	Google   Google   `koanf:"google"`
	Calendar Calendar `koanf:"calendar"`
	Contacts Contacts `koanf:"contacts"`
	Database Database `koanf:"db"`
}

type Google struct {
	ClientId     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
	ApiKey       string `koanf:"apikey"`
	// DiscoveryUrls overrides the discovery documents fetched during bootstrap.
	DiscoveryUrls []string `koanf:"discoveryurls"`
	// BootstrapTimeout bounds one initialization run including all discovery fetches.
	BootstrapTimeout time.Duration `koanf:"bootstraptimeout"`
}

type Calendar struct {
	DefaultCalendarId string `koanf:"defaultcalendarid"`
	DefaultTimezone   string `koanf:"defaulttimezone"`
	// ListLookbackMonths is how many calendar months into the past a full sync reaches.
	ListLookbackMonths int `koanf:"listlookbackmonths"`
}

type Contacts struct {
	CacheTtl       time.Duration `koanf:"cachettl"`
	RefreshTimeout time.Duration `koanf:"refreshtimeout"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

func Defaults() Application {
	return Application{
		Host: "http://localhost:3000",
		Port: 8181,
		Google: Google{
			BootstrapTimeout: 30 * time.Second,
		},
		Calendar: Calendar{
			DefaultCalendarId:  "primary",
			DefaultTimezone:    "UTC",
			ListLookbackMonths: 1,
		},
		Contacts: Contacts{
			CacheTtl:       5 * time.Minute,
			RefreshTimeout: 30 * time.Second,
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "crmdesk",
			Pass:   "",
			Name:   "crmdesk",
			Schema: "crmdesk",
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			if k == "google.discoveryurls" {
				return k, strings.Split(v, ",")
			}
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
