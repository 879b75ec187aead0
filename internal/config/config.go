package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

var cfg *koanf.Koanf

const (
	CMD          = "cmd"
	LOG_LEVEL    = "log.level"
	DATA_DIR     = "data.dir"
	REMOTE_URL   = "remote.url"
	REMOTE_TOKEN = "remote.token"
	FEED_URLS    = "feed.urls"
)

func Gist() *koanf.Koanf {
	if cfg == nil {
		ini()
	}
	return cfg
}

func Sprint() string {
	sb := strings.Builder{}
	sb.WriteString("cmd|required|-\n")
	sb.WriteString("log_level|optional|info\n")
	sb.WriteString("data_dir|optional|./var/plannersync\n")
	sb.WriteString("remote_url|required|-\n")
	sb.WriteString("remote_token|required|-\n")
	sb.WriteString("feed_urls|optional|-\n")
	return sb.String()
}

func ini() {
	cfg = koanf.New(".")
	cfg.Set(LOG_LEVEL, "info")

	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}

	f.String(CMD, "", "application run mode")
	f.String(LOG_LEVEL, "info", "log level")
	f.String(DATA_DIR, "./var/plannersync", "directory for the local snapshot")
	f.String(REMOTE_URL, "", "remote aggregate store base url")
	f.String(REMOTE_TOKEN, "", "remote store bearer token")
	f.StringSlice(FEED_URLS, nil, "calendar feed urls (https or webcal)")
	f.Parse(os.Args[1:])
	if err := cfg.Load(posflag.Provider(f, ".", cfg), nil); err != nil {
		log.Panic().Err(err).Msg("error loading config")
	}
	lvl, err := zerolog.ParseLevel(cfg.String(LOG_LEVEL))
	if err != nil {
		log.Panic().Err(err).Msg("error parsing log level")
	}
	zerolog.SetGlobalLevel(lvl)

	printCfg()
}

func printCfg() {
	log.Debug().Msgf("cmd: %s", cfg.String(CMD))
	log.Debug().Msgf("log_level: %s", cfg.String(LOG_LEVEL))
	log.Debug().Msgf("data_dir: %s", cfg.String(DATA_DIR))
	log.Debug().Msgf("remote_url: %s", cfg.String(REMOTE_URL))
	log.Debug().Msgf("feed_urls: %s", strings.Join(cfg.Strings(FEED_URLS), ","))
}
