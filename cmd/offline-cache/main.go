package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	offlinecache "github.com/ia-sport/offline-cache"
	"github.com/ia-sport/offline-cache/cache"
	"github.com/ia-sport/offline-cache/pkg/lifetime"
	"github.com/ia-sport/offline-cache/push"
)

var (
	// CLI flags
	configFilenameFlag string
	originFlag         string
	portFlag           int
	dbFilenameFlag     string
	versionFlag        string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to front (overrides config)")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&dbFilenameFlag, "db", "offline-cache.db", "Cache DB file name (use 'memory' for in-memory db)")
	flag.StringVar(&versionFlag, "cache-version", "v1", "Cache generation version stamp")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config := Config{}
	if configFilenameFlag != "" {
		var err error
		config, err = getConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
	}
	if originFlag != "" {
		config.Origin = originFlag
	}
	if config.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}
	if config.Port <= 0 {
		config.Port = portFlag
	}
	if config.Version == "" {
		config.Version = versionFlag
	}

	originURL, err := url.Parse(config.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}

	// set up sqlite provider
	dbFilename := dbFilenameFlag
	if dbFilename == "memory" {
		dbFilename = "file::memory:?cache=shared"
	}

	worker := offlinecache.New(offlinecache.Config{
		Cache:      cache.NewSQLiteCache(dbFilename),
		OriginURL:  *originURL,
		OriginHost: config.Host,
		Logger:     &log.Logger,
		Caches:     cache.DefaultSet(config.Version),
		APIPrefix:  config.APIPrefix,
		ShellPath:  config.ShellPath,
		SyncPath:   config.SyncPath,
		Precache:   config.Precache,
	})

	ctx := context.Background()

	// install and activate the current cache generation on boot
	evt := lifetime.NewEvent()
	worker.Install(ctx, evt)
	evt.Wait()
	evt = lifetime.NewEvent()
	worker.Activate(ctx, evt)
	evt.Wait()

	online := make(chan struct{}, 1)
	go worker.RunSyncLoop(ctx, online)

	bridge := push.NewBridge(logNotifier{}, noClients{}, &log.Logger)

	// control endpoints next to the worker handler
	r := chi.NewRouter()
	r.Post("/-/sync", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Tag string `json:"tag"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Tag == "" {
			body.Tag = offlinecache.SyncTagPredictions
		}
		worker.RequestSync(body.Tag)
		select {
		case online <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post("/-/message", func(w http.ResponseWriter, r *http.Request) {
		var msg offlinecache.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "bad message", http.StatusBadRequest)
			return
		}
		worker.HandleMessage(r.Context(), msg)
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post("/-/push", func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		evt := lifetime.NewEvent()
		bridge.OnPush(r.Context(), evt, payload)
		evt.Wait()
		w.WriteHeader(http.StatusAccepted)
	})
	r.Handle("/*", worker)

	log.Info().Msgf("Fronting %s on port %d (cache generation '%s')", config.Origin, config.Port, config.Version)
	err = http.ListenAndServe(fmt.Sprintf(":%d", config.Port), r)

	if err != nil {
		panic(err)
	}
}

// logNotifier renders notifications into the log, which is as visible
// as a headless gateway can make them.
type logNotifier struct{}

func (logNotifier) Show(_ context.Context, title string, opts push.Options) error {
	log.Info().
		Str("title", title).
		Str("body", opts.Body).
		Str("url", opts.Data.URL).
		Msg("Notification")
	return nil
}

func (logNotifier) Close(_ context.Context, id string) error {
	log.Debug().Str("id", id).Msg("Notification closed")
	return nil
}

// noClients is the window-client registry of a headless gateway.
type noClients struct{}

func (noClients) MatchAll(context.Context) ([]push.WindowClient, error) {
	return nil, nil
}

func (noClients) OpenWindow(_ context.Context, url string) (push.WindowClient, error) {
	log.Info().Str("url", url).Msg("Open window")
	return nil, nil
}
