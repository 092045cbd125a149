package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Nocturne/config"
	"Nocturne/handlers"
	"Nocturne/music"
	"Nocturne/playlist"
	"Nocturne/queue"
	"Nocturne/radio"
	"Nocturne/resolver"
	"Nocturne/session"
	"Nocturne/settings"
	"Nocturne/track"
	"Nocturne/voice"
	"Nocturne/yt"

	"github.com/Strum355/log"
	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

var production *bool

func main() {
	// Sets Flag to Debug Mode
	production = flag.Bool("p", false, "enables production with json logging")
	flag.Parse()
	if *production {
		log.InitJSONLogger(&log.Config{Output: os.Stdout})
	} else {
		log.InitSimpleLogger(&log.Config{Output: os.Stdout})
	}

	// Sets up Configurations for Viper
	config.InitConfig()

	s, err := discordgo.New("Bot " + viper.GetString("discord.token"))
	if err != nil {
		log.WithError(err).Error("Failed to create discord session")
		return
	}

	rdb := redis.NewClient(&redis.Options{Addr: viper.GetString("redis.address")})

	defaults := settings.Limits{
		MaxTrackDuration: config.Seconds("music.duration.limit"),
		MaxQueueSize:     viper.GetInt("music.queue.limit"),
	}
	store, err := settings.NewStore(viper.GetString("postgres.dsn"), defaults)
	if err != nil {
		log.WithError(err).Error("Failed to open settings store")
		return
	}
	playlists, err := playlist.NewStore(store.DB())
	if err != nil {
		log.WithError(err).Error("Failed to open playlist store")
		return
	}

	// The codec and radio decoder reference each other: encoded tracks may
	// carry a radio source, and radio playlists decode stored tracks.
	codec := &track.Codec{}
	loader := resolver.NewCaching(yt.NewBackend(), codec, rdb, resolver.TTLs{
		Track:    config.Seconds("cache.track"),
		Search:   config.Seconds("cache.search"),
		Playlist: config.Seconds("cache.playlist"),
	})
	radios := &radio.Decoder{
		Stations:  radio.LoadLibrary(viper.GetString("radio.stations.dir")),
		Resolver:  loader,
		Playlists: playlists,
		Codec:     codec,
	}
	codec.Radio = radios

	voices := voice.NewManager(s)
	registry := session.NewRegistry(session.Deps{
		Queues:      func(guildID string) queue.Queue { return queue.NewRedis(rdb, guildID) },
		Connections: voices.Connection,
		Provider:    yt.NewProvider(rdb),
		Codec:       codec,
		Notifier:    handlers.NewChannelNotifier(s),
		Guilds:      handlers.NewDirectory(s),
		Settings:    store,

		LeaveDelay:    config.Seconds("music.leave.delay"),
		SweepInterval: config.Seconds("music.sweep.interval"),
		IdleThreshold: config.Seconds("music.idle.threshold"),
		QueueExpiry:   config.Seconds("music.queue.expiry"),
	})

	svc := music.NewService(registry, loader, store, radios)

	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info("Bot has registered handlers")
	})

	// Configuring Intents and Adding Handlers
	handlers.New(registry, svc, store).HandlerConfig(s)

	// Connecting to Discord Server Gateway
	if err := s.Open(); err != nil {
		log.WithError(err).Error("Failed to open gateway connection")
		return
	}
	log.Info("Bot is initialising")

	registry.StartSweeper()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	yt.StartCacheSweeper(sweepCtx, rdb)

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc
	stopSweep()
	gracefulShutdown(s, registry, voices)
}

// gracefulShutdown handles cleaning up after the bot is shutdown
func gracefulShutdown(s *discordgo.Session, registry *session.Registry, voices *voice.Manager) {
	log.Info("Starting graceful shutdown...")

	registry.Shutdown()
	voices.CloseAll()

	time.Sleep(5 * time.Second)

	s.Close()

	yt.ClearCache()

	log.Info("Cleanly exiting")
}
