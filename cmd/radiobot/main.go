// Package main is the entry point for the Stellar Radio Discord bot.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-radiobot/internal/config"
	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
	"github.com/edumarques81/stellar-radiobot/internal/domain/radio"
	"github.com/edumarques81/stellar-radiobot/internal/infra/artwork"
	"github.com/edumarques81/stellar-radiobot/internal/infra/lavalink"
	"github.com/edumarques81/stellar-radiobot/internal/infra/metadata"
	"github.com/edumarques81/stellar-radiobot/internal/infra/settings"
	"github.com/edumarques81/stellar-radiobot/internal/transport/discordbot"
	"github.com/edumarques81/stellar-radiobot/internal/transport/socketio"
	"github.com/edumarques81/stellar-radiobot/internal/version"
)

func main() {
	// Command line flags
	envFile := flag.String("env", "", "Path to an env file (defaults to .env when present)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Discord Radio Bot with Live Song Detection")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("lavalink", cfg.Lavalink.Host+":"+strconv.Itoa(cfg.Lavalink.Port)).
		Bool("lavalink_secure", cfg.Lavalink.Secure).
		Str("database", cfg.DatabasePath).
		Int("dashboard_port", cfg.DashboardPort).
		Bool("web_dashboard", cfg.WebDashboard).
		Strs("dashboard_origins", cfg.DashboardOrigins).
		Dur("poll_interval", cfg.PollInterval).
		Bool("artwork_lookup", cfg.ArtworkLookup).
		Int("owners", len(cfg.OwnerIDs)).
		Msg("Configuration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Guild setup persistence
	store := settings.NewStore(cfg.DatabasePath)
	if err := store.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings database")
	}
	defer store.Close()

	players := player.NewService()

	// Socket.io dashboard
	var dashboard *socketio.Server
	if cfg.WebDashboard {
		dashboard, err = socketio.NewServer(players, cfg.MaxRemoteClients, socketio.WithAllowedOrigins(cfg.DashboardOrigins...))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Socket.io server")
		}
		defer dashboard.Close()
	}

	// Listeners are bound before the handlers they call exist.
	var (
		commands *discordbot.Commands
		relay    *discordbot.VoiceRelay
	)

	client, err := disgo.New(cfg.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildVoiceStates,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagVoiceStates),
		),
		bot.WithEventListenerFunc(func(event *events.ApplicationCommandInteractionCreate) {
			commands.HandleInteraction(event)
		}),
		bot.WithEventListenerFunc(func(event *events.GuildVoiceStateUpdate) {
			relay.OnVoiceStateUpdate(event)
		}),
		bot.WithEventListenerFunc(func(event *events.VoiceServerUpdate) {
			relay.OnVoiceServerUpdate(event)
		}),
		bot.WithEventListenerFunc(func(event *events.Ready) {
			log.Info().Str("user", event.User.Username).Msg("Discord gateway ready")
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Discord client")
	}

	// Lavalink node
	node := lavalink.NewNode(lavalink.Config{
		Name:     "main",
		Host:     cfg.Lavalink.Host,
		Port:     cfg.Lavalink.Port,
		Password: cfg.Lavalink.Password,
		Secure:   cfg.Lavalink.Secure,
		UserID:   client.ApplicationID.String(),
	}, players)

	// Radio detection
	announcer := discordbot.NewAnnouncer(client.Rest, store, func(guildID string) string {
		if p := players.Get(guildID); p != nil {
			return p.TextChannelID()
		}
		return ""
	})

	presence := discordbot.NewPresence(client, players, func(guildID string) string {
		id, err := snowflake.Parse(guildID)
		if err != nil {
			return ""
		}
		if guild, ok := client.Caches.Guild(id); ok {
			return guild.Name
		}
		return ""
	}, cfg.Activity)
	defer presence.Stop()

	engineOpts := []radio.Option{
		radio.WithConfig(radio.Config{PollInterval: cfg.PollInterval}),
		radio.WithAnnouncer(announcer),
		radio.WithSongNotifier(presence),
	}
	if dashboard != nil {
		engineOpts = append(engineOpts, radio.WithBroadcaster(dashboard))
	}
	if cfg.ArtworkLookup {
		covers := artwork.NewDeezerClient(artwork.WithUserAgent(cfg.UserAgent))
		engineOpts = append(engineOpts, radio.WithArtworkResolver(artwork.NewCache(covers, time.Hour, 500)))
	}

	engine := radio.NewEngine(
		radio.DefaultCatalog(),
		metadata.NewClient(metadata.WithUserAgent(cfg.UserAgent)),
		func(guildID string) (radio.Player, bool) {
			p := players.Get(guildID)
			if p == nil {
				return nil, false
			}
			return p, true
		},
		engineOpts...,
	)

	players.OnTrackStart(func(state *player.State, track player.Track) {
		engine.OnTrackStart(state, track)
	})
	players.OnTrackEnd(engine.OnTrackEnd)
	players.OnTrackEnd(func(string) { presence.Trigger() })

	if dashboard != nil {
		dashboard.SetRadio(engine)
		players.OnTrackEnd(dashboard.BroadcastTrackEnd)
		players.OnPlayerUpdate(dashboard.NotifyPlayerChanged)
	}

	commands = discordbot.NewCommands(engine, players, node, client, store, cfg.IsOwner)
	relay = discordbot.NewVoiceRelay(node, players)

	node.Connect(ctx)

	if err := registerCommands(client, cfg.GuildID, commands.Definitions()); err != nil {
		log.Error().Err(err).Msg("Failed to register slash commands")
	}

	if err := client.OpenGateway(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to open Discord gateway")
	}
	go presence.Run(ctx)

	// HTTP server
	routes := &api{
		engine:  engine,
		players: players,
		node:    node,
		started: time.Now(),
	}
	if dashboard != nil {
		routes.dashboard = dashboard
	}

	addr := ":" + strconv.Itoa(cfg.DashboardPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      newCORSPolicy(cfg.DashboardOrigins).middleware(routes.routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")

		engine.Close()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
		client.Close(shutdownCtx)
		if err := node.Close(); err != nil {
			log.Debug().Err(err).Msg("Lavalink close error")
		}
	}()

	log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}

// registerCommands installs the slash commands in one guild when guildID is
// set, which takes effect immediately, or globally otherwise.
func registerCommands(client *bot.Client, guildID string, defs []discord.ApplicationCommandCreate) error {
	if guildID != "" {
		id, err := snowflake.Parse(guildID)
		if err != nil {
			return err
		}
		created, err := client.Rest.SetGuildCommands(client.ApplicationID, id, defs)
		if err != nil {
			return err
		}
		log.Info().Str("guild", guildID).Int("count", len(created)).Msg("Registered guild commands")
		return nil
	}

	created, err := client.Rest.SetGlobalCommands(client.ApplicationID, defs)
	if err != nil {
		return err
	}
	log.Info().Int("count", len(created)).Msg("Registered global commands")
	return nil
}
