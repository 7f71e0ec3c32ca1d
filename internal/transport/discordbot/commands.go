package discordbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-radiobot/internal/domain/player"
	"github.com/edumarques81/stellar-radiobot/internal/domain/radio"
	"github.com/edumarques81/stellar-radiobot/internal/infra/lavalink"
)

// Command and subcommand names.
const (
	CommandRadio = "radio"
	CommandDebug = "radiodebug"

	SubList  = "list"
	SubPlay  = "play"
	SubStop  = "stop"
	SubSetup = "setup"

	DebugStatus        = "status"
	DebugCleanup       = "cleanup"
	DebugForceCleanup  = "force-cleanup"
	DebugForceClearAll = "force-clear-all"
	DebugUpdateNow     = "update-now"
)

const commandTimeout = 15 * time.Second

// Playback is the audio node surface the commands drive.
type Playback interface {
	LoadTrack(ctx context.Context, identifier string) (*lavalink.Track, error)
	PlayTrack(ctx context.Context, guildID string, track lavalink.Track) error
	DestroyPlayer(ctx context.Context, guildID string) error
}

// VoiceConnector moves the bot in and out of voice channels.
// *bot.Client satisfies it.
type VoiceConnector interface {
	UpdateVoiceState(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, selfMute bool, selfDeaf bool) error
}

// SetupStore persists per-guild setup.
type SetupStore interface {
	SetAnnounceChannel(ctx context.Context, guildID, channelID string) error
}

// Reply is the response to a command.
type Reply struct {
	Content   string
	Embed     *discord.Embed
	Ephemeral bool
}

func (r Reply) messageCreate() discord.MessageCreate {
	msg := discord.MessageCreate{Content: r.Content}
	if r.Embed != nil {
		msg.Embeds = []discord.Embed{*r.Embed}
	}
	if r.Ephemeral {
		msg.Flags = discord.MessageFlagEphemeral
	}
	return msg
}

func (r Reply) messageUpdate() discord.MessageUpdate {
	update := discord.NewMessageUpdate().WithContent(r.Content)
	if r.Embed != nil {
		update = update.WithEmbeds(*r.Embed)
	}
	return update
}

func errorReply(format string, args ...any) Reply {
	return Reply{Content: "❌ " + fmt.Sprintf(format, args...), Ephemeral: true}
}

// Commands implements the /radio and /radiodebug slash commands.
type Commands struct {
	engine   *radio.Engine
	players  *player.Service
	playback Playback
	voice    VoiceConnector
	store    SetupStore
	isOwner  func(userID string) bool
	now      func() time.Time
}

// NewCommands wires the command handlers.
func NewCommands(engine *radio.Engine, players *player.Service, playback Playback, voice VoiceConnector, store SetupStore, isOwner func(userID string) bool) *Commands {
	return &Commands{
		engine:   engine,
		players:  players,
		playback: playback,
		voice:    voice,
		store:    store,
		isOwner:  isOwner,
		now:      time.Now,
	}
}

// Definitions returns the slash commands to register.
func (c *Commands) Definitions() []discord.ApplicationCommandCreate {
	adminPerm := discord.PermissionAdministrator

	stations := c.engine.Stations()
	choices := make([]discord.ApplicationCommandOptionChoiceString, 0, len(stations))
	for _, st := range stations {
		choices = append(choices, discord.ApplicationCommandOptionChoiceString{Name: st.Name, Value: st.ID})
	}

	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        CommandRadio,
			Description: "Listen to live radio with song announcements",
			Contexts: []discord.InteractionContextType{
				discord.InteractionContextTypeGuild,
			},
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubList,
					Description: "Show the available radio stations",
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubPlay,
					Description: "Play a radio station in your voice channel",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionString{
							Name:        "station",
							Description: "Station to play",
							Required:    true,
							Choices:     choices,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubStop,
					Description: "Stop the radio and leave the voice channel",
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        SubSetup,
					Description: "Choose where song announcements are posted",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionChannel{
							Name:         "channel",
							Description:  "Announcement channel",
							Required:     true,
							ChannelTypes: []discord.ChannelType{discord.ChannelTypeGuildText},
						},
					},
				},
			},
		},
		discord.SlashCommandCreate{
			Name:                     CommandDebug,
			Description:              "Debug radio detection (owners only)",
			DefaultMemberPermissions: omit.New(&adminPerm),
			Contexts: []discord.InteractionContextType{
				discord.InteractionContextTypeGuild,
			},
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{Name: DebugStatus, Description: "Show active detection sessions"},
				discord.ApplicationCommandOptionSubCommand{Name: DebugCleanup, Description: "Stop every detection session"},
				discord.ApplicationCommandOptionSubCommand{Name: DebugForceCleanup, Description: "Stop detection for this server"},
				discord.ApplicationCommandOptionSubCommand{Name: DebugForceClearAll, Description: "Stop every registered timer and report the count"},
				discord.ApplicationCommandOptionSubCommand{Name: DebugUpdateNow, Description: "Poll this server's station immediately"},
			},
		},
	}
}

// HandleInteraction routes a slash command event.
func (c *Commands) HandleInteraction(event *events.ApplicationCommandInteractionCreate) {
	name := event.Data.CommandName()
	if name != CommandRadio && name != CommandDebug {
		return
	}

	data := event.SlashCommandInteractionData()
	if data.SubCommandName == nil {
		return
	}
	sub := *data.SubCommandName

	guildID := event.GuildID()
	if guildID == nil {
		_ = event.CreateMessage(errorReply("This command can only be used in a server").messageCreate())
		return
	}
	guild := guildID.String()
	userID := event.User().ID

	log.Debug().
		Str("guild", guild).
		Str("user", userID.String()).
		Str("command", name+" "+sub).
		Msg("Slash command")

	// Play and update-now wait on the audio node or a metadata endpoint.
	if (name == CommandRadio && sub == SubPlay) || (name == CommandDebug && sub == DebugUpdateNow) {
		if err := event.DeferCreateMessage(false); err != nil {
			log.Warn().Err(err).Msg("Failed to defer interaction")
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			var reply Reply
			if name == CommandRadio {
				station, _ := data.OptString("station")
				reply = c.Play(ctx, guild, c.userVoiceChannel(event, *guildID, userID), event.Channel().ID().String(), station)
			} else {
				reply = c.Debug(ctx, userID.String(), guild, sub)
			}

			if _, err := event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), reply.messageUpdate()); err != nil {
				log.Warn().Err(err).Msg("Failed to update interaction response")
			}
		}()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var reply Reply
	switch name {
	case CommandRadio:
		switch sub {
		case SubList:
			reply = c.List()
		case SubStop:
			reply = c.Stop(ctx, guild)
		case SubSetup:
			ch, ok := data.OptChannel("channel")
			if !ok {
				reply = errorReply("Pick a channel")
				break
			}
			reply = c.Setup(ctx, guild, ch.ID.String())
		default:
			reply = errorReply("Unknown subcommand %q", sub)
		}
	case CommandDebug:
		reply = c.Debug(ctx, userID.String(), guild, sub)
	}

	if err := event.CreateMessage(reply.messageCreate()); err != nil {
		log.Warn().Err(err).Msg("Failed to respond to interaction")
	}
}

func (c *Commands) userVoiceChannel(event *events.ApplicationCommandInteractionCreate, guildID, userID snowflake.ID) string {
	vs, ok := event.Client().Caches.VoiceState(guildID, userID)
	if !ok || vs.ChannelID == nil {
		return ""
	}
	return vs.ChannelID.String()
}

// List shows the station catalog.
func (c *Commands) List() Reply {
	embed := StationListEmbed(c.engine.Stations(), c.now())
	return Reply{Embed: &embed}
}

// Play tunes a guild into a station. voiceChannelID is the caller's voice
// channel and textChannelID the channel the command was used in.
func (c *Commands) Play(ctx context.Context, guildID, voiceChannelID, textChannelID, stationID string) Reply {
	st, ok := c.engine.Catalog().Get(stationID)
	if !ok {
		return errorReply("Unknown station `%s`", stationID)
	}
	if voiceChannelID == "" {
		return errorReply("Join a voice channel first")
	}
	streamURL := st.StreamURL()
	if streamURL == "" {
		return errorReply("%s has no playable stream", st.Name)
	}

	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return errorReply("Invalid server")
	}
	cid, err := snowflake.Parse(voiceChannelID)
	if err != nil {
		return errorReply("Invalid voice channel")
	}

	p := c.players.GetOrCreate(guildID)
	p.SetVoiceChannel(voiceChannelID)
	p.SetTextChannel(textChannelID)

	if err := c.voice.UpdateVoiceState(ctx, gid, &cid, false, true); err != nil {
		log.Error().Err(err).Str("guild", guildID).Msg("Failed to join voice channel")
		return errorReply("Could not join your voice channel")
	}

	track, err := c.playback.LoadTrack(ctx, streamURL)
	if err != nil {
		log.Error().Err(err).Str("guild", guildID).Str("station", st.ID).Msg("Failed to load radio stream")
		return errorReply("Failed to load %s", st.Name)
	}
	if err := c.playback.PlayTrack(ctx, guildID, *track); err != nil {
		log.Error().Err(err).Str("guild", guildID).Str("station", st.ID).Msg("Failed to start radio stream")
		return errorReply("Failed to play %s", st.Name)
	}

	log.Info().Str("guild", guildID).Str("station", st.ID).Msg("Radio playback requested")
	return Reply{Content: fmt.Sprintf("%s Now playing **%s**", CountryFlag(st.Country), st.Name)}
}

// Stop ends playback and leaves voice.
func (c *Commands) Stop(ctx context.Context, guildID string) Reply {
	if c.players.Get(guildID) == nil {
		return errorReply("Nothing is playing")
	}

	c.engine.StopSession(guildID)

	if err := c.playback.DestroyPlayer(ctx, guildID); err != nil && !errors.Is(err, lavalink.ErrNotConnected) {
		log.Warn().Err(err).Str("guild", guildID).Msg("Failed to destroy player")
	}
	if gid, err := snowflake.Parse(guildID); err == nil {
		if err := c.voice.UpdateVoiceState(ctx, gid, nil, false, false); err != nil {
			log.Warn().Err(err).Str("guild", guildID).Msg("Failed to leave voice channel")
		}
	}
	c.players.Remove(guildID)

	return Reply{Content: "⏹️ Radio stopped"}
}

// Setup stores the guild's announcement channel.
func (c *Commands) Setup(ctx context.Context, guildID, channelID string) Reply {
	if err := c.store.SetAnnounceChannel(ctx, guildID, channelID); err != nil {
		log.Error().Err(err).Str("guild", guildID).Msg("Failed to save announcement channel")
		return errorReply("Could not save the announcement channel")
	}
	return Reply{Content: fmt.Sprintf("✅ Song announcements will be posted in <#%s>", channelID), Ephemeral: true}
}

// Debug runs a /radiodebug action for an owner.
func (c *Commands) Debug(ctx context.Context, userID, guildID, action string) Reply {
	if c.isOwner == nil || !c.isOwner(userID) {
		return errorReply("This command is restricted to bot owners")
	}

	now := c.now()
	var embed discord.Embed

	switch action {
	case DebugStatus:
		embed = DebugStatusEmbed(c.engine.Debug(), c.engine.Stations(), now)
	case DebugCleanup:
		c.engine.Cleanup()
		embed = NoticeEmbed("Radio Detection Cleanup", "🧹 All radio detection timers have been cleared", ColorGreen, now)
	case DebugForceCleanup:
		c.engine.ForceCleanupGuild(guildID)
		embed = NoticeEmbed("Radio Detection Force Cleanup", "🔧 Force cleaned radio detection for this server", ColorYellow, now)
	case DebugForceClearAll:
		n := c.engine.Cleanup()
		embed = NoticeEmbed("Radio Detection Force Clear All",
			fmt.Sprintf("🚨 Force cleared all radio detection timers\n**Cleared:** %d timers", n), ColorRed, now)
	case DebugUpdateNow:
		if !c.engine.ForceUpdateNow(ctx, guildID) {
			return errorReply("No active radio detection in this server")
		}
		embed = NoticeEmbed("Radio Detection Force Update", "🚀 Forced immediate radio song update for this server", ColorBlue, now)
	default:
		return errorReply("Invalid action. Use: `status`, `cleanup`, `force-cleanup`, `force-clear-all`, or `update-now`")
	}

	return Reply{Embed: &embed, Ephemeral: true}
}
