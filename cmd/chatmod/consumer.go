package main

import (
	"context"

	"github.com/bluesky-social/chatmod/automod/platform/discord"

	"github.com/bwmarrin/discordgo"
)

// Registers gateway handlers, returning a func which removes them. Must be called before the session is opened. Handlers run on discordgo's per-event goroutines.
func (s *Server) registerGatewayHandlers(ctx context.Context) func() {
	names := discord.StateNames{State: s.session.State}

	handle := func(kind string, m *discordgo.Message) {
		gatewayEvents.WithLabelValues(kind).Inc()
		msg, err := discord.ConvertMessage(m, names)
		if err != nil {
			s.logger.Warn("failed to convert gateway message", "type", kind, "message", m.ID, "err", err)
			return
		}
		if msg == nil {
			return
		}
		if err := s.engine.ProcessMessage(ctx, msg); err != nil {
			s.logger.Error("processing message failed", "type", kind, "guild", msg.GuildID, "message", msg.ID, "err", err)
		}
	}

	removers := []func(){
		s.session.AddHandler(func(_ *discordgo.Session, evt *discordgo.Ready) {
			gatewayConnected.Set(1)
			s.logger.Info("connected to discord gateway", "user", evt.User.Username, "guilds", len(evt.Guilds))
		}),
		s.session.AddHandler(func(_ *discordgo.Session, evt *discordgo.Disconnect) {
			gatewayConnected.Set(0)
			s.logger.Warn("disconnected from discord gateway")
		}),
		s.session.AddHandler(func(_ *discordgo.Session, evt *discordgo.Resumed) {
			gatewayConnected.Set(1)
			s.logger.Info("resumed discord gateway session")
		}),
		s.session.AddHandler(func(_ *discordgo.Session, evt *discordgo.MessageCreate) {
			handle("create", evt.Message)
		}),
		s.session.AddHandler(func(_ *discordgo.Session, evt *discordgo.MessageUpdate) {
			handle("update", evt.Message)
		}),
	}
	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}
