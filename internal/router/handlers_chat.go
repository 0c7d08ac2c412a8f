package router

import (
	wsnet "github.com/wildcore/server/internal/net"
	"github.com/wildcore/server/internal/net/packet"
)

// registerChat wires ClientChat (spec.md §6 "local/say/yell/zone/global,
// whisper routed via name index").
func (r *Router) registerChat() {
	r.reg.Register(packet.OpClientChat, []packet.SessionState{packet.StateInWorld}, r.handleChat)
}

func writeServerChat(channel packet.ChatChannel, fromGUID int64, fromName, body string) *packet.Writer {
	w := packet.NewWriterWithOpcode(packet.OpServerChat)
	w.WriteC(byte(channel))
	w.WriteQ(fromGUID)
	w.WriteWS(fromName)
	w.WriteWS(body)
	return w
}

// handleChat routes local/say/yell/zone broadcast through interest radius
// and whisper through the name index (spec.md §8 scenario S5). A whisper
// to an offline or unknown name gets the supplemented ServerChatResult
// "player offline" reply (SPEC_FULL.md §4) instead of silent drop.
func (r *Router) handleChat(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	channel := packet.ChatChannel(rd.ReadC())
	body := rd.ReadWS()

	ws, ok := r.deps.Directory.BySession(conn.AccountID)
	if !ok {
		r.log.Warn("chat from unbound session")
		return nil
	}

	if channel == packet.ChatWhisper {
		target := rd.ReadWS()
		targetAccountID, ok := r.deps.Directory.ByName(target)
		if !ok {
			r.sendChatResult(conn, false)
			return nil
		}
		targetWS, ok := r.deps.Directory.BySession(targetAccountID)
		if !ok {
			r.sendChatResult(conn, false)
			return nil
		}
		targetConn, ok := r.conns.lookup(targetWS.EntityGUID)
		if !ok {
			r.sendChatResult(conn, false)
			return nil
		}
		send(targetConn, writeServerChat(packet.ChatWhisper, int64(ws.EntityGUID), ws.CharacterName, body))
		r.sendChatResult(conn, true)
		return nil
	}

	instance, ok := r.deps.Zones.Lookup(ws.Zone)
	if !ok {
		return nil
	}
	self, ok := instance.Lookup(ws.EntityGUID)
	if !ok {
		return nil
	}
	radius := chatRadius(channel)
	recipients := r.playersInRange(ws.Zone, self.Position, radius)
	r.broadcastToPlayers(recipients, func() *packet.Writer {
		return writeServerChat(channel, int64(ws.EntityGUID), ws.CharacterName, body)
	})
	return nil
}

// chatRadius maps a channel to its broadcast interest range; zone/global
// channels use progressively larger ranges than the default melee-social
// radius (spec.md names the channel set but leaves ranges to the
// implementation).
func chatRadius(channel packet.ChatChannel) float64 {
	switch channel {
	case packet.ChatSay, packet.ChatLocal:
		return 30
	case packet.ChatYell:
		return 100
	case packet.ChatZone, packet.ChatGlobal:
		return 1 << 30 // effectively unbounded within the zone/registry's own scope
	default:
		return 30
	}
}

func (r *Router) sendChatResult(conn *wsnet.Connection, delivered bool) {
	w := packet.NewWriterWithOpcode(packet.OpServerChatResult)
	if delivered {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	send(conn, w)
}
