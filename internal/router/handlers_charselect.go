package router

import (
	"context"
	"errors"

	"github.com/wildcore/server/internal/directory"
	"github.com/wildcore/server/internal/entity"
	wsnet "github.com/wildcore/server/internal/net"
	"github.com/wildcore/server/internal/net/packet"
	"github.com/wildcore/server/internal/wserr"
	"github.com/wildcore/server/internal/zone"
	"go.uber.org/zap"
)

// registerCharSelect wires the character-select opcode family (spec.md
// §6 "ClientCharacterList/Create/Delete/Select").
func (r *Router) registerCharSelect() {
	r.reg.Register(packet.OpClientCharacterList, []packet.SessionState{packet.StateInWorld}, r.handleCharacterList)
	r.reg.Register(packet.OpClientCharacterCreate, []packet.SessionState{packet.StateInWorld}, r.handleCharacterCreate)
	r.reg.Register(packet.OpClientCharacterDelete, []packet.SessionState{packet.StateInWorld}, r.handleCharacterDelete)
	r.reg.Register(packet.OpClientCharacterSelect, []packet.SessionState{packet.StateInWorld}, r.handleCharacterSelect)
	r.reg.Register(packet.OpClientEnteredWorld, []packet.SessionState{packet.StateInWorld}, r.handleEnteredWorld)
}

func writeCharacterSummary(w *packet.Writer, c CharacterSummary) {
	w.WriteQ(c.CharacterID)
	w.WriteWS(c.Name)
	w.WriteD(c.Level)
}

func (r *Router) handleCharacterList(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	ctx, cancel := storeCtx()
	defer cancel()
	chars, err := r.deps.Characters.CharactersFor(ctx, conn.AccountID)
	if err != nil {
		r.log.Warn("characters_for failed", zap.Error(err))
		chars = nil
	}

	w := packet.NewWriterWithOpcode(packet.OpServerCharacterList)
	w.WriteH(uint16(len(chars)))
	for _, c := range chars {
		writeCharacterSummary(w, c)
	}
	send(conn, w)
	return nil
}

func (r *Router) handleCharacterCreate(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	name := rd.ReadWS()

	ctx, cancel := storeCtx()
	defer cancel()
	summary, err := r.deps.Characters.CreateCharacter(ctx, conn.AccountID, CharacterPayload{Name: name})

	w := packet.NewWriterWithOpcode(packet.OpServerCharCreateResult)
	if err != nil {
		r.log.Debug("create_character failed", zap.Error(err))
		w.WriteC(0) // failure
		send(conn, w)
		return nil
	}
	w.WriteC(1) // success
	writeCharacterSummary(w, summary)
	send(conn, w)
	return nil
}

func (r *Router) handleCharacterDelete(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	characterID := rd.ReadQ()

	ctx, cancel := storeCtx()
	defer cancel()
	if err := r.deps.Characters.DeleteCharacter(ctx, characterID); err != nil {
		r.log.Debug("delete_character failed", zap.Error(err))
	}
	return nil
}

// handleCharacterSelect loads the chosen character, places it in its zone
// instance, and binds a WorldSession (spec.md §3's selecting -> loading ->
// in_world WorldSession.Phase progression; the Connection's own
// SessionState is already in_world by this point — phase here is the
// application-level sub-state directory.Phase tracks).
func (r *Router) handleCharacterSelect(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	characterID := rd.ReadQ()

	ctx, cancel := storeCtx()
	defer cancel()
	snap, err := r.deps.Characters.LoadCharacter(ctx, characterID)
	if err != nil {
		if errors.Is(err, wserr.ErrCharacterNotFound) {
			r.log.Debug("character_select: unknown character_id", zap.Int64("character_id", characterID))
		} else {
			r.log.Warn("load_character failed", zap.Error(err))
		}
		conn.Close()
		return nil
	}

	if err := r.deps.Directory.BindWorldSession(&directory.WorldSession{
		AccountID:     conn.AccountID,
		CharacterID:   characterID,
		CharacterName: snap.Name,
		Phase:         directory.PhaseLoading,
	}); err != nil {
		r.log.Warn("bind world session failed", zap.Error(err))
		conn.Close()
		return nil
	}

	key := snap.Zone
	if key == (zone.Key{}) {
		key = r.deps.DefaultZone
	}
	instance := r.deps.Zones.Enter(context.Background(), key, r.deps.DefaultContent)

	guid := r.deps.Directory.AllocateGUID(entity.KindPlayer)
	player := entity.NewPlayer(guid, snap.Name, snap.Position, snap.FactionID, snap.Level, snap.Health, snap.MaxHealth)
	instance.AddEntity(player)

	r.deps.Directory.SetWorldPlacement(conn.AccountID, guid, key)
	conn.CharGUID = uint64(guid)
	conn.CharAccessLevel = snap.AccessLevel
	r.conns.bind(guid, conn)

	w := packet.NewWriterWithOpcode(packet.OpServerWorldEnter)
	w.WriteQ(int64(guid))
	send(conn, w)
	return nil
}

// handleEnteredWorld acks that the client is ready to stream entities,
// then sends the initial nearby-entity snapshot (avoids a race where
// ServerEntityCreate arrives before the client has finished loading the
// new zone).
func (r *Router) handleEnteredWorld(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	ws, ok := r.deps.Directory.BySession(conn.AccountID)
	if !ok {
		r.log.Warn("EnteredWorld for unbound session", zap.Int64("account", conn.AccountID))
		return nil
	}
	r.deps.Directory.SetPhase(conn.AccountID, directory.PhaseInWorld)

	instance, ok := r.deps.Zones.Lookup(ws.Zone)
	if !ok {
		return nil
	}
	self, ok := instance.Lookup(ws.EntityGUID)
	if !ok {
		return nil
	}
	for _, guid := range instance.EntitiesInRange(self.Position, zone.BroadcastRadius) {
		if e, ok := instance.Lookup(guid); ok {
			w := packet.NewWriterWithOpcode(packet.OpServerEntityCreate)
			writeEntityCreate(w, e)
			send(conn, w)
		}
	}
	return nil
}
