package router

import (
	wsnet "github.com/wildcore/server/internal/net"
	"github.com/wildcore/server/internal/net/packet"
)

// registerDialog's dialog/NPC opcodes use BitReader/BitWriter for the
// 7/14/21-bit fields spec.md §6 pins exactly for this family.
func (r *Router) registerDialog() {
	r.reg.Register(packet.OpClientNpcInteract, []packet.SessionState{packet.StateInWorld}, r.handleNpcInteract)
}

// handleNpcInteract reads a GUID followed by a 7-bit event code (spec.md
// §6 "ClientNpcInteract (GUID + 7-bit event)").
func (r *Router) handleNpcInteract(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	npcGUID := rd.ReadQ()
	rest := rd.ReadBytes(rd.Remaining())
	br := packet.NewBitReader(rest)
	event := br.ReadBits(7)

	w := packet.NewWriterWithOpcode(packet.OpServerDialogStart)
	w.WriteDU(uint32(npcGUID))
	if event == 0 {
		w.WriteC(0)
		send(conn, w)
		return nil
	}
	w.WriteC(1)
	send(conn, w)

	r.sendNpcChat(conn, npcGUID, 0, 0)
	return nil
}

// sendNpcChat wraps ServerChatNpc's bit-packed body behind the opcode's
// 16-bit opcode prefix (spec.md §6's dialog family). Text ids resolve
// through the static data store's text(id) lookup on the client side;
// this core only forwards the ids.
func (r *Router) sendNpcChat(conn *wsnet.Connection, chatID int64, unitNameTextID, messageTextID uint32) {
	w := packet.NewWriterWithOpcode(packet.OpServerChatNpc)
	w.WriteBytes(writeChatNpc(uint64(chatID), uint16(packet.ChatLocal), unitNameTextID, messageTextID))
	send(conn, w)
}

// writeChatNpc builds ServerChatNpc's bit-packed body (spec.md §6
// "14-bit channel, uint64 chat id, 21-bit unit name text id, 21-bit
// message text id").
func writeChatNpc(chatID uint64, channel uint16, unitNameTextID, messageTextID uint32) []byte {
	bw := packet.NewBitWriter()
	bw.WriteBits(uint64(channel), 14)
	bw.WriteBits(chatID, 64)
	bw.WriteBits(uint64(unitNameTextID), 21)
	bw.WriteBits(uint64(messageTextID), 21)
	return bw.Bytes()
}
