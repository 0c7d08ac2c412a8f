package packet

// Opcode families spec.md §6 requires the core accept/emit, covering at
// least auth/session, character select, world entry, movement,
// combat/spells, buffs, dialog/NPC interaction, and chat. Values are this
// repo's own numbering — there is no retail capture to match against, so
// only internal consistency between client and server sides matters here.
const (
	// Auth/session
	OpClientHelloAuth  uint16 = 0x0001
	OpServerChallenge  uint16 = 0x0002
	OpClientProof      uint16 = 0x0003
	OpServerProof      uint16 = 0x0004
	OpClientHelloWorld uint16 = 0x0005
	OpServerWelcome    uint16 = 0x0006
	OpServerAuthFail   uint16 = 0x0007

	// Character select
	OpClientCharacterList    uint16 = 0x0010
	OpClientCharacterCreate  uint16 = 0x0011
	OpClientCharacterDelete  uint16 = 0x0012
	OpClientCharacterSelect  uint16 = 0x0013
	OpServerCharacterList    uint16 = 0x0014
	OpServerCharCreateResult uint16 = 0x0015

	// World entry
	OpClientEnteredWorld  uint16 = 0x0020
	OpServerWorldEnter    uint16 = 0x0021
	OpServerEntityCreate  uint16 = 0x0022
	OpServerEntityDestroy uint16 = 0x0023

	// Movement
	OpClientMovement uint16 = 0x0030
	OpServerMovement uint16 = 0x0031

	// Combat/spells
	OpClientCastSpell  uint16 = 0x0040
	OpClientCancelCast uint16 = 0x0041
	OpServerSpellGo    uint16 = 0x0042
	OpClientSetTarget  uint16 = 0x0043

	// Buffs
	OpServerBuffApply  uint16 = 0x0050
	OpServerBuffRemove uint16 = 0x0051

	// Dialog & NPC interaction
	OpClientNpcInteract uint16 = 0x0060
	OpServerDialogStart uint16 = 0x0061
	OpServerChatNpc     uint16 = 0x0062

	// Chat
	OpClientChat       uint16 = 0x0070
	OpServerChat       uint16 = 0x0071
	// OpServerChatResult answers a whisper with a delivery outcome (spec.md
	// §8 scenario S5 implies this; not in spec.md's literal opcode list,
	// supplemented per SPEC_FULL.md §4 "Whisper offline response").
	OpServerChatResult uint16 = 0x0072

	// AI state-machine notifications, supplemented per spec.md §4.4's
	// idle/combat/evade/dead transitions: observers watching a creature
	// need a wire signal for aggro, evade-settle, and a combat target's
	// death, the same way ServerEntityCreate/Destroy signal existence.
	OpServerCombatEnter  uint16 = 0x0090
	OpServerEvade        uint16 = 0x0091
	OpServerIdleRestored uint16 = 0x0092
	OpServerEntityDied   uint16 = 0x0093

	// GM/debug commands, supplemented per SPEC_FULL.md §4 "GM/debug command
	// opcode family for local testing (teleport, spawn creature, heal)",
	// gated on an account access-level flag from the character store.
	OpClientGMCommand uint16 = 0x0080
	OpServerGMResult  uint16 = 0x0081

	// OpEncryptedEnvelope carries a cipher-wrapped inner packet (spec.md
	// §6 "Encrypted envelope opcode"). Its handler decrypts with the
	// connection's current key, re-parses the inner opcode, and
	// redispatches through the same registry.
	OpEncryptedEnvelope uint16 = 0x0077
)

// GMCommand enumerates the debug command family spec.md's Non-goals leave
// entirely to the implementation (there is no retail GM command set to
// match, since this core has no client).
type GMCommand byte

const (
	GMTeleport GMCommand = iota
	GMSpawnCreature
	GMHeal
)

// BuffRemoveReason is ServerBuffRemove's reason enum (spec.md §6).
type BuffRemoveReason byte

const (
	BuffRemoveDispel    BuffRemoveReason = 0
	BuffRemoveExpired   BuffRemoveReason = 1
	BuffRemoveCancelled BuffRemoveReason = 2
)

// ChatChannel enumerates ServerChat/ClientChat channels (spec.md §6
// "local/say/yell/zone/global", plus whisper named explicitly in S5).
type ChatChannel byte

const (
	ChatLocal ChatChannel = iota
	ChatSay
	ChatYell
	ChatZone
	ChatGlobal
	ChatWhisper
)
