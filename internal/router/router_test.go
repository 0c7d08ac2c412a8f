package router_test

import (
	"context"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wildcore/server/internal/combat"
	"github.com/wildcore/server/internal/directory"
	"github.com/wildcore/server/internal/entity"
	"github.com/wildcore/server/internal/faction"
	wsnet "github.com/wildcore/server/internal/net"
	"github.com/wildcore/server/internal/net/packet"
	"github.com/wildcore/server/internal/net/srp6"
	"github.com/wildcore/server/internal/router"
	"github.com/wildcore/server/internal/zone"
)

// ---- fakes ----

type accountRecord struct {
	id       int64
	salt     []byte
	verifier *big.Int
}

type fakeAccounts struct {
	mu   sync.Mutex
	byID map[string]accountRecord
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byID: make(map[string]accountRecord)}
}

func (f *fakeAccounts) add(email string, rec accountRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[email] = rec
}

func (f *fakeAccounts) AccountByEmail(ctx context.Context, email string) (int64, []byte, *big.Int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[email]
	if !ok {
		return 0, nil, nil, false, nil
	}
	return rec.id, rec.salt, rec.verifier, true, nil
}

type fakeCharacters struct {
	mu   sync.Mutex
	byID map[int64]router.CharacterSnapshot
}

func newFakeCharacters() *fakeCharacters {
	return &fakeCharacters{byID: make(map[int64]router.CharacterSnapshot)}
}

func (f *fakeCharacters) add(snap router.CharacterSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[snap.CharacterID] = snap
}

func (f *fakeCharacters) CharactersFor(ctx context.Context, accountID int64) ([]router.CharacterSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []router.CharacterSummary
	for _, c := range f.byID {
		if c.AccountID == accountID {
			out = append(out, router.CharacterSummary{CharacterID: c.CharacterID, Name: c.Name, Level: c.Level, Zone: c.Zone})
		}
	}
	return out, nil
}

func (f *fakeCharacters) CreateCharacter(ctx context.Context, accountID int64, payload router.CharacterPayload) (router.CharacterSummary, error) {
	return router.CharacterSummary{}, nil
}

func (f *fakeCharacters) SaveCharacter(ctx context.Context, snap router.CharacterSnapshot) error {
	f.add(snap)
	return nil
}

func (f *fakeCharacters) DeleteCharacter(ctx context.Context, characterID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, characterID)
	return nil
}

func (f *fakeCharacters) LoadCharacter(ctx context.Context, characterID int64) (router.CharacterSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.byID[characterID]
	if !ok {
		return router.CharacterSnapshot{}, errCharacterNotFound
	}
	return snap, nil
}

var errCharacterNotFound = errNotFound("router_test: character not found")

type errNotFound string

func (e errNotFound) Error() string { return string(e) }

type allHostileFactions struct{}

func (allHostileFactions) Resolve(id int32) faction.Faction { return faction.Exile }

type noSpells struct{}

func (noSpells) Spell(id int64) (*combat.SpellData, bool) { return nil, false }

// ---- harness ----

// testHarness wires a Router against a real directory.Directory and
// zone.Registry, exactly as cmd/worldcore will: the Router is built first
// (it implements zone.Sink), then the Registry is constructed with the
// Router as its sink, and finally wired back into Deps.
type testHarness struct {
	r          *router.Router
	deps       *router.Deps
	accounts   *fakeAccounts
	characters *fakeCharacters
	log        *zap.Logger
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	log := zap.NewNop()
	accounts := newFakeAccounts()
	characters := newFakeCharacters()
	deps := &router.Deps{
		Directory:      directory.New(&entity.Allocator{}),
		Accounts:       accounts,
		Characters:     characters,
		ClientBuild:    16042,
		DefaultZone:    zone.Key{WorldID: 1, InstanceID: 1},
		DefaultContent: zone.ContentExpedition,
	}
	r := router.New(deps, log)
	registry := zone.NewRegistry(32, allHostileFactions{}, noSpells{}, nil, &entity.Allocator{}, r, log)
	deps.Zones = registry
	return &testHarness{r: r, deps: deps, accounts: accounts, characters: characters, log: log}
}

// newConn wraps one end of a net.Pipe in a Connection driven by the
// harness's Router, with the other end drained by a background goroutine so
// writeLoop never blocks. Returns the Connection and a channel of every
// frame payload the server sends (still cipher-wrapped if a key is
// installed — callers that need plaintext decrypt it themselves).
func (h *testHarness) newConn(t *testing.T) (*wsnet.Connection, chan []byte) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	conn := wsnet.NewConnection(serverSide, h.r, 16, 0, 0, 0, h.log)
	conn.Start()
	t.Cleanup(conn.Close)

	frames := make(chan []byte, 32)
	go func() {
		for {
			_, payload, err := wsnet.ReadFrame(clientSide)
			if err != nil {
				close(frames)
				return
			}
			frames <- payload
		}
	}()
	return conn, frames
}

// drainSelfEntityCreate discards the self ServerEntityCreate frame
// handleEnteredWorld sends as part of the initial nearby-entity snapshot
// (the querying entity is itself within its own broadcast radius), so
// callers asserting on the next frame after bindCharacter see the event
// they actually triggered.
func drainSelfEntityCreate(t *testing.T, frames chan []byte) {
	t.Helper()
	payload := recvFrame(t, frames)
	require.Equal(t, packet.OpServerEntityCreate, packet.NewReader(payload).Opcode())
}

func recvFrame(t *testing.T, frames chan []byte) []byte {
	t.Helper()
	select {
	case f, ok := <-frames:
		require.True(t, ok, "connection closed before a frame arrived")
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

// ---- auth handshake (scenario S1: SRP6 through world entry) ----
//
// Dispatch is called directly with plaintext payloads, exactly as the real
// readLoop calls it after decrypting an inbound frame — so this test never
// encrypts a request itself. The server's replies, though, go through the
// real Connection.Send/writeLoop path and arrive on the pipe genuinely
// cipher-wrapped, decrypted here with a client-side Cipher mirror built
// from the same derived key.
func TestAuthHandshakeThroughWorldEntry(t *testing.T) {
	h := newHarness(t)
	email, password := "hero@example.com", "hunter2"
	verifier, err := srp6.ComputeVerifier(email, password)
	require.NoError(t, err)
	h.accounts.add(email, accountRecord{id: 7, salt: verifier.Salt, verifier: verifier.Verifier})

	conn, frames := h.newConn(t)
	require.Equal(t, packet.StateUnauth, conn.State())

	helloW := packet.NewWriterWithOpcode(packet.OpClientHelloAuth)
	helloW.WriteWS(email)
	helloW.WriteD(16042)
	require.NoError(t, h.r.Dispatch(conn, conn.State(), helloW.Bytes()))
	assert.Equal(t, packet.StateAuthSRP, conn.State())

	authCipher := wsnet.NewCipher(wsnet.DeriveAuthKey(16042))
	challengePayload := authCipher.Decrypt(recvFrame(t, frames))
	rd := packet.NewReader(challengePayload)
	require.Equal(t, packet.OpServerChallenge, rd.Opcode())
	saltBytes := rd.ReadBytes(int(rd.ReadH()))
	bBytes := rd.ReadBytes(int(rd.ReadH()))
	B := new(big.Int).SetBytes(bBytes)

	client, err := srp6.NewClientSession(email, password, saltBytes)
	require.NoError(t, err)
	proof := client.ComputeProof(B)

	proofW := packet.NewWriterWithOpcode(packet.OpClientProof)
	proofW.WriteH(uint16(len(proof.A.Bytes())))
	proofW.WriteBytes(proof.A.Bytes())
	proofW.WriteH(uint16(len(proof.M1)))
	proofW.WriteBytes(proof.M1)
	require.NoError(t, h.r.Dispatch(conn, conn.State(), proofW.Bytes()))
	assert.Equal(t, packet.StateWorldSRP, conn.State())

	proofRespPayload := authCipher.Decrypt(recvFrame(t, frames))
	rd3 := packet.NewReader(proofRespPayload)
	require.Equal(t, packet.OpServerProof, rd3.Opcode())
	m2 := rd3.ReadBytes(int(rd3.ReadH()))
	sessionKey, err := client.VerifyServerProof(B, proof.M1, m2)
	require.NoError(t, err)

	worldW := packet.NewWriterWithOpcode(packet.OpClientHelloWorld)
	worldW.WriteQ(7)
	worldW.WriteBytes(sessionKey[:])
	require.NoError(t, h.r.Dispatch(conn, conn.State(), worldW.Bytes()))
	assert.Equal(t, packet.StateInWorld, conn.State())
	assert.Equal(t, int64(7), conn.AccountID)

	worldCipher := wsnet.NewCipher(wsnet.DeriveWorldKey(sessionKey))
	welcomePayload := worldCipher.Decrypt(recvFrame(t, frames))
	assert.Equal(t, packet.OpServerWelcome, packet.NewReader(welcomePayload).Opcode())
}

func TestAuthHandshakeUnknownAccountFailsAndCloses(t *testing.T) {
	h := newHarness(t)
	conn, frames := h.newConn(t)

	helloW := packet.NewWriterWithOpcode(packet.OpClientHelloAuth)
	helloW.WriteWS("nobody@example.com")
	helloW.WriteD(16042)
	require.NoError(t, h.r.Dispatch(conn, conn.State(), helloW.Bytes()))

	// sendAuthFail writes plaintext-flagged data before any cipher exists in
	// this path (AccountByEmail fails before InstallCipher runs).
	failPayload := recvFrame(t, frames)
	rd := packet.NewReader(failPayload)
	assert.Equal(t, packet.OpServerAuthFail, rd.Opcode())
	assert.Eventually(t, conn.IsClosed, time.Second, 10*time.Millisecond)
}

// ---- character select / world entry ----

func bindCharacter(t *testing.T, h *testHarness, conn *wsnet.Connection, frames chan []byte, accountID, characterID int64, name string) entity.GUID {
	t.Helper()
	conn.AccountID = accountID
	conn.SetState(packet.StateInWorld)
	h.characters.add(router.CharacterSnapshot{
		CharacterID: characterID,
		AccountID:   accountID,
		Name:        name,
		Level:       1,
		Health:      100,
		MaxHealth:   100,
		FactionID:   1,
	})

	selectW := packet.NewWriterWithOpcode(packet.OpClientCharacterSelect)
	selectW.WriteQ(characterID)
	require.NoError(t, h.r.Dispatch(conn, conn.State(), selectW.Bytes()))

	enterPayload := recvFrame(t, frames)
	rd := packet.NewReader(enterPayload)
	require.Equal(t, packet.OpServerWorldEnter, rd.Opcode())
	guid := entity.GUID(rd.ReadQ())
	assert.NotZero(t, guid)

	enteredW := packet.NewWriterWithOpcode(packet.OpClientEnteredWorld)
	require.NoError(t, h.r.Dispatch(conn, conn.State(), enteredW.Bytes()))
	return guid
}

func TestCharacterSelectEntersZoneAndBindsWorldSession(t *testing.T) {
	h := newHarness(t)
	conn, frames := h.newConn(t)

	guid := bindCharacter(t, h, conn, frames, 1, 100, "Questgiver")

	ws, ok := h.deps.Directory.BySession(1)
	require.True(t, ok)
	assert.Equal(t, guid, ws.EntityGUID)
	assert.Equal(t, directory.PhaseInWorld, ws.Phase)
	assert.Equal(t, "Questgiver", ws.CharacterName)

	instance, ok := h.deps.Zones.Lookup(h.deps.DefaultZone)
	require.True(t, ok)
	e, ok := instance.Lookup(guid)
	require.True(t, ok)
	assert.Equal(t, entity.KindPlayer, e.Kind)
}

func TestCharacterSelectNameCollisionClosesConnection(t *testing.T) {
	h := newHarness(t)
	conn1, frames1 := h.newConn(t)
	bindCharacter(t, h, conn1, frames1, 1, 100, "Sameish")

	conn2, _ := h.newConn(t)
	conn2.AccountID = 2
	conn2.SetState(packet.StateInWorld)
	h.characters.add(router.CharacterSnapshot{CharacterID: 200, AccountID: 2, Name: "Sameish", MaxHealth: 100, Health: 100})

	selectW := packet.NewWriterWithOpcode(packet.OpClientCharacterSelect)
	selectW.WriteQ(200)
	require.NoError(t, h.r.Dispatch(conn2, conn2.State(), selectW.Bytes()))
	assert.Eventually(t, conn2.IsClosed, time.Second, 10*time.Millisecond)
}

// ---- session rule violations: drop packet, keep connection ----

func TestMovementForUnboundSessionDroppedButConnectionStaysOpen(t *testing.T) {
	h := newHarness(t)
	conn, _ := h.newConn(t)
	conn.AccountID = 99 // no WorldSession bound
	conn.SetState(packet.StateInWorld)

	moveW := packet.NewWriterWithOpcode(packet.OpClientMovement)
	moveW.WriteF32(1)
	moveW.WriteF32(2)
	moveW.WriteF32(3)
	moveW.WriteF32(0)
	moveW.WriteF32(0)
	moveW.WriteF32(0)
	moveW.WriteF32(0)
	moveW.WriteF32(0)
	moveW.WriteF32(0)
	moveW.WriteD(0)
	moveW.WriteQ(0)

	err := h.r.Dispatch(conn, conn.State(), moveW.Bytes())
	assert.NoError(t, err)
	assert.False(t, conn.IsClosed())
}

// ---- chat / whisper routing (scenario S5) ----

func TestWhisperRoutesToOnlineTarget(t *testing.T) {
	h := newHarness(t)
	senderConn, senderFrames := h.newConn(t)
	targetConn, targetFrames := h.newConn(t)

	bindCharacter(t, h, senderConn, senderFrames, 1, 100, "Sender")
	bindCharacter(t, h, targetConn, targetFrames, 2, 200, "Target")

	chatW := packet.NewWriterWithOpcode(packet.OpClientChat)
	chatW.WriteC(byte(packet.ChatWhisper))
	chatW.WriteWS("hello there")
	chatW.WriteWS("Target")
	require.NoError(t, h.r.Dispatch(senderConn, senderConn.State(), chatW.Bytes()))

	resultPayload := recvFrame(t, senderFrames)
	rd := packet.NewReader(resultPayload)
	require.Equal(t, packet.OpServerChatResult, rd.Opcode())
	assert.Equal(t, byte(1), rd.ReadC())

	deliveredPayload := recvFrame(t, targetFrames)
	rd2 := packet.NewReader(deliveredPayload)
	require.Equal(t, packet.OpServerChat, rd2.Opcode())
	assert.Equal(t, byte(packet.ChatWhisper), rd2.ReadC())
}

func TestWhisperToOfflineOrUnknownNameReportsUndelivered(t *testing.T) {
	h := newHarness(t)
	senderConn, senderFrames := h.newConn(t)
	bindCharacter(t, h, senderConn, senderFrames, 1, 100, "Sender")

	chatW := packet.NewWriterWithOpcode(packet.OpClientChat)
	chatW.WriteC(byte(packet.ChatWhisper))
	chatW.WriteWS("anyone there?")
	chatW.WriteWS("Nobody")
	require.NoError(t, h.r.Dispatch(senderConn, senderConn.State(), chatW.Bytes()))

	resultPayload := recvFrame(t, senderFrames)
	rd := packet.NewReader(resultPayload)
	require.Equal(t, packet.OpServerChatResult, rd.Opcode())
	assert.Equal(t, byte(0), rd.ReadC())
}

// ---- GM commands ----

func TestGMHealRequiresAccessLevelAndUsesActorSafePath(t *testing.T) {
	h := newHarness(t)
	conn, frames := h.newConn(t)
	conn.AccountID = 1
	conn.SetState(packet.StateInWorld)
	conn.CharAccessLevel = 0 // below minGMAccessLevel

	h.characters.add(router.CharacterSnapshot{CharacterID: 100, AccountID: 1, Name: "Gamemaster", MaxHealth: 100, Health: 100, AccessLevel: 0})
	guid := bindCharacter(t, h, conn, frames, 1, 100, "Gamemaster")

	gmW := packet.NewWriterWithOpcode(packet.OpClientGMCommand)
	gmW.WriteC(byte(packet.GMHeal))
	require.NoError(t, h.r.Dispatch(conn, conn.State(), gmW.Bytes()))

	resultPayload := recvFrame(t, frames)
	rd := packet.NewReader(resultPayload)
	require.Equal(t, packet.OpServerGMResult, rd.Opcode())
	assert.Equal(t, byte(0), rd.ReadC(), "insufficient access level should fail")

	// Now raise access level and damage the character first, then heal.
	conn.CharAccessLevel = 100
	instance, ok := h.deps.Zones.Lookup(h.deps.DefaultZone)
	require.True(t, ok)
	instance.DamageCreature(0, guid, 40)

	require.NoError(t, h.r.Dispatch(conn, conn.State(), gmW.Bytes()))
	resultPayload2 := recvFrame(t, frames)
	rd2 := packet.NewReader(resultPayload2)
	require.Equal(t, packet.OpServerGMResult, rd2.Opcode())
	assert.Equal(t, byte(1), rd2.ReadC())

	e, ok := instance.Lookup(guid)
	require.True(t, ok)
	assert.Equal(t, e.MaxHealth, e.Health, "Heal should restore full health through the actor's own goroutine")
}

// ---- encrypted envelope redispatch ----

func TestEncryptedEnvelopeRedispatch(t *testing.T) {
	h := newHarness(t)
	conn, frames := h.newConn(t)
	guid := bindCharacter(t, h, conn, frames, 1, 100, "Enveloped")

	var key [16]byte
	copy(key[:], []byte("0123456789abcdef"))
	conn.InstallCipher(key)

	innerW := packet.NewWriterWithOpcode(packet.OpClientMovement)
	innerW.WriteF32(5)
	innerW.WriteF32(6)
	innerW.WriteF32(7)
	innerW.WriteF32(0)
	innerW.WriteF32(0)
	innerW.WriteF32(0)
	innerW.WriteF32(0)
	innerW.WriteF32(0)
	innerW.WriteF32(0)
	innerW.WriteD(0)
	innerW.WriteQ(0)

	sealer := wsnet.NewCipher(key)
	encryptedInner := sealer.Encrypt(append([]byte(nil), innerW.Bytes()...))

	envelope := packet.NewWriterWithOpcode(packet.OpEncryptedEnvelope)
	envelope.WriteBytes(encryptedInner)

	require.NoError(t, h.r.Dispatch(conn, conn.State(), envelope.Bytes()))

	instance, ok := h.deps.Zones.Lookup(h.deps.DefaultZone)
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		e, ok := instance.Lookup(guid)
		return ok && e.Position.X == 5
	}, time.Second, 10*time.Millisecond)
}

// ---- AI-tick notifications, exercised through the production Sink (not a
// stub): a zone actor calls these on r.deps.Zones' Router directly, so
// these tests drive the same *Router methods ai_tick.go calls and assert
// on the wire bytes a bound connection actually receives. ----

func TestCombatEnteredBroadcastsOpcodeAndGUIDs(t *testing.T) {
	h := newHarness(t)
	conn, frames := h.newConn(t)
	guid := bindCharacter(t, h, conn, frames, 1, 100, "Watcher")
	drainSelfEntityCreate(t, frames)

	h.r.CombatEntered(h.deps.DefaultZone, entity.Vec3{}, entity.GUID(500), guid)

	payload := recvFrame(t, frames)
	rd := packet.NewReader(payload)
	require.Equal(t, packet.OpServerCombatEnter, rd.Opcode())
	assert.Equal(t, int64(500), rd.ReadQ())
	assert.Equal(t, int64(guid), rd.ReadQ())
}

func TestEvadeBroadcastsOpcodeAndGUID(t *testing.T) {
	h := newHarness(t)
	conn, frames := h.newConn(t)
	bindCharacter(t, h, conn, frames, 1, 100, "Watcher")
	drainSelfEntityCreate(t, frames)

	h.r.Evade(h.deps.DefaultZone, entity.Vec3{}, entity.GUID(500))

	payload := recvFrame(t, frames)
	rd := packet.NewReader(payload)
	require.Equal(t, packet.OpServerEvade, rd.Opcode())
	assert.Equal(t, int64(500), rd.ReadQ())
}

func TestIdleRestoredBroadcastsOpcodeAndGUID(t *testing.T) {
	h := newHarness(t)
	conn, frames := h.newConn(t)
	bindCharacter(t, h, conn, frames, 1, 100, "Watcher")
	drainSelfEntityCreate(t, frames)

	h.r.IdleRestored(h.deps.DefaultZone, entity.Vec3{}, entity.GUID(500))

	payload := recvFrame(t, frames)
	rd := packet.NewReader(payload)
	require.Equal(t, packet.OpServerIdleRestored, rd.Opcode())
	assert.Equal(t, int64(500), rd.ReadQ())
}

func TestEntityDiedBroadcastsOpcodeAndGUIDWithoutRemovingFromZone(t *testing.T) {
	h := newHarness(t)
	conn, frames := h.newConn(t)
	guid := bindCharacter(t, h, conn, frames, 1, 100, "Victim")
	drainSelfEntityCreate(t, frames)

	h.r.EntityDied(h.deps.DefaultZone, entity.Vec3{}, guid)

	payload := recvFrame(t, frames)
	rd := packet.NewReader(payload)
	require.Equal(t, packet.OpServerEntityDied, rd.Opcode())
	assert.Equal(t, int64(guid), rd.ReadQ())

	instance, ok := h.deps.Zones.Lookup(h.deps.DefaultZone)
	require.True(t, ok)
	_, stillThere := instance.Lookup(guid)
	assert.True(t, stillThere, "EntityDied is informational; a dead player stays in the zone's entity table")
}

// ---- disconnect unbinds the session and despawns its entity ----

func TestHandleDisconnectUnbindsSessionAndDespawnsEntity(t *testing.T) {
	h := newHarness(t)
	conn, frames := h.newConn(t)
	guid := bindCharacter(t, h, conn, frames, 1, 100, "Leaving")

	instance, ok := h.deps.Zones.Lookup(h.deps.DefaultZone)
	require.True(t, ok)
	_, ok = instance.Lookup(guid)
	require.True(t, ok, "character select should have placed the entity in the zone")

	h.r.HandleDisconnect(conn)

	_, ok = h.deps.Directory.BySession(1)
	assert.False(t, ok, "disconnect must unbind the WorldSession")

	assert.Eventually(t, func() bool {
		_, ok := instance.Lookup(guid)
		return !ok
	}, time.Second, 10*time.Millisecond, "disconnect must despawn the entity from its zone")
}

func TestHandleDisconnectWithoutWorldSessionIsANoop(t *testing.T) {
	h := newHarness(t)
	conn, _ := h.newConn(t)
	conn.AccountID = 404 // never bound a WorldSession

	require.NotPanics(t, func() { h.r.HandleDisconnect(conn) })
}
