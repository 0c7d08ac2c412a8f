package net

import "encoding/binary"

// Cipher is the connection-scoped keyed stream cipher spec.md §4.1 pins:
// 8-byte running state, a 1024-bit (128-byte) derived key table split into
// sixteen 8-byte subkeys, and an asymmetric state-update rule that keeps
// encrypt and decrypt in lockstep without sharing direction. Structurally
// this keeps the teacher's Cipher shape — a fixed-size state array plus a
// per-chunk key-advance step — from the teacher's own Cipher; the byte
// mixing itself is different because the teacher's L1J cipher is a distinct
// algorithm from the one the spec describes.
type Cipher struct {
	state   [8]byte
	table   [128]byte // 16 subkeys of 8 bytes each ("1024-bit derived key table")
	counter uint32
}

// These constants are the unresolved half of DESIGN.md's Open Question
// decision 1: spec.md calls the multiplier and initial constants part of
// the bit-exact interop contract but does not hand over literals. The LCG
// constants below are java.util.Random's, plausible for a cipher ported
// from a Java client the way the teacher's own cipher was ported from
// Cipher.java; re-verify against a packet capture before calling this
// interoperable with a retail client.
const (
	authKeyLCGMultiplier  = 0x5DEECE66D
	authKeyLCGIncrement   = 0xB
	cipherIndexMultiplier = 0x2545F4914F6CDD1D
)

// expandKey runs an LCG seeded from seed sixteen times, keeping the high
// bits of each step (java.util.Random.next()'s technique), to fill a
// 16-byte session key from a single seed word.
func expandKey(seed uint64) [16]byte {
	var out [16]byte
	state := seed
	for i := range out {
		state = state*authKeyLCGMultiplier + authKeyLCGIncrement
		out[i] = byte(state >> 33)
	}
	return out
}

// DeriveAuthKey produces the fixed, build-derived session key used before
// any SRP6 world handshake has happened (spec.md §4.1 "a fixed derivation
// from the client build number").
func DeriveAuthKey(build int32) [16]byte {
	return expandKey(uint64(uint32(build)) ^ authKeyLCGMultiplier)
}

// DeriveWorldKey further mixes the SRP6-derived session key into the
// world-stage cipher key (spec.md §4.1 "a further-mixed derivation using
// the SRP6 session key bytes"). Reusing the same LCG constants as
// DeriveAuthKey satisfies spec.md's "both derivations use the same
// big-integer multiplier and initial constants".
func DeriveWorldKey(sessionKey [16]byte) [16]byte {
	lo := binary.LittleEndian.Uint64(sessionKey[:8])
	hi := binary.LittleEndian.Uint64(sessionKey[8:])
	return expandKey(lo ^ hi ^ authKeyLCGIncrement)
}

// deriveTable expands a 16-byte key into the 1024-bit subkey table by
// repeatedly stepping the same LCG, seeded from the key's two halves.
func deriveTable(key [16]byte) [128]byte {
	var table [128]byte
	state := binary.LittleEndian.Uint64(key[:8]) ^ binary.LittleEndian.Uint64(key[8:])
	for i := 0; i < 16; i++ {
		state = state*authKeyLCGMultiplier + authKeyLCGIncrement
		binary.LittleEndian.PutUint64(table[i*8:i*8+8], state)
	}
	return table
}

// NewCipher builds a Cipher from a 16-byte session key — either the auth
// key or the world key, picked by the caller via DeriveAuthKey or
// DeriveWorldKey. State starts zeroed; both peers derive the identical
// table from the same key and begin in sync.
func NewCipher(key [16]byte) *Cipher {
	return &Cipher{table: deriveTable(key)}
}

// subkeyIndex returns the byte offset into c.table for the current counter
// value, per spec.md's "(counter × multiplier) & 0x0F) × 8" rule, then
// advances the counter. Called once per 8 bytes processed.
func (c *Cipher) subkeyIndex() int {
	idx := (uint64(c.counter) * cipherIndexMultiplier) & 0x0F
	c.counter++
	return int(idx) * 8
}

// Encrypt encrypts data in place and returns it. Each output byte is
// state XOR input XOR key; state is then updated with the OUTPUT byte
// (spec.md §4.1: "state is ... updated with ... the output byte on
// encrypt").
func (c *Cipher) Encrypt(data []byte) []byte {
	var subkey []byte
	for i, b := range data {
		if i%8 == 0 {
			off := c.subkeyIndex()
			subkey = c.table[off : off+8]
		}
		slot := i % 8
		out := c.state[slot] ^ b ^ subkey[slot]
		c.state[slot] = out
		data[i] = out
	}
	return data
}

// Decrypt decrypts data in place and returns it. State is updated with the
// INPUT byte (the ciphertext), which converges to the same running state
// an Encrypt call over the same bytes reaches, keeping both sides in
// lockstep — the asymmetric update spec.md §4.1 calls out as the failure
// mode to preserve.
func (c *Cipher) Decrypt(data []byte) []byte {
	var subkey []byte
	for i, b := range data {
		if i%8 == 0 {
			off := c.subkeyIndex()
			subkey = c.table[off : off+8]
		}
		slot := i % 8
		out := c.state[slot] ^ b ^ subkey[slot]
		c.state[slot] = b
		data[i] = out
	}
	return data
}
