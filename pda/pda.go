/*
 * Copyright 2024-2026 FairCredit Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pda

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Record kind tags; part of every derived address seed tuple so that two
// records of different kinds can never collide
const (
	KindHub        = "hub"
	KindProvider   = "provider"
	KindCourse     = "course"
	KindCourseList = "course-list"
	KindResource   = "resource"
	KindAsset      = "asset"
	KindSubmission = "submission"
	KindActivity   = "activity"
	KindCredential = "credential"
	KindNFTMint    = "credential_nft_mint"
)

// programID anchors every derived address to this registry deployment
var programID = sha256.Sum256([]byte("faircredit.registry.v1"))

const derivedAddressMarker = "DerivedRecordAddress"

// Derive maps a record kind and its ordered seed tuple to a deterministic,
// collision-resistant address plus the bump proving the address is off the
// ed25519 curve (and therefore not independently controllable by any keypair).
// Identical inputs always yield the identical address.
func Derive(kind string, seeds ...[]byte) (string, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		digest := sha256.New()
		digest.Write([]byte(kind))
		for _, seed := range seeds {
			digest.Write(seed)
		}
		digest.Write([]byte{uint8(bump)})
		digest.Write(programID[:])
		digest.Write([]byte(derivedAddressMarker))
		candidate := digest.Sum(nil)

		if !onCurve(candidate) {
			return base58.Encode(candidate), uint8(bump), nil
		}
	}

	return "", 0, fmt.Errorf("failed to derive off-curve address for record kind %s", kind)
}

// onCurve returns true if the candidate bytes decode as a valid ed25519
// curve point, i.e. some keypair could control the address
func onCurve(candidate []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(candidate)
	return err == nil
}

// TimestampSeed encodes a unix timestamp as a little-endian seed component;
// timestamps used in seeds are part of record identity and never mutated
func TimestampSeed(timestamp int64) []byte {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, uint64(timestamp))
	return seed
}

// IndexSeed encodes a shard index as a little-endian seed component
func IndexSeed(index uint16) []byte {
	seed := make([]byte, 2)
	binary.LittleEndian.PutUint16(seed, index)
	return seed
}

// AddressSeed decodes a base58 address or wallet into its raw 32 bytes for
// use as a seed component; malformed input falls back to the raw string
// bytes so derivation stays total
func AddressSeed(address string) []byte {
	raw, err := base58.Decode(address)
	if err != nil {
		return []byte(address)
	}
	return raw
}

// HubAddress derives the singleton hub address
func HubAddress() (string, uint8, error) {
	return Derive(KindHub)
}
