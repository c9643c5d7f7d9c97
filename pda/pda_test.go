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
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
)

func TestDeriveDeterministic(t *testing.T) {
	address1, bump1, err := Derive(KindProvider, []byte("hub"), []byte("wallet"))
	assert.NoError(t, err)
	assert.NotEmpty(t, address1)

	address2, bump2, err := Derive(KindProvider, []byte("hub"), []byte("wallet"))
	assert.NoError(t, err)

	assert.Equal(t, address1, address2)
	assert.Equal(t, bump1, bump2)
}

func TestDeriveKindsNeverCollide(t *testing.T) {
	seeds := [][]byte{[]byte("same"), []byte("seeds")}

	courseAddr, _, err := Derive(KindCourse, seeds...)
	assert.NoError(t, err)

	resourceAddr, _, err := Derive(KindResource, seeds...)
	assert.NoError(t, err)

	assert.NotEqual(t, courseAddr, resourceAddr)
}

func TestDeriveSeedSensitivity(t *testing.T) {
	address1, _, err := Derive(KindCredential, []byte("course"), []byte("alice"))
	assert.NoError(t, err)

	address2, _, err := Derive(KindCredential, []byte("course"), []byte("bob"))
	assert.NoError(t, err)

	assert.NotEqual(t, address1, address2)
}

func TestDeriveAddressIsOffCurve(t *testing.T) {
	address, _, err := Derive(KindActivity, []byte("provider"), []byte("student"))
	assert.NoError(t, err)

	raw, err := base58.Decode(address)
	assert.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.False(t, onCurve(raw))
}

func TestTimestampSeed(t *testing.T) {
	seed := TimestampSeed(0x0102030405060708)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, seed)

	assert.NotEqual(t, TimestampSeed(1700000000), TimestampSeed(1700000001))
}

func TestIndexSeed(t *testing.T) {
	seed := IndexSeed(0x0102)
	assert.Equal(t, []byte{0x02, 0x01}, seed)

	assert.NotEqual(t, IndexSeed(0), IndexSeed(1))
}

func TestAddressSeed(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	encoded := base58.Encode(raw)
	assert.Equal(t, raw, AddressSeed(encoded))

	// malformed base58 falls back to the raw string bytes
	assert.Equal(t, []byte("0OIl"), AddressSeed("0OIl"))
}

func TestHubAddressSingleton(t *testing.T) {
	address1, bump1, err := HubAddress()
	assert.NoError(t, err)

	address2, bump2, err := HubAddress()
	assert.NoError(t, err)

	assert.Equal(t, address1, address2)
	assert.Equal(t, bump1, bump2)

	derived, _, err := Derive(KindHub)
	assert.NoError(t, err)
	assert.Equal(t, derived, address1)
}
