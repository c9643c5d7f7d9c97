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

package provider

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"

	"github.com/faircredit/registry/common"
)

func testWallet(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return base58.Encode(sum[:])
}

func testProvider() *Provider {
	return &Provider{
		Hub:          common.StringOrNil("hub-address"),
		Wallet:       common.StringOrNil(testWallet("provider")),
		Name:         common.StringOrNil("Test University"),
		ProviderType: common.StringOrNil("university"),
		RegisteredAt: 1700000000,
	}
}

func TestAddEndorserIdempotent(t *testing.T) {
	p := testProvider()
	endorser := testWallet("endorser")

	assert.NoError(t, p.AddEndorser(endorser, 1700000100))
	assert.Len(t, p.Endorsers, 1)
	assert.Equal(t, int64(1700000100), p.UpdatedAtSec)

	// duplicate insert is a no-op and leaves the record untouched
	assert.NoError(t, p.AddEndorser(endorser, 1700000200))
	assert.Len(t, p.Endorsers, 1)
	assert.Equal(t, int64(1700000100), p.UpdatedAtSec)
}

func TestAddEndorserCapacity(t *testing.T) {
	p := testProvider()
	for i := 0; i < MaxEndorsers; i++ {
		assert.NoError(t, p.AddEndorser(testWallet(fmt.Sprintf("endorser-%d", i)), 1700000100))
	}
	assert.Len(t, p.Endorsers, MaxEndorsers)

	err := p.AddEndorser(testWallet("one-too-many"), 1700000200)
	assert.Equal(t, ErrTooManyEndorsers, err)
	assert.Len(t, p.Endorsers, MaxEndorsers)

	// a duplicate of an existing endorser still no-ops at capacity
	assert.NoError(t, p.AddEndorser(testWallet("endorser-0"), 1700000300))
	assert.Len(t, p.Endorsers, MaxEndorsers)
}

func TestRemoveEndorser(t *testing.T) {
	p := testProvider()
	endorser := testWallet("endorser")
	assert.NoError(t, p.AddEndorser(endorser, 1700000100))

	p.RemoveEndorser(endorser, 1700000200)
	assert.Len(t, p.Endorsers, 0)
	assert.Equal(t, int64(1700000200), p.UpdatedAtSec)

	// removing a missing endorser is a no-op
	p.RemoveEndorser(endorser, 1700000300)
	assert.Equal(t, int64(1700000200), p.UpdatedAtSec)
}

func TestRequireAuthority(t *testing.T) {
	p := testProvider()

	assert.NoError(t, p.RequireAuthority(*p.Wallet))
	assert.Equal(t, ErrUnauthorizedProviderAction, p.RequireAuthority(testWallet("impostor")))
}

func TestValidateProvider(t *testing.T) {
	p := testProvider()
	assert.True(t, p.validate())

	p = testProvider()
	p.Wallet = common.StringOrNil("not-a-wallet")
	assert.False(t, p.validate())

	p = testProvider()
	p.Name = nil
	assert.False(t, p.validate())

	p = testProvider()
	p.Name = common.StringOrNil(strings.Repeat("x", maxNameLen+1))
	assert.False(t, p.validate())

	p = testProvider()
	p.ProviderType = nil
	assert.False(t, p.validate())

	p = testProvider()
	p.Email = common.StringOrNil(strings.Repeat("x", maxEmailLen+1))
	assert.False(t, p.validate())
}
