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

package hub

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"

	"github.com/faircredit/registry/common"
)

func testWallet(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return base58.Encode(sum[:])
}

func testHub() *Hub {
	return &Hub{
		Address:      common.StringOrNil("hub-address"),
		Authority:    common.StringOrNil(testWallet("authority")),
		Config:       DefaultConfig(),
		CreatedAtSec: 1700000000,
		UpdatedAtSec: 1700000000,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.RequireProviderApproval)
	assert.Equal(t, uint64(70), cfg.MinReputationScore)
}

func TestConfigScan(t *testing.T) {
	var cfg Config
	assert.NoError(t, cfg.Scan([]byte(`{"require_provider_approval":false,"min_reputation_score":85}`)))
	assert.False(t, cfg.RequireProviderApproval)
	assert.Equal(t, uint64(85), cfg.MinReputationScore)

	// the score is a u64 on the wire; values over a byte are representable
	assert.NoError(t, cfg.Scan([]byte(`{"require_provider_approval":true,"min_reputation_score":100000}`)))
	assert.Equal(t, uint64(100000), cfg.MinReputationScore)

	// a null column scans as the default policy
	assert.NoError(t, cfg.Scan(nil))
	assert.Equal(t, DefaultConfig(), cfg)

	assert.Error(t, cfg.Scan(42))
}

func TestAddProviderIdempotent(t *testing.T) {
	h := testHub()
	wallet := testWallet("provider")

	assert.NoError(t, h.AddProvider(wallet, 1700000100))
	assert.True(t, h.ProviderAccepted(wallet))
	assert.Equal(t, int64(1700000100), h.UpdatedAtSec)

	assert.NoError(t, h.AddProvider(wallet, 1700000200))
	assert.Len(t, h.AcceptedProviders, 1)
	assert.Equal(t, int64(1700000100), h.UpdatedAtSec)
}

func TestAddProviderCapacity(t *testing.T) {
	h := testHub()
	for i := 0; i < MaxAcceptedProviders; i++ {
		assert.NoError(t, h.AddProvider(testWallet(fmt.Sprintf("provider-%d", i)), 1700000100))
	}

	err := h.AddProvider(testWallet("one-too-many"), 1700000200)
	assert.Equal(t, ErrTooManyProviders, err)
	assert.Len(t, h.AcceptedProviders, MaxAcceptedProviders)
}

func TestRemoveProviderMissingIsNoop(t *testing.T) {
	h := testHub()
	assert.NoError(t, h.AddProvider(testWallet("provider"), 1700000100))

	h.RemoveProvider(testWallet("never-accepted"), 1700000200)
	assert.Len(t, h.AcceptedProviders, 1)
	assert.Equal(t, int64(1700000100), h.UpdatedAtSec)

	h.RemoveProvider(testWallet("provider"), 1700000300)
	assert.Len(t, h.AcceptedProviders, 0)
}

func TestAddCourseRequiresAcceptedProvider(t *testing.T) {
	h := testHub()
	wallet := testWallet("provider")

	err := h.AddCourse("course-address", wallet, 1700000100)
	assert.Equal(t, ErrProviderNotAccepted, err)
	assert.Len(t, h.AcceptedCourses, 0)

	assert.NoError(t, h.AddProvider(wallet, 1700000100))
	assert.NoError(t, h.AddCourse("course-address", wallet, 1700000200))
	assert.Len(t, h.AcceptedCourses, 1)

	// duplicate acceptance is a no-op
	assert.NoError(t, h.AddCourse("course-address", wallet, 1700000300))
	assert.Len(t, h.AcceptedCourses, 1)
}

func TestAddCourseCapacity(t *testing.T) {
	h := testHub()
	wallet := testWallet("provider")
	assert.NoError(t, h.AddProvider(wallet, 1700000100))

	for i := 0; i < MaxAcceptedCourses; i++ {
		assert.NoError(t, h.AddCourse(fmt.Sprintf("course-%d", i), wallet, 1700000100))
	}

	err := h.AddCourse("one-too-many", wallet, 1700000200)
	assert.Equal(t, ErrTooManyCourses, err)
	assert.Len(t, h.AcceptedCourses, MaxAcceptedCourses)
}

func TestRemoveCourseMissingFails(t *testing.T) {
	h := testHub()
	wallet := testWallet("provider")
	assert.NoError(t, h.AddProvider(wallet, 1700000100))
	assert.NoError(t, h.AddCourse("course-address", wallet, 1700000100))

	err := h.RemoveCourse("never-accepted", 1700000200)
	assert.Equal(t, ErrCourseNotAccepted, err)
	assert.Len(t, h.AcceptedCourses, 1)

	assert.NoError(t, h.RemoveCourse("course-address", 1700000300))
	assert.Len(t, h.AcceptedCourses, 0)
}

func TestTransferAuthority(t *testing.T) {
	h := testHub()
	next := testWallet("next-authority")

	assert.Error(t, h.TransferAuthority("not-a-wallet", 1700000100))

	assert.NoError(t, h.TransferAuthority(next, 1700000200))
	assert.Equal(t, next, *h.Authority)
	assert.NoError(t, h.RequireAuthority(next))
	assert.Equal(t, ErrUnauthorizedHubAction, h.RequireAuthority(testWallet("authority")))
}
