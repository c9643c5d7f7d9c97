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

package resource

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"

	"github.com/faircredit/registry/common"
)

func testWallet(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return base58.Encode(sum[:])
}

func testResource() *Resource {
	return &Resource{
		Address:           common.StringOrNil("resource-address"),
		Course:            common.StringOrNil("course-address"),
		Owner:             common.StringOrNil(testWallet("owner")),
		Name:              common.StringOrNil("Problem Set 1"),
		Kind:              common.StringOrNil(KindAssignment),
		CreationTimestamp: 1700000000,
		UpdatedAtSec:      1700000000,
	}
}

func TestDedupTags(t *testing.T) {
	deduped := dedupTags(pq.StringArray{"go", "systems", "go", "networking", "systems"})
	assert.Equal(t, pq.StringArray{"go", "systems", "networking"}, deduped)
}

func TestAddTag(t *testing.T) {
	r := testResource()

	assert.NoError(t, r.AddTag("go", 1700000100))
	assert.Len(t, r.Tags, 1)

	// duplicate tag is a no-op
	assert.NoError(t, r.AddTag("go", 1700000200))
	assert.Len(t, r.Tags, 1)
	assert.Equal(t, int64(1700000100), r.UpdatedAtSec)

	assert.Error(t, r.AddTag(strings.Repeat("x", maxTagLen+1), 1700000300))

	for i := 1; i < MaxTags; i++ {
		assert.NoError(t, r.AddTag(fmt.Sprintf("tag-%d", i), 1700000400))
	}
	err := r.AddTag("one-too-many", 1700000500)
	assert.Equal(t, ErrTooManyTags, err)
	assert.Len(t, r.Tags, MaxTags)
}

func TestAddAsset(t *testing.T) {
	r := testResource()

	assert.NoError(t, r.AddAsset("asset-address", 1700000100))
	assert.Len(t, r.Assets, 1)

	assert.NoError(t, r.AddAsset("asset-address", 1700000200))
	assert.Len(t, r.Assets, 1)

	for i := 1; i < MaxAssets; i++ {
		assert.NoError(t, r.AddAsset(fmt.Sprintf("asset-%d", i), 1700000300))
	}
	err := r.AddAsset("one-too-many", 1700000400)
	assert.Equal(t, ErrTooManyAssets, err)
	assert.Len(t, r.Assets, MaxAssets)
}

func TestUpdateData(t *testing.T) {
	r := testResource()

	name := "Problem Set 2"
	minutes := uint32(90)
	assert.NoError(t, r.UpdateData(&name, nil, &minutes, []string{"go", "go", "systems"}, 1700000100))
	assert.Equal(t, name, *r.Name)
	assert.Equal(t, minutes, *r.WorkloadMinutes)
	assert.Equal(t, pq.StringArray{"go", "systems"}, r.Tags)

	long := strings.Repeat("x", maxNameLen+1)
	assert.Error(t, r.UpdateData(&long, nil, nil, nil, 1700000200))

	tooMany := make([]string, MaxTags+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("tag-%d", i)
	}
	err := r.UpdateData(nil, nil, nil, tooMany, 1700000300)
	assert.Equal(t, ErrTooManyTags, err)
}

func TestResourceSetNostrRef(t *testing.T) {
	r := testResource()

	assert.NoError(t, r.SetNostrRef("nevent1abc", false, 1700000100))

	err := r.SetNostrRef("nevent1def", false, 1700000200)
	assert.Equal(t, ErrNostrRefAlreadySet, err)

	assert.NoError(t, r.SetNostrRef("nevent1def", true, 1700000300))
	assert.Equal(t, "nevent1def", *r.NostrRef)
}

func TestResourceRequireOwner(t *testing.T) {
	r := testResource()

	assert.NoError(t, r.RequireOwner(testWallet("owner")))
	assert.Equal(t, ErrUnauthorizedResourceAction, r.RequireOwner(testWallet("impostor")))
}

func TestValidateResource(t *testing.T) {
	r := testResource()
	assert.True(t, r.validate())

	r = testResource()
	r.Kind = common.StringOrNil("quiz")
	assert.False(t, r.validate())

	r = testResource()
	r.Owner = common.StringOrNil("not-a-wallet")
	assert.False(t, r.validate())

	r = testResource()
	r.Name = common.StringOrNil(strings.Repeat("x", maxNameLen+1))
	assert.False(t, r.validate())
}
