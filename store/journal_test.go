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

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faircredit/registry/common"
)

func TestComputeEntryHashDeterministic(t *testing.T) {
	payloadHash := common.SHA256(`{"name":"course"}`)

	hash1 := ComputeEntryHash(genesisHash, "addr", "create_course", payloadHash)
	hash2 := ComputeEntryHash(genesisHash, "addr", "create_course", payloadHash)
	assert.Equal(t, hash1, hash2)
	assert.Len(t, hash1, 64)
}

func TestComputeEntryHashInputSensitivity(t *testing.T) {
	payloadHash := common.SHA256("payload")
	base := ComputeEntryHash(genesisHash, "addr", "create_course", payloadHash)

	assert.NotEqual(t, base, ComputeEntryHash(common.SHA256("other"), "addr", "create_course", payloadHash))
	assert.NotEqual(t, base, ComputeEntryHash(genesisHash, "addr2", "create_course", payloadHash))
	assert.NotEqual(t, base, ComputeEntryHash(genesisHash, "addr", "close_course", payloadHash))
	assert.NotEqual(t, base, ComputeEntryHash(genesisHash, "addr", "create_course", common.SHA256("tampered")))
}

func TestComputeEntryHashChaining(t *testing.T) {
	payloadHash := common.SHA256("payload")

	first := ComputeEntryHash(genesisHash, "addr", "create_course", payloadHash)
	second := ComputeEntryHash(first, "addr", "add_module", payloadHash)

	// rewriting the first entry changes every hash downstream of it
	tamperedFirst := ComputeEntryHash(genesisHash, "addr", "create_course", common.SHA256("tampered"))
	tamperedSecond := ComputeEntryHash(tamperedFirst, "addr", "add_module", payloadHash)

	assert.NotEqual(t, second, tamperedSecond)
}
