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

package providers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	p, err := New(MintProviderDerived)
	assert.NoError(t, err)
	assert.NotNil(t, p)

	// unset provider name defaults to the derived provider
	p, err = New("")
	assert.NoError(t, err)
	assert.NotNil(t, p)

	p, err = New("unknown")
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestTokenName(t *testing.T) {
	assert.Equal(t, "Distributed Systems", TokenName("Distributed Systems"))

	long := strings.Repeat("a", tokenNameMaxLen+10)
	assert.Equal(t, strings.Repeat("a", tokenNameMaxLen), TokenName(long))

	// the budget is counted in runes, not bytes
	multibyte := strings.Repeat("日", tokenNameMaxLen+5)
	clipped := TokenName(multibyte)
	assert.Equal(t, tokenNameMaxLen, len([]rune(clipped)))
}

func TestTokenURI(t *testing.T) {
	assert.Equal(t, "https://faircredit.io/credential/abc123", TokenURI("abc123"))
}
