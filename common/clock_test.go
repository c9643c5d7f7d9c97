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

package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCreationTimestamp(t *testing.T) {
	now := int64(1700000000)

	assert.True(t, ValidCreationTimestamp(now, now))
	assert.True(t, ValidCreationTimestamp(now-CreationTimestampMaxAge, now))
	assert.True(t, ValidCreationTimestamp(now+CreationTimestampMaxSkew, now))

	assert.False(t, ValidCreationTimestamp(now-CreationTimestampMaxAge-1, now))
	assert.False(t, ValidCreationTimestamp(now+CreationTimestampMaxSkew+1, now))
}
