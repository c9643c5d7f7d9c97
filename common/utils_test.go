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

func TestStringOrNil(t *testing.T) {
	assert.Nil(t, StringOrNil(""))

	val := StringOrNil("value")
	assert.NotNil(t, val)
	assert.Equal(t, "value", *val)
}

func TestSHA256(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256(""))
	assert.Equal(t, SHA256("payload"), SHA256("payload"))
	assert.NotEqual(t, SHA256("payload"), SHA256("payload2"))
}

func TestContainsString(t *testing.T) {
	items := []string{"a", "b", "c"}
	assert.True(t, ContainsString(items, "b"))
	assert.False(t, ContainsString(items, "d"))
	assert.False(t, ContainsString(nil, "a"))
}

func TestRemoveString(t *testing.T) {
	filtered, removed := RemoveString([]string{"a", "b", "a", "c"}, "a")
	assert.True(t, removed)
	assert.Equal(t, []string{"b", "c"}, filtered)

	filtered, removed = RemoveString([]string{"a", "b"}, "z")
	assert.False(t, removed)
	assert.Equal(t, []string{"a", "b"}, filtered)
}

func TestErrorStatuses(t *testing.T) {
	assert.Equal(t, 422, CapacityError("code", "msg").Status)
	assert.Equal(t, 422, ValidationError("code", "msg").Status)
	assert.Equal(t, 403, AuthorizationError("code", "msg").Status)
	assert.Equal(t, 409, StateError("code", "msg").Status)
	assert.Equal(t, 409, ConflictError("code", "msg").Status)

	err := StateError("code", "the message")
	assert.Equal(t, "the message", err.Error())
}
