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
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
)

func TestIsWalletAddress(t *testing.T) {
	pubkey, _, err := ed25519.GenerateKey(rand.Reader)
	assert.NoError(t, err)

	assert.True(t, IsWalletAddress(base58.Encode(pubkey)))
	assert.False(t, IsWalletAddress("not-a-wallet"))
	assert.False(t, IsWalletAddress(base58.Encode([]byte{0x01, 0x02})))
}

func TestWalletAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	pubkey, privkey, err := ed25519.GenerateKey(rand.Reader)
	assert.NoError(t, err)
	address := base58.Encode(pubkey)

	body := []byte(`{"name":"test"}`)

	var authorized *string
	r := gin.New()
	r.Use(WalletAuthMiddleware())
	r.POST("/api/v1/providers", func(c *gin.Context) {
		authorized = AuthorizedWallet(c)
		c.Status(204)
	})

	sig := ed25519.Sign(privkey, requestDigest("POST", "/api/v1/providers", body))

	req := httptest.NewRequest("POST", "/api/v1/providers", bytes.NewReader(body))
	req.Header.Set("X-Wallet-Address", address)
	req.Header.Set("X-Wallet-Signature", base58.Encode(sig))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotNil(t, authorized)
	assert.Equal(t, address, *authorized)
}

func TestWalletAuthMiddlewareRejectsBadSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)

	pubkey, privkey, err := ed25519.GenerateKey(rand.Reader)
	assert.NoError(t, err)
	address := base58.Encode(pubkey)

	var authorized *string
	r := gin.New()
	r.Use(WalletAuthMiddleware())
	r.POST("/api/v1/providers", func(c *gin.Context) {
		authorized = AuthorizedWallet(c)
		c.Status(204)
	})

	// signature covers a different path than the one requested
	sig := ed25519.Sign(privkey, requestDigest("POST", "/api/v1/courses", nil))

	req := httptest.NewRequest("POST", "/api/v1/providers", nil)
	req.Header.Set("X-Wallet-Address", address)
	req.Header.Set("X-Wallet-Signature", base58.Encode(sig))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Nil(t, authorized)
}
