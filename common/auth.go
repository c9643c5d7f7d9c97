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
	"crypto/sha256"
	"fmt"
	"io/ioutil"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"
)

const walletAddressHeader = "X-Wallet-Address"
const walletSignatureHeader = "X-Wallet-Signature"

const authorizedWalletContextKey = "authorized_wallet"

// WalletAuthMiddleware verifies that the caller proves control of the wallet
// address named in the request headers; the signature covers the request
// method, path and body digest. Handlers downstream read the proven address
// via AuthorizedWallet.
func WalletAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.GetHeader(walletAddressHeader)
		signature := c.GetHeader(walletSignatureHeader)
		if address == "" || signature == "" {
			c.Next()
			return
		}

		pubkey, err := base58.Decode(address)
		if err != nil || len(pubkey) != ed25519.PublicKeySize {
			Log.Debugf("rejected malformed wallet address header: %s", address)
			c.Next()
			return
		}

		sig, err := base58.Decode(signature)
		if err != nil || len(sig) != ed25519.SignatureSize {
			Log.Debugf("rejected malformed wallet signature for address: %s", address)
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = ioutil.ReadAll(c.Request.Body)
			c.Request.Body = ioutil.NopCloser(bytes.NewBuffer(body))
		}

		if !ed25519.Verify(ed25519.PublicKey(pubkey), requestDigest(c.Request.Method, c.Request.URL.Path, body), sig) {
			Log.Debugf("wallet signature verification failed for address: %s", address)
			c.Next()
			return
		}

		c.Set(authorizedWalletContextKey, address)
		c.Next()
	}
}

// AuthorizedWallet returns the wallet address the caller has proven control
// of, or nil if the request carried no valid proof
func AuthorizedWallet(c *gin.Context) *string {
	if wallet, walletOk := c.Get(authorizedWalletContextKey); walletOk {
		if address, addressOk := wallet.(string); addressOk {
			return StringOrNil(address)
		}
	}
	return nil
}

func requestDigest(method, path string, body []byte) []byte {
	digest := sha256.New()
	digest.Write([]byte(fmt.Sprintf("%s %s ", method, path)))
	digest.Write(body)
	sum := digest.Sum(nil)
	return sum
}

// IsWalletAddress returns true if the given string decodes to a 32-byte
// ed25519 public key
func IsWalletAddress(address string) bool {
	raw, err := base58.Decode(address)
	return err == nil && len(raw) == ed25519.PublicKeySize
}
