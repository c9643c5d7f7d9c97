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
	"encoding/json"

	natsutil "github.com/kthomas/go-natsutil"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/pda"
)

const natsNFTMintedSubject = "registry.nft.minted"

// derivedMintProvider derives the token address deterministically from the
// credential address; the same credential always yields the same token
type derivedMintProvider struct{}

// MintOne derives the token address and publishes the mint event
func (p *derivedMintProvider) MintOne(credentialAddress, owner, name, symbol, uri string) (string, error) {
	tokenAddress, _, err := pda.Derive(pda.KindNFTMint, pda.AddressSeed(credentialAddress))
	if err != nil {
		return "", err
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"token_address": tokenAddress,
		"credential":    credentialAddress,
		"owner":         owner,
		"name":          name,
		"symbol":        symbol,
		"uri":           uri,
	})

	if _, err := natsutil.NatsJetstreamPublish(natsNFTMintedSubject, payload); err != nil {
		common.Log.Warningf("failed to publish mint event for token: %s; %s", tokenAddress, err.Error())
	}

	common.Log.Debugf("minted credential token %s for owner %s", tokenAddress, owner)
	return tokenAddress, nil
}
