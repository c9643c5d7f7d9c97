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
	"fmt"
)

// TokenSymbol is the fixed symbol stamped on every minted credential token
const TokenSymbol = "FairCredit"

// tokenNameMaxLen is the external minting collaborator's name budget; longer
// names are truncated here at the boundary, not in credential logic
const tokenNameMaxLen = 32

const tokenURIBase = "https://faircredit.io/credential"

// MintProviderDerived derives token addresses deterministically without an
// external chain dependency
const MintProviderDerived = "derived"

// MintProvider is the tokenization collaborator boundary; minting is a
// possibly costly, irreversible external operation isolated behind this
// interface so a mint-time failure never rolls back endorsement or approval
type MintProvider interface {
	// MintOne mints a single token for the owner and returns the token address
	MintOne(credentialAddress, owner, name, symbol, uri string) (string, error)
}

// New initializes the named mint provider
func New(name string) (MintProvider, error) {
	switch name {
	case MintProviderDerived, "":
		return &derivedMintProvider{}, nil
	}
	return nil, fmt.Errorf("failed to initialize mint provider: %s", name)
}

// TokenName clips a credential title to the minting collaborator's fixed
// character budget
func TokenName(name string) string {
	runes := []rune(name)
	if len(runes) > tokenNameMaxLen {
		return string(runes[:tokenNameMaxLen])
	}
	return name
}

// TokenURI returns the canonical metadata URI for a credential token
func TokenURI(credentialAddress string) string {
	return fmt.Sprintf("%s/%s", tokenURIBase, credentialAddress)
}
