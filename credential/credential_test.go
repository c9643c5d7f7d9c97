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

package credential

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"

	"github.com/faircredit/registry/common"
)

func testWallet(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return base58.Encode(sum[:])
}

func testCredential(status string) *Credential {
	return &Credential{
		Address:      common.StringOrNil("credential-address"),
		Course:       common.StringOrNil("course-address"),
		Student:      common.StringOrNil(testWallet("student")),
		Status:       common.StringOrNil(status),
		CreatedAtSec: 1700000000,
		UpdatedAtSec: 1700000000,
	}
}

func TestEndorseBindsMentor(t *testing.T) {
	cred := testCredential(StatusPending)
	mentor := testWallet("mentor")

	assert.NoError(t, cred.Endorse(mentor, "excellent research", 1700000100))
	assert.Equal(t, StatusEndorsed, *cred.Status)
	assert.Equal(t, mentor, *cred.MentorWallet)
	assert.Equal(t, "excellent research", cred.Metadata.MentorEndorsement)

	// the bound mentor may revise the endorsement
	assert.NoError(t, cred.Endorse(mentor, "outstanding research", 1700000200))
	assert.Equal(t, "outstanding research", cred.Metadata.MentorEndorsement)

	// any other wallet may not
	err := cred.Endorse(testWallet("other-mentor"), "also great", 1700000300)
	assert.Equal(t, ErrMentorMismatch, err)
	assert.Equal(t, mentor, *cred.MentorWallet)
	assert.Equal(t, "outstanding research", cred.Metadata.MentorEndorsement)
}

func TestEndorseFinalizedCredentialFails(t *testing.T) {
	mentor := testWallet("mentor")

	cred := testCredential(StatusVerified)
	assert.Equal(t, ErrCredentialFinalized, cred.Endorse(mentor, "too late", 1700000100))

	cred = testCredential(StatusMinted)
	assert.Equal(t, ErrCredentialFinalized, cred.Endorse(mentor, "too late", 1700000100))
}

func TestEndorsementLength(t *testing.T) {
	cred := testCredential(StatusPending)
	err := cred.Endorse(testWallet("mentor"), strings.Repeat("x", maxEndorsementLen+1), 1700000100)
	assert.Error(t, err)
	assert.Equal(t, StatusPending, *cred.Status)
	assert.Nil(t, cred.MentorWallet)
}

func TestApproveRequiresEndorsement(t *testing.T) {
	cred := testCredential(StatusPending)
	assert.Equal(t, ErrNotEndorsed, cred.Approve(1700000100))

	cred = testCredential(StatusEndorsed)
	assert.NoError(t, cred.Approve(1700000100))
	assert.Equal(t, StatusVerified, *cred.Status)

	// approving twice fails; the credential is no longer endorsed
	assert.Equal(t, ErrNotEndorsed, cred.Approve(1700000200))
}

func TestMintLifecycle(t *testing.T) {
	cred := testCredential(StatusPending)
	assert.Equal(t, ErrNotVerified, cred.Mintable())
	assert.Equal(t, ErrNotVerified, cred.RecordMint("token-address", 1700000100))

	cred = testCredential(StatusEndorsed)
	assert.Equal(t, ErrNotVerified, cred.Mintable())

	cred = testCredential(StatusVerified)
	assert.NoError(t, cred.Mintable())
	assert.NoError(t, cred.RecordMint("token-address", 1700000200))
	assert.Equal(t, StatusMinted, *cred.Status)
	assert.Equal(t, "token-address", *cred.TokenAddress)

	// minting is exactly once
	assert.Equal(t, ErrAlreadyMinted, cred.Mintable())
	assert.Equal(t, ErrAlreadyMinted, cred.RecordMint("other-token", 1700000300))
	assert.Equal(t, "token-address", *cred.TokenAddress)
}

func TestLinkActivity(t *testing.T) {
	cred := testCredential(StatusPending)

	assert.NoError(t, cred.LinkActivity("activity-address", 1700000100))
	assert.Len(t, cred.Metadata.Activities, 1)

	// double-linking is a caller bug and fails loudly
	err := cred.LinkActivity("activity-address", 1700000200)
	assert.Equal(t, ErrActivityAlreadyLinked, err)
	assert.Len(t, cred.Metadata.Activities, 1)

	for i := 1; i < MaxLinkedActivities; i++ {
		assert.NoError(t, cred.LinkActivity(fmt.Sprintf("activity-%d", i), 1700000300))
	}
	err = cred.LinkActivity("one-too-many", 1700000400)
	assert.Equal(t, ErrTooManyActivities, err)
	assert.Len(t, cred.Metadata.Activities, MaxLinkedActivities)
}

func TestRecordVerification(t *testing.T) {
	cred := testCredential(StatusMinted)
	assert.Equal(t, uint64(0), cred.VerificationCount)

	cred.RecordVerification(1700000100)
	cred.RecordVerification(1700000200)
	assert.Equal(t, uint64(2), cred.VerificationCount)
	assert.Equal(t, int64(1700000200), cred.UpdatedAtSec)
}

func TestUpdateMetadata(t *testing.T) {
	cred := testCredential(StatusPending)

	research := "published survey of consensus protocols"
	completion := int64(1700001000)
	assert.NoError(t, cred.UpdateMetadata(&research, []string{"go", "raft", "go"}, &completion, 1700000100))
	assert.Equal(t, research, cred.Metadata.ResearchOutput)
	assert.Equal(t, []string{"go", "raft"}, cred.Metadata.Skills)
	assert.Equal(t, completion, *cred.Metadata.CompletionDate)

	long := strings.Repeat("x", maxResearchOutputLen+1)
	assert.Error(t, cred.UpdateMetadata(&long, nil, nil, 1700000200))
	assert.Equal(t, research, cred.Metadata.ResearchOutput)

	tooMany := make([]string, MaxSkills+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("skill-%d", i)
	}
	assert.Error(t, cred.UpdateMetadata(nil, tooMany, nil, 1700000300))
	assert.Equal(t, []string{"go", "raft"}, cred.Metadata.Skills)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcde", truncate("abcdefgh", 5))
}
