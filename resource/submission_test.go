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
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/faircredit/registry/common"
)

func testSubmission() *Submission {
	return &Submission{
		Address:             common.StringOrNil("submission-address"),
		Resource:            common.StringOrNil("resource-address"),
		Student:             common.StringOrNil(testWallet("student")),
		Status:              common.StringOrNil(SubmissionStatusSubmitted),
		SubmissionTimestamp: 1700000000,
		UpdatedAtSec:        1700000000,
	}
}

func TestApplyGradeBounds(t *testing.T) {
	s := testSubmission()
	grader := testWallet("grader")

	assert.Equal(t, ErrInvalidGrade, s.ApplyGrade(-0.01, nil, grader, 1700000100))
	assert.Equal(t, ErrInvalidGrade, s.ApplyGrade(100.01, nil, grader, 1700000100))
	assert.Equal(t, SubmissionStatusSubmitted, *s.Status)

	assert.NoError(t, s.ApplyGrade(0.0, nil, grader, 1700000200))
	assert.NoError(t, s.ApplyGrade(100.0, nil, grader, 1700000300))
}

func TestApplyGrade(t *testing.T) {
	s := testSubmission()
	grader := testWallet("grader")
	feedback := "solid work"

	assert.NoError(t, s.ApplyGrade(85.5, &feedback, grader, 1700000100))
	assert.Equal(t, SubmissionStatusGraded, *s.Status)
	assert.Equal(t, 85.5, *s.Grade)
	assert.Equal(t, grader, *s.GradedBy)
	assert.Equal(t, int64(1700000100), *s.GradedAt)

	// regrading overwrites the earlier grade
	assert.NoError(t, s.ApplyGrade(90.0, nil, grader, 1700000200))
	assert.Equal(t, 90.0, *s.Grade)
	assert.Equal(t, SubmissionStatusGraded, *s.Status)

	long := strings.Repeat("x", maxFeedbackLen+1)
	assert.Error(t, s.ApplyGrade(90.0, &long, grader, 1700000300))
}

func TestAcceptRequiresGrade(t *testing.T) {
	s := testSubmission()

	err := s.Accept(1700000100)
	assert.Equal(t, ErrSubmissionNotGraded, err)

	assert.NoError(t, s.ApplyGrade(75.0, nil, testWallet("grader"), 1700000200))
	assert.NoError(t, s.Accept(1700000300))
	assert.Equal(t, SubmissionStatusAccepted, *s.Status)
}

func TestAcceptedSubmissionIsImmutable(t *testing.T) {
	s := testSubmission()
	grader := testWallet("grader")

	assert.NoError(t, s.ApplyGrade(75.0, nil, grader, 1700000100))
	assert.NoError(t, s.Accept(1700000200))

	err := s.ApplyGrade(95.0, nil, grader, 1700000300)
	assert.Equal(t, ErrSubmissionAccepted, err)
	assert.Equal(t, 75.0, *s.Grade)
}

func TestReturnForRevision(t *testing.T) {
	s := testSubmission()
	s.ReturnForRevision(1700000100)
	assert.Equal(t, SubmissionStatusReturned, *s.Status)

	s = testSubmission()
	assert.NoError(t, s.ApplyGrade(40.0, nil, testWallet("grader"), 1700000100))
	s.ReturnForRevision(1700000200)
	assert.Equal(t, SubmissionStatusReturned, *s.Status)
}

func TestSubmissionSetNostrRef(t *testing.T) {
	s := testSubmission()

	assert.NoError(t, s.SetNostrRef("nostr:note1abc", false, 1700000100))
	assert.Equal(t, "nostr:note1abc", *s.NostrRef)

	err := s.SetNostrRef("nostr:note1def", false, 1700000200)
	assert.Equal(t, ErrNostrRefAlreadySet, err)
	assert.Equal(t, "nostr:note1abc", *s.NostrRef)

	assert.NoError(t, s.SetNostrRef("nostr:note1def", true, 1700000300))
	assert.Equal(t, "nostr:note1def", *s.NostrRef)
}

func TestSubmissionSetWalrusRef(t *testing.T) {
	s := testSubmission()
	s.SetWalrusRef("walrus-blob-id", 1700000100)
	assert.Equal(t, "walrus-blob-id", *s.WalrusRef)
	assert.Equal(t, int64(1700000100), s.UpdatedAtSec)
}

func TestValidateSubmission(t *testing.T) {
	s := testSubmission()
	assert.True(t, s.validate())

	s = testSubmission()
	s.Student = common.StringOrNil("not-a-wallet")
	assert.False(t, s.validate())

	s = testSubmission()
	s.Assets = make(pq.StringArray, MaxSubmissionAssets+1)
	assert.False(t, s.validate())
}
