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

package course

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faircredit/registry/common"
)

func testCourse(status string) *Course {
	return &Course{
		Address:           common.StringOrNil("course-address"),
		Hub:               common.StringOrNil("hub-address"),
		Provider:          common.StringOrNil("provider-address"),
		Name:              common.StringOrNil("Distributed Systems"),
		Status:            common.StringOrNil(status),
		CreationTimestamp: 1700000000,
		UpdatedAtSec:      1700000000,
	}
}

func TestStatusTransitions(t *testing.T) {
	legal := []struct {
		from string
		to   string
	}{
		{StatusDraft, StatusInReview},
		{StatusDraft, StatusVerified},
		{StatusDraft, StatusRejected},
		{StatusInReview, StatusVerified},
		{StatusInReview, StatusRejected},
		{StatusVerified, StatusArchived},
		{StatusRejected, StatusArchived},
	}
	for _, transition := range legal {
		c := testCourse(transition.from)
		assert.NoError(t, c.UpdateStatus(transition.to, nil, 1700000100), "%s -> %s should be legal", transition.from, transition.to)
		assert.Equal(t, transition.to, *c.Status)
	}

	illegal := []struct {
		from string
		to   string
	}{
		{StatusDraft, StatusArchived},
		{StatusInReview, StatusDraft},
		{StatusVerified, StatusDraft},
		{StatusVerified, StatusRejected},
		{StatusRejected, StatusVerified},
		{StatusArchived, StatusDraft},
		{StatusArchived, StatusVerified},
		{StatusArchived, StatusArchived},
	}
	for _, transition := range illegal {
		c := testCourse(transition.from)
		err := c.UpdateStatus(transition.to, nil, 1700000100)
		assert.Equal(t, ErrInvalidStatusTransition, err, "%s -> %s should be illegal", transition.from, transition.to)
		assert.Equal(t, transition.from, *c.Status)
	}
}

func TestRejectionReason(t *testing.T) {
	c := testCourse(StatusInReview)
	reason := "workload documentation incomplete"

	assert.NoError(t, c.UpdateStatus(StatusRejected, &reason, 1700000100))
	assert.Equal(t, reason, *c.RejectionReason)

	c = testCourse(StatusInReview)
	long := strings.Repeat("x", maxRejectionReasonLen+1)
	assert.Error(t, c.UpdateStatus(StatusRejected, &long, 1700000100))
	assert.Equal(t, StatusInReview, *c.Status)
}

func TestAddModule(t *testing.T) {
	c := testCourse(StatusDraft)

	assert.NoError(t, c.AddModule("resource-address", 40, 0, 1700000100))
	assert.Len(t, c.Modules, 1)
	assert.Equal(t, uint8(40), c.Modules[0].Percentage)

	err := c.AddModule("resource-address", 101, 0, 1700000200)
	assert.Equal(t, ErrInvalidModulePercentage, err)
	assert.Len(t, c.Modules, 1)

	for i := 1; i < MaxModules; i++ {
		assert.NoError(t, c.AddModule(fmt.Sprintf("resource-%d", i), 5, 0, 1700000300))
	}
	err = c.AddModule("one-too-many", 5, 0, 1700000400)
	assert.Equal(t, ErrTooManyModules, err)
	assert.Len(t, c.Modules, MaxModules)
}

func TestAddModuleAccumulatesWorkload(t *testing.T) {
	c := testCourse(StatusDraft)
	c.WorkloadRequired = 300

	assert.NoError(t, c.AddModule("resource-1", 50, 120, 1700000100))
	assert.Equal(t, uint32(120), c.Workload)

	assert.NoError(t, c.AddModule("resource-2", 50, 90, 1700000200))
	assert.Equal(t, uint32(210), c.Workload)

	// a resource with no workload minutes contributes nothing
	assert.NoError(t, c.AddModule("resource-3", 0, 0, 1700000300))
	assert.Equal(t, uint32(210), c.Workload)

	// a rejected module leaves the counter untouched
	err := c.AddModule("resource-4", 101, 60, 1700000400)
	assert.Equal(t, ErrInvalidModulePercentage, err)
	assert.Equal(t, uint32(210), c.Workload)
}

func TestAddApprovedCredentialDuplicateFails(t *testing.T) {
	c := testCourse(StatusVerified)

	assert.NoError(t, c.AddApprovedCredential("credential-address", 1700000100))

	// double approval is a caller bug, not an idempotent no-op
	err := c.AddApprovedCredential("credential-address", 1700000200)
	assert.Equal(t, ErrCredentialAlreadyApproved, err)
	assert.Len(t, c.ApprovedCredentials, 1)
}

func TestAddApprovedCredentialCapacity(t *testing.T) {
	c := testCourse(StatusVerified)
	for i := 0; i < MaxApprovedCredentials; i++ {
		assert.NoError(t, c.AddApprovedCredential(fmt.Sprintf("credential-%d", i), 1700000100))
	}

	err := c.AddApprovedCredential("one-too-many", 1700000200)
	assert.Equal(t, ErrTooManyApprovedCredentials, err)
	assert.Len(t, c.ApprovedCredentials, MaxApprovedCredentials)
}

func TestSetNostrRef(t *testing.T) {
	c := testCourse(StatusDraft)

	assert.NoError(t, c.SetNostrRef("nevent1abc", false, 1700000100))
	assert.Equal(t, "nevent1abc", *c.NostrRef)

	err := c.SetNostrRef("nevent1def", false, 1700000200)
	assert.Equal(t, ErrNostrRefAlreadySet, err)
	assert.Equal(t, "nevent1abc", *c.NostrRef)

	assert.NoError(t, c.SetNostrRef("nevent1def", true, 1700000300))
	assert.Equal(t, "nevent1def", *c.NostrRef)
}

func TestActive(t *testing.T) {
	assert.False(t, testCourse(StatusDraft).Active())
	assert.False(t, testCourse(StatusInReview).Active())
	assert.True(t, testCourse(StatusVerified).Active())
	assert.False(t, testCourse(StatusRejected).Active())
	assert.False(t, testCourse(StatusArchived).Active())
}

func TestValidateCourse(t *testing.T) {
	c := testCourse(StatusDraft)
	assert.True(t, c.validate())

	c = testCourse(StatusDraft)
	c.Name = common.StringOrNil(strings.Repeat("x", maxNameLen+1))
	assert.False(t, c.validate())

	c = testCourse(StatusDraft)
	c.Description = common.StringOrNil(strings.Repeat("x", maxDescriptionLen+1))
	assert.False(t, c.validate())

	c = testCourse(StatusDraft)
	c.DTag = common.StringOrNil(strings.Repeat("x", maxDTagLen+1))
	assert.False(t, c.validate())

	c = testCourse(StatusDraft)
	c.Provider = nil
	assert.False(t, c.validate())
}
