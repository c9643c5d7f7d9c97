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

package activity

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/resource"
)

func testWallet(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return base58.Encode(sum[:])
}

func testActivity() *Activity {
	return &Activity{
		Address:           common.StringOrNil("activity-address"),
		Provider:          common.StringOrNil("provider-address"),
		Student:           common.StringOrNil(testWallet("student")),
		Kind:              common.StringOrNil(KindSubmitAssignment),
		Status:            common.StringOrNil(StatusActive),
		CreationTimestamp: 1700000000,
		UpdatedAtSec:      1700000000,
	}
}

func TestArchiveIsOneWay(t *testing.T) {
	a := testActivity()
	assert.False(t, a.Archived())

	assert.NoError(t, a.Archive(1700000100))
	assert.True(t, a.Archived())

	err := a.Archive(1700000200)
	assert.Equal(t, ErrActivityArchived, err)
}

func TestArchivedActivityIsImmutable(t *testing.T) {
	a := testActivity()
	assert.NoError(t, a.Archive(1700000100))

	assert.Equal(t, ErrActivityArchived, a.AddFeedback("feedback", nil, 1700000200))
	assert.Equal(t, ErrActivityArchived, a.AddGrade(80.0, testWallet("grader"), nil, 1700000200))
	assert.Equal(t, ErrActivityArchived, a.AddAttendance([]string{"asset"}, 1700000200))
}

func TestAddGrade(t *testing.T) {
	a := testActivity()
	grader := testWallet("grader")

	assert.Equal(t, ErrInvalidGrade, a.AddGrade(-0.01, grader, nil, 1700000100))
	assert.Equal(t, ErrInvalidGrade, a.AddGrade(100.01, grader, nil, 1700000100))

	assert.NoError(t, a.AddGrade(72.5, grader, []string{"evidence-1"}, 1700000200))
	assert.Equal(t, 72.5, *a.Grade)
	assert.Equal(t, grader, *a.GradedBy)

	// grading does not transition the activity status
	assert.False(t, a.Archived())
	assert.Equal(t, StatusActive, *a.Status)

	// a later grade overwrites the earlier one
	assert.NoError(t, a.AddGrade(88.0, grader, nil, 1700000300))
	assert.Equal(t, 88.0, *a.Grade)
}

func TestGradeAfterArchiveFails(t *testing.T) {
	a := testActivity()
	assert.NoError(t, a.AddGrade(60.0, testWallet("grader"), nil, 1700000100))
	assert.NoError(t, a.Archive(1700000200))

	err := a.AddGrade(90.0, testWallet("grader"), nil, 1700000300)
	assert.Equal(t, ErrActivityArchived, err)
	assert.Equal(t, 60.0, *a.Grade)
}

func TestEvidenceCapacity(t *testing.T) {
	a := testActivity()

	assets := make([]string, MaxEvidenceAssets)
	for i := range assets {
		assets[i] = testWallet(string(rune('a' + i)))
	}

	assert.NoError(t, a.AddFeedback("feedback", assets, 1700000100))
	assert.Len(t, a.FeedbackAssets, MaxEvidenceAssets)

	// the cap is checked before any mutation is applied
	err := a.AddFeedback("more feedback", []string{"overflow"}, 1700000200)
	assert.Equal(t, ErrTooManyEvidenceAssets, err)
	assert.Len(t, a.FeedbackAssets, MaxEvidenceAssets)
	assert.Equal(t, "feedback", *a.Feedback)

	// each evidence list is capped independently
	assert.NoError(t, a.AddGrade(50.0, testWallet("grader"), assets, 1700000300))
	assert.Equal(t, ErrTooManyEvidenceAssets, a.AddGrade(50.0, testWallet("grader"), []string{"overflow"}, 1700000400))

	assert.NoError(t, a.AddAttendance(assets, 1700000500))
	assert.Equal(t, ErrTooManyEvidenceAssets, a.AddAttendance([]string{"overflow"}, 1700000600))
}

func TestAddFeedbackLength(t *testing.T) {
	a := testActivity()
	err := a.AddFeedback(strings.Repeat("x", maxFeedbackLen+1), nil, 1700000100)
	assert.Error(t, err)
	assert.Nil(t, a.Feedback)
}

func TestValidateActivity(t *testing.T) {
	a := testActivity()
	assert.True(t, a.validate())

	a = testActivity()
	a.Kind = common.StringOrNil("watch_lecture")
	assert.False(t, a.validate())

	a = testActivity()
	a.Student = common.StringOrNil("not-a-wallet")
	assert.False(t, a.validate())

	a = testActivity()
	a.Data = common.StringOrNil(strings.Repeat("x", maxDataLen+1))
	assert.False(t, a.validate())

	a = testActivity()
	a.FeedbackAssets = pq.StringArray{}
	assert.True(t, a.validate())
}

func TestValidateActivityCurriculumLinkage(t *testing.T) {
	a := testActivity()
	a.DegreeID = common.StringOrNil("degree-2026")
	a.Course = common.StringOrNil("course-address")
	a.ResourceID = common.StringOrNil("resource-101")
	a.ResourceKind = common.StringOrNil(resource.KindAssignment)
	assert.True(t, a.validate())

	a = testActivity()
	a.ResourceKind = common.StringOrNil("quiz")
	assert.False(t, a.validate())

	a = testActivity()
	a.DegreeID = common.StringOrNil(strings.Repeat("x", maxDegreeIDLen+1))
	assert.False(t, a.validate())

	a = testActivity()
	a.ResourceID = common.StringOrNil(strings.Repeat("x", maxResourceIDLen+1))
	assert.False(t, a.validate())
}
