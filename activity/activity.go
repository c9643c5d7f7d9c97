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
	"fmt"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/pda"
	"github.com/faircredit/registry/resource"
)

// Activity kind vocabulary
const (
	KindAddFeedback      = "add_feedback"
	KindAddGrade         = "add_grade"
	KindSubmitAssignment = "submit_assignment"
	KindConsumeResource  = "consume_resource"
	KindAttendMeeting    = "attend_meeting"
)

// Activity status vocabulary; archiving is one-way
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// MaxEvidenceAssets caps each of the feedback, grade evidence and attendance
// asset lists independently
const MaxEvidenceAssets = 10

const maxDataLen = 512
const maxFeedbackLen = 500
const maxDegreeIDLen = 32
const maxResourceIDLen = 32

var activityKinds = []string{
	KindAddFeedback,
	KindAddGrade,
	KindSubmitAssignment,
	KindConsumeResource,
	KindAttendMeeting,
}

var (
	// ErrUnauthorizedActivityAction is returned when the caller may not
	// mutate the activity
	ErrUnauthorizedActivityAction = common.AuthorizationError("unauthorized_activity_action", "unauthorized activity action")

	// ErrActivityAlreadyExists is returned when an activity record already
	// exists at the derived (provider, student, timestamp) address
	ErrActivityAlreadyExists = common.ConflictError("activity_already_exists", "an activity already exists at the derived address")

	// ErrTooManyEvidenceAssets is returned when a bounded evidence list is at capacity
	ErrTooManyEvidenceAssets = common.CapacityError("too_many_evidence_assets", fmt.Sprintf("activity evidence capacity of %d reached", MaxEvidenceAssets))

	// ErrInvalidGrade is returned when a grade falls outside [0, 100]
	ErrInvalidGrade = common.ValidationError("invalid_grade", "grade must be between 0.0 and 100.0")

	// ErrActivityArchived is returned on any mutation of an archived activity
	ErrActivityArchived = common.StateError("activity_archived", "activity has been archived")
)

// Activity is a student learning event under a provider, keyed by
// (provider, student, creation timestamp)
type Activity struct {
	provide.Model

	Address  *string `sql:"not null" json:"address"`
	Bump     uint8   `sql:"not null" json:"bump"`
	Provider *string `sql:"not null" json:"provider"`
	Student  *string `sql:"not null" json:"student"`

	CreationTimestamp int64 `sql:"not null" json:"creation_timestamp"`
	UpdatedAtSec      int64 `gorm:"column:updated_at_sec" json:"updated_at_sec"`

	Kind   *string `sql:"not null" json:"kind"`
	Status *string `sql:"not null;default:'active'" json:"status"`
	Data   *string `json:"data"`

	// optional linkage back to the curriculum the activity was performed
	// against; plain references, not foreign keys
	DegreeID     *string `json:"degree_id"`
	Course       *string `json:"course"`
	ResourceID   *string `json:"resource_id"`
	ResourceKind *string `json:"resource_kind"`

	Feedback       *string        `json:"feedback"`
	FeedbackAssets pq.StringArray `sql:"type:text[]" json:"feedback_assets"`

	// grading an activity is independent of archiving it; the grade may be
	// revised as feedback evolves
	Grade         *float64       `json:"grade"`
	GradedBy      *string        `json:"graded_by"`
	GradeEvidence pq.StringArray `sql:"type:text[]" json:"grade_evidence"`

	AttendanceAssets pq.StringArray `sql:"type:text[]" json:"attendance_assets"`

	Revision uint64 `sql:"not null;default:0" json:"-"`
}

// TableName returns the activity table name
func (Activity) TableName() string {
	return "activities"
}

// Create persists the activity at its derived address with status active;
// the client-supplied creation timestamp is validated against the trusted
// clock
func (a *Activity) Create(tx *gorm.DB, now int64) bool {
	if !a.validate() {
		return false
	}

	if !common.ValidCreationTimestamp(a.CreationTimestamp, now) {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(common.ErrStaleCreationTimestamp.Message),
		})
		return false
	}

	address, bump, err := pda.Derive(pda.KindActivity, pda.AddressSeed(*a.Provider), pda.AddressSeed(*a.Student), pda.TimestampSeed(a.CreationTimestamp))
	if err != nil {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}
	a.Address = common.StringOrNil(address)
	a.Bump = bump

	var count int
	tx.Model(&Activity{}).Where("address = ?", address).Count(&count)
	if count > 0 {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(ErrActivityAlreadyExists.Message),
		})
		return false
	}

	a.Status = common.StringOrNil(StatusActive)
	a.Grade = nil
	if a.FeedbackAssets == nil {
		a.FeedbackAssets = pq.StringArray{}
	}
	if a.GradeEvidence == nil {
		a.GradeEvidence = pq.StringArray{}
	}
	if a.AttendanceAssets == nil {
		a.AttendanceAssets = pq.StringArray{}
	}
	a.UpdatedAtSec = now

	result := tx.Create(&a)
	rowsAffected := result.RowsAffected
	errors := result.GetErrors()
	if len(errors) > 0 {
		for _, err := range errors {
			a.Errors = append(a.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
	}

	success := rowsAffected > 0
	if success {
		common.Log.Debugf("created %s activity at address %s", *a.Kind, address)
	}
	return success
}

// Archived returns true once the activity has been archived
func (a *Activity) Archived() bool {
	return a.Status != nil && *a.Status == StatusArchived
}

// AddFeedback records feedback text and its supporting assets; the evidence
// list cap is checked before any mutation is applied
func (a *Activity) AddFeedback(feedback string, assets []string, now int64) error {
	if a.Archived() {
		return ErrActivityArchived
	}
	if len(feedback) > maxFeedbackLen {
		return common.ValidationError("invalid_feedback", fmt.Sprintf("feedback exceeds %d bytes", maxFeedbackLen))
	}
	if len(a.FeedbackAssets)+len(assets) > MaxEvidenceAssets {
		return ErrTooManyEvidenceAssets
	}
	a.Feedback = common.StringOrNil(feedback)
	a.FeedbackAssets = append(a.FeedbackAssets, assets...)
	a.UpdatedAtSec = now
	return nil
}

// AddGrade records the grade and its evidence; grading does not transition
// the activity status and a later grade overwrites an earlier one
func (a *Activity) AddGrade(grade float64, gradedBy string, evidence []string, now int64) error {
	if a.Archived() {
		return ErrActivityArchived
	}
	if grade < 0.0 || grade > 100.0 {
		return ErrInvalidGrade
	}
	if len(a.GradeEvidence)+len(evidence) > MaxEvidenceAssets {
		return ErrTooManyEvidenceAssets
	}
	a.Grade = &grade
	a.GradedBy = common.StringOrNil(gradedBy)
	a.GradeEvidence = append(a.GradeEvidence, evidence...)
	a.UpdatedAtSec = now
	return nil
}

// AddAttendance records attendance proof assets
func (a *Activity) AddAttendance(assets []string, now int64) error {
	if a.Archived() {
		return ErrActivityArchived
	}
	if len(a.AttendanceAssets)+len(assets) > MaxEvidenceAssets {
		return ErrTooManyEvidenceAssets
	}
	a.AttendanceAssets = append(a.AttendanceAssets, assets...)
	a.UpdatedAtSec = now
	return nil
}

// Archive transitions the activity to archived; archiving is one-way and
// archiving twice fails
func (a *Activity) Archive(now int64) error {
	if a.Archived() {
		return ErrActivityArchived
	}
	a.Status = common.StringOrNil(StatusArchived)
	a.UpdatedAtSec = now
	return nil
}

// save commits the mutable activity fields with a compare-and-swap on the
// record revision
func (a *Activity) save(tx *gorm.DB) error {
	rev := a.Revision
	result := tx.Model(&Activity{}).Where("id = ? AND revision = ?", a.ID, rev).Updates(map[string]interface{}{
		"status":            a.Status,
		"feedback":          a.Feedback,
		"feedback_assets":   a.FeedbackAssets,
		"grade":             a.Grade,
		"graded_by":         a.GradedBy,
		"grade_evidence":    a.GradeEvidence,
		"attendance_assets": a.AttendanceAssets,
		"updated_at_sec":    a.UpdatedAtSec,
		"revision":          rev + 1,
	})
	if errors := result.GetErrors(); len(errors) > 0 {
		return errors[0]
	}
	if result.RowsAffected == 0 {
		return common.ErrRecordModified
	}
	a.Revision = rev + 1
	return nil
}

// validate the activity creation params
func (a *Activity) validate() bool {
	a.Errors = make([]*provide.Error, 0)

	if a.Provider == nil {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil("provider address required"),
		})
	}

	if a.Student == nil || !common.IsWalletAddress(*a.Student) {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil("student wallet address required"),
		})
	}

	if a.Kind == nil || !common.ContainsString(activityKinds, *a.Kind) {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil("valid activity kind required"),
		})
	}

	if a.Data != nil && len(*a.Data) > maxDataLen {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("activity data exceeds %d bytes", maxDataLen)),
		})
	}

	if a.DegreeID != nil && len(*a.DegreeID) > maxDegreeIDLen {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("degree id exceeds %d bytes", maxDegreeIDLen)),
		})
	}

	if a.ResourceID != nil && len(*a.ResourceID) > maxResourceIDLen {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("resource id exceeds %d bytes", maxResourceIDLen)),
		})
	}

	if a.ResourceKind != nil && !resource.ValidKind(*a.ResourceKind) {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil("valid resource kind required"),
		})
	}

	return len(a.Errors) == 0
}

// Find resolves an activity record by derived address
func Find(db *gorm.DB, address string) *Activity {
	a := &Activity{}
	db.Where("address = ?", address).Find(&a)
	if a.Address == nil {
		return nil
	}
	return a
}
