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
	"fmt"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/pda"
)

// Submission status vocabulary
const (
	SubmissionStatusSubmitted = "submitted"
	SubmissionStatusGraded    = "graded"
	SubmissionStatusAccepted  = "accepted"
	SubmissionStatusReturned  = "returned"
)

// MaxSubmissionAssets caps the submission asset and evidence lists independently
const MaxSubmissionAssets = 10

const maxFeedbackLen = 500

var (
	// ErrSubmissionAlreadyExists is returned when a submission record already
	// exists at the derived (resource, student, timestamp) address
	ErrSubmissionAlreadyExists = common.ConflictError("submission_already_exists", "a submission already exists at the derived address")

	// ErrTooManySubmissionAssets is returned when either bounded asset list
	// is at capacity
	ErrTooManySubmissionAssets = common.CapacityError("too_many_submission_assets", fmt.Sprintf("submission asset capacity of %d reached", MaxSubmissionAssets))

	// ErrInvalidGrade is returned when a grade falls outside [0, 100]
	ErrInvalidGrade = common.ValidationError("invalid_grade", "grade must be between 0.0 and 100.0")

	// ErrSubmissionNotGraded is returned when acceptance is attempted before
	// the submission has been graded
	ErrSubmissionNotGraded = common.StateError("submission_not_graded", "submission must be graded before acceptance")

	// ErrSubmissionAccepted is returned when a grade is applied after acceptance
	ErrSubmissionAccepted = common.StateError("submission_accepted", "submission has already been accepted")

	// ErrUnauthorizedGrader is returned when the grader is neither the
	// resource owner nor one of the course provider's endorsers
	ErrUnauthorizedGrader = common.AuthorizationError("unauthorized_grader", "caller is not authorized to grade this submission")
)

// Submission is student work against a resource, keyed by
// (resource, student, submission timestamp)
type Submission struct {
	provide.Model

	Address  *string `sql:"not null" json:"address"`
	Bump     uint8   `sql:"not null" json:"bump"`
	Resource *string `sql:"not null" json:"resource"`
	Student  *string `sql:"not null" json:"student"`

	SubmissionTimestamp int64 `sql:"not null" json:"submission_timestamp"`
	UpdatedAtSec        int64 `gorm:"column:updated_at_sec" json:"updated_at_sec"`

	Status *string `sql:"not null;default:'submitted'" json:"status"`

	Assets         pq.StringArray `sql:"type:text[]" json:"assets"`
	EvidenceAssets pq.StringArray `sql:"type:text[]" json:"evidence_assets"`

	Grade    *float64 `json:"grade"`
	Feedback *string  `json:"feedback"`
	GradedBy *string  `json:"graded_by"`
	GradedAt *int64   `json:"graded_at"`

	NostrRef  *string `json:"nostr_ref"`
	WalrusRef *string `json:"walrus_ref"`

	Revision uint64 `sql:"not null;default:0" json:"-"`
}

// TableName returns the submission table name
func (Submission) TableName() string {
	return "submissions"
}

// Create persists the submission at its derived address with status
// submitted; the client-supplied timestamp is validated against the trusted
// clock and both bounded asset lists are checked up front
func (s *Submission) Create(tx *gorm.DB, now int64) bool {
	if !s.validate() {
		return false
	}

	if !common.ValidCreationTimestamp(s.SubmissionTimestamp, now) {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil(common.ErrStaleCreationTimestamp.Message),
		})
		return false
	}

	address, bump, err := pda.Derive(pda.KindSubmission, pda.AddressSeed(*s.Resource), pda.AddressSeed(*s.Student), pda.TimestampSeed(s.SubmissionTimestamp))
	if err != nil {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}
	s.Address = common.StringOrNil(address)
	s.Bump = bump

	var count int
	tx.Model(&Submission{}).Where("address = ?", address).Count(&count)
	if count > 0 {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil(ErrSubmissionAlreadyExists.Message),
		})
		return false
	}

	s.Status = common.StringOrNil(SubmissionStatusSubmitted)
	if s.Assets == nil {
		s.Assets = pq.StringArray{}
	}
	if s.EvidenceAssets == nil {
		s.EvidenceAssets = pq.StringArray{}
	}
	s.UpdatedAtSec = now

	result := tx.Create(&s)
	rowsAffected := result.RowsAffected
	errors := result.GetErrors()
	if len(errors) > 0 {
		for _, err := range errors {
			s.Errors = append(s.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
	}

	success := rowsAffected > 0
	if success {
		common.Log.Debugf("created submission at address %s", address)
	}
	return success
}

// ApplyGrade records the grade and feedback and transitions the submission to
// graded; regrading overwrites the previous grade but an accepted submission
// is immutable
func (s *Submission) ApplyGrade(grade float64, feedback *string, gradedBy string, now int64) error {
	if s.Status != nil && *s.Status == SubmissionStatusAccepted {
		return ErrSubmissionAccepted
	}
	if grade < 0.0 || grade > 100.0 {
		return ErrInvalidGrade
	}
	if feedback != nil && len(*feedback) > maxFeedbackLen {
		return common.ValidationError("invalid_feedback", fmt.Sprintf("feedback exceeds %d bytes", maxFeedbackLen))
	}

	s.Grade = &grade
	s.Feedback = feedback
	s.GradedBy = common.StringOrNil(gradedBy)
	s.GradedAt = &now
	s.Status = common.StringOrNil(SubmissionStatusGraded)
	s.UpdatedAtSec = now
	return nil
}

// Accept transitions the submission to accepted; only legal from graded
func (s *Submission) Accept(now int64) error {
	if s.Status == nil || *s.Status != SubmissionStatusGraded {
		return ErrSubmissionNotGraded
	}
	s.Status = common.StringOrNil(SubmissionStatusAccepted)
	s.UpdatedAtSec = now
	return nil
}

// ReturnForRevision transitions the submission to returned; legal from any
// status
func (s *Submission) ReturnForRevision(now int64) {
	s.Status = common.StringOrNil(SubmissionStatusReturned)
	s.UpdatedAtSec = now
}

// SetNostrRef sets the nostr content pointer; overwriting a previously set
// ref requires the force flag
func (s *Submission) SetNostrRef(ref string, force bool, now int64) error {
	if s.NostrRef != nil && !force {
		return ErrNostrRefAlreadySet
	}
	s.NostrRef = common.StringOrNil(ref)
	s.UpdatedAtSec = now
	return nil
}

// SetWalrusRef sets the walrus blob pointer
func (s *Submission) SetWalrusRef(ref string, now int64) {
	s.WalrusRef = common.StringOrNil(ref)
	s.UpdatedAtSec = now
}

// save commits the mutable submission fields with a compare-and-swap on the
// record revision
func (s *Submission) save(tx *gorm.DB) error {
	rev := s.Revision
	result := tx.Model(&Submission{}).Where("id = ? AND revision = ?", s.ID, rev).Updates(map[string]interface{}{
		"status":         s.Status,
		"grade":          s.Grade,
		"feedback":       s.Feedback,
		"graded_by":      s.GradedBy,
		"graded_at":      s.GradedAt,
		"nostr_ref":      s.NostrRef,
		"walrus_ref":     s.WalrusRef,
		"updated_at_sec": s.UpdatedAtSec,
		"revision":       rev + 1,
	})
	if errors := result.GetErrors(); len(errors) > 0 {
		return errors[0]
	}
	if result.RowsAffected == 0 {
		return common.ErrRecordModified
	}
	s.Revision = rev + 1
	return nil
}

// validate the submission creation params
func (s *Submission) validate() bool {
	s.Errors = make([]*provide.Error, 0)

	if s.Resource == nil {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil("resource address required"),
		})
	}

	if s.Student == nil || !common.IsWalletAddress(*s.Student) {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil("student wallet address required"),
		})
	}

	if len(s.Assets) > MaxSubmissionAssets {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil(ErrTooManySubmissionAssets.Message),
		})
	}

	if len(s.EvidenceAssets) > MaxSubmissionAssets {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil(ErrTooManySubmissionAssets.Message),
		})
	}

	return len(s.Errors) == 0
}

// FindSubmission resolves a submission record by derived address
func FindSubmission(db *gorm.DB, address string) *Submission {
	s := &Submission{}
	db.Where("address = ?", address).Find(&s)
	if s.Address == nil {
		return nil
	}
	return s
}
