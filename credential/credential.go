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
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/jinzhu/gorm"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/pda"
)

// Credential status vocabulary; transitions are monotonic with no
// back-transitions
const (
	StatusPending  = "pending"
	StatusEndorsed = "endorsed"
	StatusVerified = "verified"
	StatusMinted   = "minted"
)

// MaxLinkedActivities caps the linked activity list
const MaxLinkedActivities = 20

// MaxSkills caps the metadata skill list
const MaxSkills = 10

const maxTitleLen = 100
const maxDescriptionLen = 500
const maxResearchOutputLen = 200
const maxEndorsementLen = 300
const maxSkillLen = 50

var (
	// ErrUnauthorizedCredentialAction is returned when the caller may not
	// perform the requested transition
	ErrUnauthorizedCredentialAction = common.AuthorizationError("unauthorized_credential_action", "unauthorized credential action")

	// ErrCredentialAlreadyExists is returned on a second create for the same
	// (course, student) pair
	ErrCredentialAlreadyExists = common.ConflictError("credential_already_exists", "a credential already exists for this course and student")

	// ErrCourseNotActive is returned when credential creation targets a
	// course that has not been verified
	ErrCourseNotActive = common.StateError("course_not_active", "course must be verified before credentials can be created against it")

	// ErrTooManyActivities is returned when the linked activity list is at capacity
	ErrTooManyActivities = common.CapacityError("too_many_activities", fmt.Sprintf("linked activity capacity of %d reached", MaxLinkedActivities))

	// ErrActivityAlreadyLinked is returned on a duplicate activity link;
	// double-linking signals a caller bug and fails loudly
	ErrActivityAlreadyLinked = common.ConflictError("activity_already_linked", "activity is already linked to this credential")

	// ErrMentorMismatch is returned when an endorsement arrives from a wallet
	// other than the credential's permanently bound mentor
	ErrMentorMismatch = common.AuthorizationError("mentor_mismatch", "credential is bound to a different mentor")

	// ErrNotEndorsed is returned when approval is attempted before endorsement
	ErrNotEndorsed = common.StateError("not_endorsed", "credential has not been endorsed")

	// ErrCredentialFinalized is returned when an endorsement targets a
	// credential that has already advanced past endorsement
	ErrCredentialFinalized = common.StateError("credential_finalized", "credential has advanced past endorsement")

	// ErrNotVerified is returned when minting is attempted before approval
	ErrNotVerified = common.StateError("not_verified", "credential has not been verified")

	// ErrAlreadyMinted is returned when a finalized credential is mutated
	ErrAlreadyMinted = common.StateError("already_minted", "credential has already been minted")
)

// Metadata is the credential's descriptive payload, persisted as a json
// column; the title and description are seeded from the course at creation
type Metadata struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Skills            []string `json:"skills"`
	ResearchOutput    string   `json:"research_output"`
	MentorEndorsement string   `json:"mentor_endorsement"`
	CompletionDate    *int64   `json:"completion_date"`
	Activities        []string `json:"activities"`
}

// Value marshals the metadata for persistence
func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan unmarshals the persisted metadata
func (m *Metadata) Scan(value interface{}) error {
	switch raw := value.(type) {
	case []byte:
		return json.Unmarshal(raw, m)
	case string:
		return json.Unmarshal([]byte(raw), m)
	case nil:
		*m = Metadata{}
		return nil
	}
	return fmt.Errorf("failed to scan credential metadata; unexpected type %T", value)
}

// Credential is the student-held record of course completion, keyed by
// (course, student); it advances pending -> endorsed -> verified -> minted
type Credential struct {
	provide.Model

	Address *string `sql:"not null" json:"address"`
	Bump    uint8   `sql:"not null" json:"bump"`
	Course  *string `sql:"not null" json:"course"`
	Student *string `sql:"not null" json:"student"`

	Status *string `sql:"not null;default:'pending'" json:"status"`

	// MentorWallet binds on the first endorsement and never changes
	MentorWallet *string `json:"mentor_wallet"`

	Metadata Metadata `sql:"type:json" json:"metadata"`

	VerificationCount uint64  `sql:"not null;default:0" json:"verification_count"`
	TokenAddress      *string `json:"token_address"`

	CreatedAtSec int64 `gorm:"column:created_at_sec" json:"created_at_sec"`
	UpdatedAtSec int64 `gorm:"column:updated_at_sec" json:"updated_at_sec"`

	Revision uint64 `sql:"not null;default:0" json:"-"`
}

// Create persists the credential at its derived address with status pending;
// at most one credential exists per (course, student)
func (cred *Credential) Create(tx *gorm.DB) bool {
	if !cred.validate() {
		return false
	}

	address, bump, err := pda.Derive(pda.KindCredential, pda.AddressSeed(*cred.Course), pda.AddressSeed(*cred.Student))
	if err != nil {
		cred.Errors = append(cred.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}
	cred.Address = common.StringOrNil(address)
	cred.Bump = bump

	var count int
	tx.Model(&Credential{}).Where("address = ?", address).Count(&count)
	if count > 0 {
		cred.Errors = append(cred.Errors, &provide.Error{
			Message: common.StringOrNil(ErrCredentialAlreadyExists.Message),
		})
		return false
	}

	cred.Status = common.StringOrNil(StatusPending)
	cred.MentorWallet = nil
	if cred.Metadata.Skills == nil {
		cred.Metadata.Skills = []string{}
	}
	if cred.Metadata.Activities == nil {
		cred.Metadata.Activities = []string{}
	}
	cred.UpdatedAtSec = cred.CreatedAtSec

	result := tx.Create(&cred)
	rowsAffected := result.RowsAffected
	errors := result.GetErrors()
	if len(errors) > 0 {
		for _, err := range errors {
			cred.Errors = append(cred.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
	}

	success := rowsAffected > 0
	if success {
		common.Log.Debugf("created credential at address %s for student %s", address, *cred.Student)
	}
	return success
}

// LinkActivity appends an activity reference to the metadata; a duplicate
// link fails rather than no-ops
func (cred *Credential) LinkActivity(activityAddress string, now int64) error {
	if common.ContainsString(cred.Metadata.Activities, activityAddress) {
		return ErrActivityAlreadyLinked
	}
	if len(cred.Metadata.Activities) >= MaxLinkedActivities {
		return ErrTooManyActivities
	}
	cred.Metadata.Activities = append(cred.Metadata.Activities, activityAddress)
	cred.UpdatedAtSec = now
	return nil
}

// Endorse records the mentor's endorsement and advances the credential to
// endorsed; the first endorser becomes the permanently bound mentor and any
// later endorsement must come from the same wallet
func (cred *Credential) Endorse(mentor, endorsement string, now int64) error {
	if cred.Status != nil && (*cred.Status == StatusVerified || *cred.Status == StatusMinted) {
		return ErrCredentialFinalized
	}
	if len(endorsement) > maxEndorsementLen {
		return common.ValidationError("invalid_endorsement", fmt.Sprintf("endorsement exceeds %d bytes", maxEndorsementLen))
	}

	if cred.MentorWallet == nil {
		cred.MentorWallet = common.StringOrNil(mentor)
	} else if *cred.MentorWallet != mentor {
		return ErrMentorMismatch
	}

	cred.Metadata.MentorEndorsement = endorsement
	cred.Status = common.StringOrNil(StatusEndorsed)
	cred.UpdatedAtSec = now
	return nil
}

// Approve advances the credential from endorsed to verified
func (cred *Credential) Approve(now int64) error {
	if cred.Status == nil || *cred.Status != StatusEndorsed {
		return ErrNotEndorsed
	}
	cred.Status = common.StringOrNil(StatusVerified)
	cred.UpdatedAtSec = now
	return nil
}

// Mintable returns nil if the credential is ready to mint; minting is only
// legal from verified and exactly once
func (cred *Credential) Mintable() error {
	if cred.Status != nil && *cred.Status == StatusMinted {
		return ErrAlreadyMinted
	}
	if cred.Status == nil || *cred.Status != StatusVerified {
		return ErrNotVerified
	}
	return nil
}

// RecordMint finalizes the credential with its token identity
func (cred *Credential) RecordMint(tokenAddress string, now int64) error {
	if err := cred.Mintable(); err != nil {
		return err
	}
	cred.TokenAddress = common.StringOrNil(tokenAddress)
	cred.Status = common.StringOrNil(StatusMinted)
	cred.UpdatedAtSec = now
	return nil
}

// RecordVerification increments the verification counter
func (cred *Credential) RecordVerification(now int64) {
	cred.VerificationCount++
	cred.UpdatedAtSec = now
}

// UpdateMetadata applies a student-gated mutation of the free-form metadata
// fields; nil params leave the corresponding field unchanged
func (cred *Credential) UpdateMetadata(researchOutput *string, skills []string, completionDate *int64, now int64) error {
	if researchOutput != nil {
		if len(*researchOutput) > maxResearchOutputLen {
			return common.ValidationError("invalid_research_output", fmt.Sprintf("research output exceeds %d bytes", maxResearchOutputLen))
		}
		cred.Metadata.ResearchOutput = *researchOutput
	}
	if skills != nil {
		deduped := []string{}
		for _, skill := range skills {
			if len(skill) > maxSkillLen {
				return common.ValidationError("invalid_skill", fmt.Sprintf("skill exceeds %d bytes", maxSkillLen))
			}
			if !common.ContainsString(deduped, skill) {
				deduped = append(deduped, skill)
			}
		}
		if len(deduped) > MaxSkills {
			return common.CapacityError("too_many_skills", fmt.Sprintf("skill capacity of %d reached", MaxSkills))
		}
		cred.Metadata.Skills = deduped
	}
	if completionDate != nil {
		cred.Metadata.CompletionDate = completionDate
	}
	cred.UpdatedAtSec = now
	return nil
}

// save commits the mutable credential fields with a compare-and-swap on the
// record revision
func (cred *Credential) save(tx *gorm.DB) error {
	rev := cred.Revision
	result := tx.Model(&Credential{}).Where("id = ? AND revision = ?", cred.ID, rev).Updates(map[string]interface{}{
		"status":             cred.Status,
		"mentor_wallet":      cred.MentorWallet,
		"metadata":           cred.Metadata,
		"verification_count": cred.VerificationCount,
		"token_address":      cred.TokenAddress,
		"updated_at_sec":     cred.UpdatedAtSec,
		"revision":           rev + 1,
	})
	if errors := result.GetErrors(); len(errors) > 0 {
		return errors[0]
	}
	if result.RowsAffected == 0 {
		return common.ErrRecordModified
	}
	cred.Revision = rev + 1
	return nil
}

// validate the credential creation params
func (cred *Credential) validate() bool {
	cred.Errors = make([]*provide.Error, 0)

	if cred.Course == nil {
		cred.Errors = append(cred.Errors, &provide.Error{
			Message: common.StringOrNil("course address required"),
		})
	}

	if cred.Student == nil || !common.IsWalletAddress(*cred.Student) {
		cred.Errors = append(cred.Errors, &provide.Error{
			Message: common.StringOrNil("student wallet address required"),
		})
	}

	if len(cred.Metadata.Title) > maxTitleLen {
		cred.Errors = append(cred.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("title exceeds %d bytes", maxTitleLen)),
		})
	}

	if len(cred.Metadata.Description) > maxDescriptionLen {
		cred.Errors = append(cred.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("description exceeds %d bytes", maxDescriptionLen)),
		})
	}

	return len(cred.Errors) == 0
}

// truncate clips a string to at most max bytes
func truncate(str string, max int) string {
	if len(str) > max {
		return str[:max]
	}
	return str
}

// Find resolves a credential record by derived address
func Find(db *gorm.DB, address string) *Credential {
	cred := &Credential{}
	db.Where("address = ?", address).Find(&cred)
	if cred.Address == nil {
		return nil
	}
	return cred
}
