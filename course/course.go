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
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/pda"
)

// Course status vocabulary; transitions are constrained by the transition
// table below and never move backwards
const (
	StatusDraft    = "draft"
	StatusInReview = "in_review"
	StatusVerified = "verified"
	StatusRejected = "rejected"
	StatusArchived = "archived"
)

// MaxModules caps the course module list
const MaxModules = 20

// MaxApprovedCredentials caps the approved credential set
const MaxApprovedCredentials = 200

const maxNameLen = 64
const maxDescriptionLen = 256
const maxRejectionReasonLen = 200
const maxCollegeIDLen = 32
const maxDegreeIDLen = 32
const maxDTagLen = 96

// statusTransitions is the set of legal course status transitions
var statusTransitions = map[string][]string{
	StatusDraft:    {StatusInReview, StatusVerified, StatusRejected},
	StatusInReview: {StatusVerified, StatusRejected},
	StatusVerified: {StatusArchived},
	StatusRejected: {StatusArchived},
	StatusArchived: {},
}

var (
	// ErrUnauthorizedCourseAction is returned when the caller is not the course's provider
	ErrUnauthorizedCourseAction = common.AuthorizationError("unauthorized_course_action", "unauthorized course action")

	// ErrCourseAlreadyExists is returned when a course record already exists
	// at the derived (hub, provider, creation timestamp) address
	ErrCourseAlreadyExists = common.ConflictError("course_already_exists", "a course already exists at the derived address")

	// ErrTooManyModules is returned when the module list is at capacity
	ErrTooManyModules = common.CapacityError("too_many_modules", fmt.Sprintf("course module capacity of %d reached", MaxModules))

	// ErrInvalidModulePercentage is returned when a module weighting is out of range
	ErrInvalidModulePercentage = common.ValidationError("invalid_module_percentage", "module percentage must be between 0 and 100")

	// ErrInvalidStatusTransition is returned when the requested status is not
	// reachable from the course's current status
	ErrInvalidStatusTransition = common.StateError("invalid_status_transition", "requested course status is not reachable from the current status")

	// ErrTooManyApprovedCredentials is returned when the approved credential
	// set is at capacity
	ErrTooManyApprovedCredentials = common.CapacityError("too_many_approved_credentials", fmt.Sprintf("approved credential capacity of %d reached", MaxApprovedCredentials))

	// ErrCredentialAlreadyApproved is returned on duplicate approval; double
	// approval signals a caller bug and fails loudly rather than no-ops
	ErrCredentialAlreadyApproved = common.ConflictError("credential_already_approved", "credential has already been approved for this course")

	// ErrNostrRefAlreadySet is returned when a nostr ref would be overwritten
	// without the explicit force flag
	ErrNostrRefAlreadySet = common.StateError("nostr_ref_already_set", "nostr ref is already set; pass force to overwrite")
)

// Module is a weighted course component referencing a resource record
type Module struct {
	Resource   string `json:"resource"`
	Percentage uint8  `json:"percentage"`
}

// ModuleList is the course module collection, persisted as a json column;
// weightings are not required to sum to 100
type ModuleList []Module

// Value marshals the module list for persistence
func (l ModuleList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan unmarshals the persisted module list
func (l *ModuleList) Scan(value interface{}) error {
	switch raw := value.(type) {
	case []byte:
		return json.Unmarshal(raw, l)
	case string:
		return json.Unmarshal([]byte(raw), l)
	case nil:
		*l = ModuleList{}
		return nil
	}
	return fmt.Errorf("failed to scan course module list; unexpected type %T", value)
}

// Course is a credential-bearing offering created by a provider and keyed by
// (hub, provider, creation timestamp)
type Course struct {
	provide.Model

	Address  *string `sql:"not null" json:"address"`
	Bump     uint8   `sql:"not null" json:"bump"`
	Hub      *string `sql:"not null" json:"hub"`
	Provider *string `sql:"not null" json:"provider"`

	CreationTimestamp int64 `sql:"not null" json:"creation_timestamp"`
	UpdatedAtSec      int64 `gorm:"column:updated_at_sec" json:"updated_at_sec"`

	Name             *string `sql:"not null" json:"name"`
	Description      *string `json:"description"`
	Status           *string `sql:"not null;default:'draft'" json:"status"`
	RejectionReason  *string `json:"rejection_reason"`
	WorkloadRequired uint32  `json:"workload_required"`
	Workload         uint32  `json:"workload"`
	CollegeID        *string `json:"college_id"`
	DegreeID         *string `json:"degree_id"`
	DTag             *string `gorm:"column:d_tag" json:"d_tag"`

	Modules             ModuleList     `sql:"type:json" json:"modules"`
	ApprovedCredentials pq.StringArray `sql:"type:text[]" json:"approved_credentials"`

	NostrRef  *string `json:"nostr_ref"`
	WalrusRef *string `json:"walrus_ref"`

	Revision uint64 `sql:"not null;default:0" json:"-"`
}

// Create persists the course at its derived address with status draft; the
// client-supplied creation timestamp is validated against the trusted clock
// and becomes part of the course's identity
func (c *Course) Create(tx *gorm.DB, now int64) bool {
	if !c.validate() {
		return false
	}

	if !common.ValidCreationTimestamp(c.CreationTimestamp, now) {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil(common.ErrStaleCreationTimestamp.Message),
		})
		return false
	}

	address, bump, err := pda.Derive(pda.KindCourse, pda.AddressSeed(*c.Hub), pda.AddressSeed(*c.Provider), pda.TimestampSeed(c.CreationTimestamp))
	if err != nil {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}
	c.Address = common.StringOrNil(address)
	c.Bump = bump

	var count int
	tx.Model(&Course{}).Where("address = ?", address).Count(&count)
	if count > 0 {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil(ErrCourseAlreadyExists.Message),
		})
		return false
	}

	c.Status = common.StringOrNil(StatusDraft)
	c.Workload = 0
	if c.Modules == nil {
		c.Modules = ModuleList{}
	}
	if c.ApprovedCredentials == nil {
		c.ApprovedCredentials = pq.StringArray{}
	}
	c.UpdatedAtSec = now

	result := tx.Create(&c)
	rowsAffected := result.RowsAffected
	errors := result.GetErrors()
	if len(errors) > 0 {
		for _, err := range errors {
			c.Errors = append(c.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
	}

	success := rowsAffected > 0
	if success {
		common.Log.Debugf("created course %s at address %s", *c.Name, address)
	}
	return success
}

// AddModule appends a weighted resource reference to the module list and
// accumulates the resource's workload minutes into the course workload counter
func (c *Course) AddModule(resource string, percentage uint8, workloadMinutes uint32, now int64) error {
	if percentage > 100 {
		return ErrInvalidModulePercentage
	}
	if len(c.Modules) >= MaxModules {
		return ErrTooManyModules
	}
	c.Modules = append(c.Modules, Module{
		Resource:   resource,
		Percentage: percentage,
	})
	c.Workload += workloadMinutes
	c.UpdatedAtSec = now
	return nil
}

// UpdateStatus applies a status transition; the requested status must be
// reachable from the current status and a rejection carries its reason
func (c *Course) UpdateStatus(status string, rejectionReason *string, now int64) error {
	current := StatusDraft
	if c.Status != nil {
		current = *c.Status
	}

	if !common.ContainsString(statusTransitions[current], status) {
		return ErrInvalidStatusTransition
	}

	if rejectionReason != nil && len(*rejectionReason) > maxRejectionReasonLen {
		return common.ValidationError("invalid_rejection_reason", fmt.Sprintf("rejection reason exceeds %d bytes", maxRejectionReasonLen))
	}

	c.Status = common.StringOrNil(status)
	if status == StatusRejected {
		c.RejectionReason = rejectionReason
	}
	c.UpdatedAtSec = now

	common.Log.Debugf("course %s transitioned %s -> %s", *c.Address, current, status)
	return nil
}

// Accept transitions the course to verified and commits it; hub acceptance
// of a course verifies it as a side effect
func (c *Course) Accept(tx *gorm.DB, now int64) error {
	if err := c.UpdateStatus(StatusVerified, nil, now); err != nil {
		return err
	}
	return c.Save(tx)
}

// Active returns true if credentials may currently be created against the course
func (c *Course) Active() bool {
	return c.Status != nil && *c.Status == StatusVerified
}

// AddApprovedCredential records an administrative credential approval;
// duplicates fail rather than no-op
func (c *Course) AddApprovedCredential(credentialAddress string, now int64) error {
	if common.ContainsString(c.ApprovedCredentials, credentialAddress) {
		return ErrCredentialAlreadyApproved
	}
	if len(c.ApprovedCredentials) >= MaxApprovedCredentials {
		return ErrTooManyApprovedCredentials
	}
	c.ApprovedCredentials = append(c.ApprovedCredentials, credentialAddress)
	c.UpdatedAtSec = now
	return nil
}

// SetNostrRef sets the nostr content pointer; overwriting a previously set
// ref requires the force flag since external systems may have indexed it
func (c *Course) SetNostrRef(ref string, force bool, now int64) error {
	if c.NostrRef != nil && !force {
		return ErrNostrRefAlreadySet
	}
	c.NostrRef = common.StringOrNil(ref)
	c.UpdatedAtSec = now
	return nil
}

// SetWalrusRef sets the walrus blob pointer
func (c *Course) SetWalrusRef(ref string, now int64) {
	c.WalrusRef = common.StringOrNil(ref)
	c.UpdatedAtSec = now
}

// Save commits the mutable course fields with a compare-and-swap on the
// record revision
func (c *Course) Save(tx *gorm.DB) error {
	rev := c.Revision
	result := tx.Model(&Course{}).Where("id = ? AND revision = ?", c.ID, rev).Updates(map[string]interface{}{
		"status":               c.Status,
		"rejection_reason":     c.RejectionReason,
		"modules":              c.Modules,
		"workload":             c.Workload,
		"approved_credentials": c.ApprovedCredentials,
		"nostr_ref":            c.NostrRef,
		"walrus_ref":           c.WalrusRef,
		"updated_at_sec":       c.UpdatedAtSec,
		"revision":             rev + 1,
	})
	if errors := result.GetErrors(); len(errors) > 0 {
		return errors[0]
	}
	if result.RowsAffected == 0 {
		return common.ErrRecordModified
	}
	c.Revision = rev + 1
	return nil
}

// validate the course creation params
func (c *Course) validate() bool {
	c.Errors = make([]*provide.Error, 0)

	if c.Hub == nil {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil("hub address required"),
		})
	}

	if c.Provider == nil {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil("provider address required"),
		})
	}

	if c.Name == nil {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil("course name required"),
		})
	} else if len(*c.Name) > maxNameLen {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("course name exceeds %d bytes", maxNameLen)),
		})
	}

	if c.Description != nil && len(*c.Description) > maxDescriptionLen {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("course description exceeds %d bytes", maxDescriptionLen)),
		})
	}

	if c.CollegeID != nil && len(*c.CollegeID) > maxCollegeIDLen {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("college id exceeds %d bytes", maxCollegeIDLen)),
		})
	}

	if c.DegreeID != nil && len(*c.DegreeID) > maxDegreeIDLen {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("degree id exceeds %d bytes", maxDegreeIDLen)),
		})
	}

	if c.DTag != nil && len(*c.DTag) > maxDTagLen {
		c.Errors = append(c.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("d tag exceeds %d bytes", maxDTagLen)),
		})
	}

	return len(c.Errors) == 0
}

// Find resolves a course record by derived address
func Find(db *gorm.DB, address string) *Course {
	c := &Course{}
	db.Where("address = ?", address).Find(&c)
	if c.Address == nil {
		return nil
	}
	return c
}
