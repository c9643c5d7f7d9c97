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

// Resource kind vocabulary
const (
	KindAssignment          = "assignment"
	KindAssignmentSummative = "assignment_summative"
	KindMeeting             = "meeting"
	KindGeneral             = "general"
	KindPublication         = "publication"
	KindPublicationReviewed = "publication_reviewed"
)

const statusActive = "active"

// MaxAssets caps the resource asset list
const MaxAssets = 20

// MaxTags caps the resource tag list
const MaxTags = 10

const maxNameLen = 64
const maxExternalIDLen = 64
const maxTagLen = 32

var resourceKinds = []string{
	KindAssignment,
	KindAssignmentSummative,
	KindMeeting,
	KindGeneral,
	KindPublication,
	KindPublicationReviewed,
}

// ValidKind returns true if the given kind is in the resource kind vocabulary
func ValidKind(kind string) bool {
	return common.ContainsString(resourceKinds, kind)
}

var (
	// ErrUnauthorizedResourceAction is returned when the caller is not the resource owner
	ErrUnauthorizedResourceAction = common.AuthorizationError("unauthorized_resource_action", "unauthorized resource action")

	// ErrResourceAlreadyExists is returned when a resource record already
	// exists at the derived (course, creation timestamp) address
	ErrResourceAlreadyExists = common.ConflictError("resource_already_exists", "a resource already exists at the derived address")

	// ErrTooManyAssets is returned when the asset list is at capacity
	ErrTooManyAssets = common.CapacityError("too_many_assets", fmt.Sprintf("resource asset capacity of %d reached", MaxAssets))

	// ErrTooManyTags is returned when the tag list is at capacity
	ErrTooManyTags = common.CapacityError("too_many_tags", fmt.Sprintf("resource tag capacity of %d reached", MaxTags))

	// ErrNostrRefAlreadySet is returned when a nostr ref would be overwritten
	// without the explicit force flag
	ErrNostrRefAlreadySet = common.StateError("nostr_ref_already_set", "nostr ref is already set; pass force to overwrite")
)

// Resource is course material created by a provider and keyed by
// (course, creation timestamp)
type Resource struct {
	provide.Model

	Address *string `sql:"not null" json:"address"`
	Bump    uint8   `sql:"not null" json:"bump"`
	Course  *string `sql:"not null" json:"course"`
	Owner   *string `sql:"not null" json:"owner"`

	CreationTimestamp int64 `sql:"not null" json:"creation_timestamp"`
	UpdatedAtSec      int64 `gorm:"column:updated_at_sec" json:"updated_at_sec"`

	Name            *string `sql:"not null" json:"name"`
	Kind            *string `sql:"not null" json:"kind"`
	Status          *string `sql:"not null;default:'active'" json:"status"`
	ExternalID      *string `json:"external_id"`
	WorkloadMinutes *uint32 `json:"workload_minutes"`

	Assets pq.StringArray `sql:"type:text[]" json:"assets"`
	Tags   pq.StringArray `sql:"type:text[]" json:"tags"`

	NostrRef  *string `json:"nostr_ref"`
	WalrusRef *string `json:"walrus_ref"`

	Revision uint64 `sql:"not null;default:0" json:"-"`
}

// Create persists the resource at its derived address; the client-supplied
// creation timestamp is validated against the trusted clock
func (r *Resource) Create(tx *gorm.DB, now int64) bool {
	if !r.validate() {
		return false
	}

	if !common.ValidCreationTimestamp(r.CreationTimestamp, now) {
		r.Errors = append(r.Errors, &provide.Error{
			Message: common.StringOrNil(common.ErrStaleCreationTimestamp.Message),
		})
		return false
	}

	address, bump, err := pda.Derive(pda.KindResource, pda.AddressSeed(*r.Course), pda.TimestampSeed(r.CreationTimestamp))
	if err != nil {
		r.Errors = append(r.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}
	r.Address = common.StringOrNil(address)
	r.Bump = bump

	var count int
	tx.Model(&Resource{}).Where("address = ?", address).Count(&count)
	if count > 0 {
		r.Errors = append(r.Errors, &provide.Error{
			Message: common.StringOrNil(ErrResourceAlreadyExists.Message),
		})
		return false
	}

	r.Status = common.StringOrNil(statusActive)
	if r.Assets == nil {
		r.Assets = pq.StringArray{}
	}
	r.Tags = dedupTags(r.Tags)
	r.UpdatedAtSec = now

	result := tx.Create(&r)
	rowsAffected := result.RowsAffected
	errors := result.GetErrors()
	if len(errors) > 0 {
		for _, err := range errors {
			r.Errors = append(r.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
	}

	success := rowsAffected > 0
	if success {
		common.Log.Debugf("created %s resource %s at address %s", *r.Kind, *r.Name, address)
	}
	return success
}

// RequireOwner returns an authorization error unless the caller is the
// resource owner
func (r *Resource) RequireOwner(caller string) error {
	if r.Owner == nil || *r.Owner != caller {
		return ErrUnauthorizedResourceAction
	}
	return nil
}

// UpdateData applies an owner-gated mutation of the resource's descriptive
// fields; nil params leave the corresponding field unchanged
func (r *Resource) UpdateData(name, externalID *string, workloadMinutes *uint32, tags []string, now int64) error {
	if name != nil {
		if len(*name) > maxNameLen {
			return common.ValidationError("invalid_resource_name", fmt.Sprintf("resource name exceeds %d bytes", maxNameLen))
		}
		r.Name = name
	}
	if externalID != nil {
		if len(*externalID) > maxExternalIDLen {
			return common.ValidationError("invalid_external_id", fmt.Sprintf("external id exceeds %d bytes", maxExternalIDLen))
		}
		r.ExternalID = externalID
	}
	if workloadMinutes != nil {
		r.WorkloadMinutes = workloadMinutes
	}
	if tags != nil {
		deduped := dedupTags(pq.StringArray(tags))
		if len(deduped) > MaxTags {
			return ErrTooManyTags
		}
		for _, tag := range deduped {
			if len(tag) > maxTagLen {
				return common.ValidationError("invalid_tag", fmt.Sprintf("tag exceeds %d bytes", maxTagLen))
			}
		}
		r.Tags = deduped
	}
	r.UpdatedAtSec = now
	return nil
}

// AddTag inserts a tag if absent; duplicates are an idempotent no-op
func (r *Resource) AddTag(tag string, now int64) error {
	if len(tag) > maxTagLen {
		return common.ValidationError("invalid_tag", fmt.Sprintf("tag exceeds %d bytes", maxTagLen))
	}
	if common.ContainsString(r.Tags, tag) {
		return nil
	}
	if len(r.Tags) >= MaxTags {
		return ErrTooManyTags
	}
	r.Tags = append(r.Tags, tag)
	r.UpdatedAtSec = now
	return nil
}

// AddAsset appends an asset reference
func (r *Resource) AddAsset(assetAddress string, now int64) error {
	if common.ContainsString(r.Assets, assetAddress) {
		return nil
	}
	if len(r.Assets) >= MaxAssets {
		return ErrTooManyAssets
	}
	r.Assets = append(r.Assets, assetAddress)
	r.UpdatedAtSec = now
	return nil
}

// SetNostrRef sets the nostr content pointer; overwriting a previously set
// ref requires the force flag
func (r *Resource) SetNostrRef(ref string, force bool, now int64) error {
	if r.NostrRef != nil && !force {
		return ErrNostrRefAlreadySet
	}
	r.NostrRef = common.StringOrNil(ref)
	r.UpdatedAtSec = now
	return nil
}

// SetWalrusRef sets the walrus blob pointer
func (r *Resource) SetWalrusRef(ref string, now int64) {
	r.WalrusRef = common.StringOrNil(ref)
	r.UpdatedAtSec = now
}

// save commits the mutable resource fields with a compare-and-swap on the
// record revision
func (r *Resource) save(tx *gorm.DB) error {
	rev := r.Revision
	result := tx.Model(&Resource{}).Where("id = ? AND revision = ?", r.ID, rev).Updates(map[string]interface{}{
		"name":             r.Name,
		"external_id":      r.ExternalID,
		"workload_minutes": r.WorkloadMinutes,
		"assets":           r.Assets,
		"tags":             r.Tags,
		"nostr_ref":        r.NostrRef,
		"walrus_ref":       r.WalrusRef,
		"updated_at_sec":   r.UpdatedAtSec,
		"revision":         rev + 1,
	})
	if errors := result.GetErrors(); len(errors) > 0 {
		return errors[0]
	}
	if result.RowsAffected == 0 {
		return common.ErrRecordModified
	}
	r.Revision = rev + 1
	return nil
}

// validate the resource creation params
func (r *Resource) validate() bool {
	r.Errors = make([]*provide.Error, 0)

	if r.Course == nil {
		r.Errors = append(r.Errors, &provide.Error{
			Message: common.StringOrNil("course address required"),
		})
	}

	if r.Owner == nil || !common.IsWalletAddress(*r.Owner) {
		r.Errors = append(r.Errors, &provide.Error{
			Message: common.StringOrNil("resource owner wallet address required"),
		})
	}

	if r.Name == nil {
		r.Errors = append(r.Errors, &provide.Error{
			Message: common.StringOrNil("resource name required"),
		})
	} else if len(*r.Name) > maxNameLen {
		r.Errors = append(r.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("resource name exceeds %d bytes", maxNameLen)),
		})
	}

	if r.Kind == nil || !common.ContainsString(resourceKinds, *r.Kind) {
		r.Errors = append(r.Errors, &provide.Error{
			Message: common.StringOrNil("valid resource kind required"),
		})
	}

	if len(r.Tags) > MaxTags {
		r.Errors = append(r.Errors, &provide.Error{
			Message: common.StringOrNil(ErrTooManyTags.Message),
		})
	}

	return len(r.Errors) == 0
}

// dedupTags filters duplicate tags preserving first-seen order
func dedupTags(tags pq.StringArray) pq.StringArray {
	deduped := pq.StringArray{}
	for _, tag := range tags {
		if !common.ContainsString(deduped, tag) {
			deduped = append(deduped, tag)
		}
	}
	return deduped
}

// Find resolves a resource record by derived address
func Find(db *gorm.DB, address string) *Resource {
	r := &Resource{}
	db.Where("address = ?", address).Find(&r)
	if r.Address == nil {
		return nil
	}
	return r
}
