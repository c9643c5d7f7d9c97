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
	provide "github.com/provideplatform/provide-go/api"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/pda"
)

const maxContentTypeLen = 64
const maxFileNameLen = 128

var (
	// ErrAssetAlreadyExists is returned when an asset record already exists
	// at the derived (owner, creation timestamp) address
	ErrAssetAlreadyExists = common.ConflictError("asset_already_exists", "an asset already exists at the derived address")
)

// Asset is an uploaded artifact record keyed by (owner, creation timestamp);
// the bytes themselves live off-registry behind the nostr and walrus refs
type Asset struct {
	provide.Model

	Address *string `sql:"not null" json:"address"`
	Bump    uint8   `sql:"not null" json:"bump"`
	Owner   *string `sql:"not null" json:"owner"`

	CreationTimestamp int64 `sql:"not null" json:"creation_timestamp"`
	UpdatedAtSec      int64 `gorm:"column:updated_at_sec" json:"updated_at_sec"`

	ContentType *string `json:"content_type"`
	FileName    *string `json:"file_name"`
	FileSize    uint64  `json:"file_size"`
	Resource    *string `json:"resource"` // optional owning resource link

	NostrRef  *string `json:"nostr_ref"`
	WalrusRef *string `json:"walrus_ref"`

	Revision uint64 `sql:"not null;default:0" json:"-"`
}

// Create persists the asset at its derived address; the client-supplied
// creation timestamp is validated against the trusted clock
func (a *Asset) Create(tx *gorm.DB, now int64) bool {
	if !a.validate() {
		return false
	}

	if !common.ValidCreationTimestamp(a.CreationTimestamp, now) {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(common.ErrStaleCreationTimestamp.Message),
		})
		return false
	}

	address, bump, err := pda.Derive(pda.KindAsset, pda.AddressSeed(*a.Owner), pda.TimestampSeed(a.CreationTimestamp))
	if err != nil {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}
	a.Address = common.StringOrNil(address)
	a.Bump = bump

	var count int
	tx.Model(&Asset{}).Where("address = ?", address).Count(&count)
	if count > 0 {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(ErrAssetAlreadyExists.Message),
		})
		return false
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
		common.Log.Debugf("created asset at address %s", address)
	}
	return success
}

// RequireOwner returns an authorization error unless the caller is the asset
// owner
func (a *Asset) RequireOwner(caller string) error {
	if a.Owner == nil || *a.Owner != caller {
		return ErrUnauthorizedResourceAction
	}
	return nil
}

// SetNostrRef sets the nostr content pointer; overwriting a previously set
// ref requires the force flag
func (a *Asset) SetNostrRef(ref string, force bool, now int64) error {
	if a.NostrRef != nil && !force {
		return ErrNostrRefAlreadySet
	}
	a.NostrRef = common.StringOrNil(ref)
	a.UpdatedAtSec = now
	return nil
}

// SetWalrusRef sets the walrus blob pointer
func (a *Asset) SetWalrusRef(ref string, now int64) {
	a.WalrusRef = common.StringOrNil(ref)
	a.UpdatedAtSec = now
}

// save commits the mutable asset fields with a compare-and-swap on the
// record revision
func (a *Asset) save(tx *gorm.DB) error {
	rev := a.Revision
	result := tx.Model(&Asset{}).Where("id = ? AND revision = ?", a.ID, rev).Updates(map[string]interface{}{
		"nostr_ref":      a.NostrRef,
		"walrus_ref":     a.WalrusRef,
		"updated_at_sec": a.UpdatedAtSec,
		"revision":       rev + 1,
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

// validate the asset creation params
func (a *Asset) validate() bool {
	a.Errors = make([]*provide.Error, 0)

	if a.Owner == nil || !common.IsWalletAddress(*a.Owner) {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil("asset owner wallet address required"),
		})
	}

	if a.ContentType != nil && len(*a.ContentType) > maxContentTypeLen {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("content type exceeds %d bytes", maxContentTypeLen)),
		})
	}

	if a.FileName != nil && len(*a.FileName) > maxFileNameLen {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("file name exceeds %d bytes", maxFileNameLen)),
		})
	}

	return len(a.Errors) == 0
}

// FindAsset resolves an asset record by derived address
func FindAsset(db *gorm.DB, address string) *Asset {
	a := &Asset{}
	db.Where("address = ?", address).Find(&a)
	if a.Address == nil {
		return nil
	}
	return a
}
