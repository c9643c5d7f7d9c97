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

package provider

import (
	"fmt"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/pda"
)

// MaxEndorsers caps the provider-managed endorser set
const MaxEndorsers = 100

const maxNameLen = 50
const maxDescriptionLen = 200
const maxWebsiteLen = 100
const maxEmailLen = 50
const maxProviderTypeLen = 30

var (
	// ErrUnauthorizedProviderAction is returned when the caller is not the provider's own wallet
	ErrUnauthorizedProviderAction = common.AuthorizationError("unauthorized_provider_action", "unauthorized provider action")

	// ErrTooManyEndorsers is returned when the endorser set is at capacity
	ErrTooManyEndorsers = common.CapacityError("too_many_endorsers", fmt.Sprintf("provider endorser list capacity of %d reached", MaxEndorsers))

	// ErrProviderAlreadyRegistered is returned when a provider record already
	// exists at the derived address; re-registration fails rather than overwrites
	ErrProviderAlreadyRegistered = common.ConflictError("provider_already_registered", "a provider is already registered for this wallet")
)

// Provider is an educational organization record keyed by (hub, wallet);
// the endorser set is provider-local and not hub-gated
type Provider struct {
	provide.Model

	Address *string `sql:"not null" json:"address"`
	Bump    uint8   `sql:"not null" json:"bump"`
	Hub     *string `sql:"not null" json:"hub"`
	Wallet  *string `sql:"not null" json:"wallet"`

	Name         *string `sql:"not null" json:"name"`
	Description  *string `json:"description"`
	Website      *string `json:"website"`
	Email        *string `json:"email"`
	ProviderType *string `json:"provider_type"`

	RegisteredAt int64          `sql:"not null" json:"registered_at"`
	UpdatedAtSec int64          `gorm:"column:updated_at_sec" json:"updated_at_sec"`
	Endorsers    pq.StringArray `sql:"type:text[]" json:"endorsers"`

	Revision uint64 `sql:"not null;default:0" json:"-"`
}

// Create registers the provider at its derived address; registration fails if
// a record already exists there
func (p *Provider) Create(tx *gorm.DB) bool {
	if !p.validate() {
		return false
	}

	address, bump, err := pda.Derive(pda.KindProvider, pda.AddressSeed(*p.Hub), pda.AddressSeed(*p.Wallet))
	if err != nil {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}
	p.Address = common.StringOrNil(address)
	p.Bump = bump

	var count int
	tx.Model(&Provider{}).Where("address = ?", address).Count(&count)
	if count > 0 {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil(ErrProviderAlreadyRegistered.Message),
		})
		return false
	}

	if p.Endorsers == nil {
		p.Endorsers = pq.StringArray{}
	}
	p.UpdatedAtSec = p.RegisteredAt

	result := tx.Create(&p)
	rowsAffected := result.RowsAffected
	errors := result.GetErrors()
	if len(errors) > 0 {
		for _, err := range errors {
			p.Errors = append(p.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
	}

	success := rowsAffected > 0
	if success {
		common.Log.Debugf("registered %s provider %s at address %s", *p.ProviderType, *p.Name, address)
	}
	return success
}

// AddEndorser inserts the endorser if absent; duplicates are an idempotent
// no-op but the bounded cap is enforced before insertion
func (p *Provider) AddEndorser(endorser string, now int64) error {
	if common.ContainsString(p.Endorsers, endorser) {
		return nil
	}
	if len(p.Endorsers) >= MaxEndorsers {
		return ErrTooManyEndorsers
	}
	p.Endorsers = append(p.Endorsers, endorser)
	p.UpdatedAtSec = now
	return nil
}

// RemoveEndorser removes the endorser if present; removing a missing endorser
// is a no-op
func (p *Provider) RemoveEndorser(endorser string, now int64) {
	filtered, removed := common.RemoveString(p.Endorsers, endorser)
	if removed {
		p.Endorsers = pq.StringArray(filtered)
		p.UpdatedAtSec = now
	}
}

// RequireAuthority returns an authorization error unless the caller is the
// provider's own wallet
func (p *Provider) RequireAuthority(caller string) error {
	if p.Wallet == nil || *p.Wallet != caller {
		return ErrUnauthorizedProviderAction
	}
	return nil
}

// save commits the mutable provider fields with a compare-and-swap on the
// record revision
func (p *Provider) save(tx *gorm.DB) error {
	rev := p.Revision
	result := tx.Model(&Provider{}).Where("id = ? AND revision = ?", p.ID, rev).Updates(map[string]interface{}{
		"endorsers":      p.Endorsers,
		"updated_at_sec": p.UpdatedAtSec,
		"revision":       rev + 1,
	})
	if errors := result.GetErrors(); len(errors) > 0 {
		return errors[0]
	}
	if result.RowsAffected == 0 {
		return common.ErrRecordModified
	}
	p.Revision = rev + 1
	return nil
}

// validate the provider registration params
func (p *Provider) validate() bool {
	p.Errors = make([]*provide.Error, 0)

	if p.Wallet == nil || !common.IsWalletAddress(*p.Wallet) {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil("provider wallet address required"),
		})
	}

	if p.Hub == nil {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil("hub address required"),
		})
	}

	if p.Name == nil {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil("provider name required"),
		})
	} else if len(*p.Name) > maxNameLen {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("provider name exceeds %d bytes", maxNameLen)),
		})
	}

	if p.Description != nil && len(*p.Description) > maxDescriptionLen {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("provider description exceeds %d bytes", maxDescriptionLen)),
		})
	}

	if p.Website != nil && len(*p.Website) > maxWebsiteLen {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("provider website exceeds %d bytes", maxWebsiteLen)),
		})
	}

	if p.Email != nil && len(*p.Email) > maxEmailLen {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("provider email exceeds %d bytes", maxEmailLen)),
		})
	}

	if p.ProviderType == nil {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil("provider type required"),
		})
	} else if len(*p.ProviderType) > maxProviderTypeLen {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("provider type exceeds %d bytes", maxProviderTypeLen)),
		})
	}

	return len(p.Errors) == 0
}

// Find resolves a provider record by derived address
func Find(db *gorm.DB, address string) *Provider {
	p := &Provider{}
	db.Where("address = ?", address).Find(&p)
	if p.Address == nil {
		return nil
	}
	return p
}

// FindByWallet resolves a provider record by its wallet identity under the
// given hub
func FindByWallet(db *gorm.DB, hub, wallet string) *Provider {
	p := &Provider{}
	db.Where("hub = ? AND wallet = ?", hub, wallet).Find(&p)
	if p.Address == nil {
		return nil
	}
	return p
}
