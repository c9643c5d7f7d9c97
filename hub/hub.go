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

package hub

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

// MaxAcceptedProviders caps the hub's provider acceptance set
const MaxAcceptedProviders = 50

// MaxAcceptedCourses caps the hub's inline course acceptance set; overflow
// beyond this cap lives in course list shards
const MaxAcceptedCourses = 100

const defaultMinReputationScore = 70

var (
	// ErrUnauthorizedHubAction is returned when the caller is not the hub authority
	ErrUnauthorizedHubAction = common.AuthorizationError("unauthorized_hub_action", "unauthorized hub action")

	// ErrHubAlreadyInitialized is returned when the singleton hub record already exists
	ErrHubAlreadyInitialized = common.ConflictError("hub_already_initialized", "hub has already been initialized")

	// ErrTooManyProviders is returned when the provider acceptance set is at capacity
	ErrTooManyProviders = common.CapacityError("too_many_providers", fmt.Sprintf("hub provider acceptance capacity of %d reached", MaxAcceptedProviders))

	// ErrTooManyCourses is returned when the inline course acceptance set is at capacity
	ErrTooManyCourses = common.CapacityError("too_many_courses", fmt.Sprintf("hub course acceptance capacity of %d reached", MaxAcceptedCourses))

	// ErrProviderNotAccepted is returned when a course acceptance names a
	// provider identity outside the acceptance set
	ErrProviderNotAccepted = common.StateError("provider_not_accepted", "course provider has not been accepted by the hub")

	// ErrCourseNotAccepted is returned when removal names a course outside the
	// acceptance set; removal of a missing course fails rather than no-ops
	ErrCourseNotAccepted = common.StateError("course_not_accepted", "course is not in the hub acceptance set")
)

// Config is the hub governance policy, persisted as a json column
type Config struct {
	RequireProviderApproval bool   `json:"require_provider_approval"`
	MinReputationScore      uint64 `json:"min_reputation_score"`
}

// DefaultConfig returns the policy applied at hub initialization
func DefaultConfig() Config {
	return Config{
		RequireProviderApproval: true,
		MinReputationScore:      defaultMinReputationScore,
	}
}

// Value marshals the config for persistence
func (cfg Config) Value() (driver.Value, error) {
	return json.Marshal(cfg)
}

// Scan unmarshals the persisted config
func (cfg *Config) Scan(value interface{}) error {
	switch raw := value.(type) {
	case []byte:
		return json.Unmarshal(raw, cfg)
	case string:
		return json.Unmarshal([]byte(raw), cfg)
	case nil:
		*cfg = DefaultConfig()
		return nil
	}
	return fmt.Errorf("failed to scan hub config; unexpected type %T", value)
}

// Hub is the singleton curated registry of accepted providers and courses
type Hub struct {
	provide.Model

	Address   *string `sql:"not null" json:"address"`
	Bump      uint8   `sql:"not null" json:"bump"`
	Authority *string `sql:"not null" json:"authority"`

	AcceptedProviders pq.StringArray `sql:"type:text[]" json:"accepted_providers"`
	AcceptedCourses   pq.StringArray `sql:"type:text[]" json:"accepted_courses"`
	Config            Config         `sql:"type:json" json:"config"`

	CreatedAtSec int64 `gorm:"column:created_at_sec" json:"created_at_sec"`
	UpdatedAtSec int64 `gorm:"column:updated_at_sec" json:"updated_at_sec"`

	Revision uint64 `sql:"not null;default:0" json:"-"`
}

// Create initializes the singleton hub at its derived address; a second
// initialization fails
func (h *Hub) Create(tx *gorm.DB) bool {
	if h.Authority == nil || !common.IsWalletAddress(*h.Authority) {
		h.Errors = append(h.Errors, &provide.Error{
			Message: common.StringOrNil("hub authority wallet address required"),
		})
		return false
	}

	address, bump, err := pda.HubAddress()
	if err != nil {
		h.Errors = append(h.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}
	h.Address = common.StringOrNil(address)
	h.Bump = bump

	var count int
	tx.Model(&Hub{}).Where("address = ?", address).Count(&count)
	if count > 0 {
		h.Errors = append(h.Errors, &provide.Error{
			Message: common.StringOrNil(ErrHubAlreadyInitialized.Message),
		})
		return false
	}

	if h.AcceptedProviders == nil {
		h.AcceptedProviders = pq.StringArray{}
	}
	if h.AcceptedCourses == nil {
		h.AcceptedCourses = pq.StringArray{}
	}
	h.Config = DefaultConfig()
	h.UpdatedAtSec = h.CreatedAtSec

	result := tx.Create(&h)
	rowsAffected := result.RowsAffected
	errors := result.GetErrors()
	if len(errors) > 0 {
		for _, err := range errors {
			h.Errors = append(h.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
	}

	success := rowsAffected > 0
	if success {
		common.Log.Debugf("initialized hub at address %s with authority %s", address, *h.Authority)
	}
	return success
}

// RequireAuthority returns an authorization error unless the caller is the
// current hub authority
func (h *Hub) RequireAuthority(caller string) error {
	if h.Authority == nil || *h.Authority != caller {
		return ErrUnauthorizedHubAction
	}
	return nil
}

// AddProvider accepts a provider identity; duplicates are an idempotent no-op
func (h *Hub) AddProvider(wallet string, now int64) error {
	if common.ContainsString(h.AcceptedProviders, wallet) {
		return nil
	}
	if len(h.AcceptedProviders) >= MaxAcceptedProviders {
		return ErrTooManyProviders
	}
	h.AcceptedProviders = append(h.AcceptedProviders, wallet)
	h.UpdatedAtSec = now
	return nil
}

// RemoveProvider drops a provider identity from the acceptance set; removal
// of a missing identity is a no-op
func (h *Hub) RemoveProvider(wallet string, now int64) {
	filtered, removed := common.RemoveString(h.AcceptedProviders, wallet)
	if removed {
		h.AcceptedProviders = pq.StringArray(filtered)
		h.UpdatedAtSec = now
	}
}

// ProviderAccepted returns true if the provider identity is in the
// acceptance set
func (h *Hub) ProviderAccepted(wallet string) bool {
	return common.ContainsString(h.AcceptedProviders, wallet)
}

// AddCourse accepts a course address; the course's provider identity must
// already be in the provider acceptance set. Duplicates are an idempotent
// no-op.
func (h *Hub) AddCourse(courseAddress, providerWallet string, now int64) error {
	if !h.ProviderAccepted(providerWallet) {
		return ErrProviderNotAccepted
	}
	if common.ContainsString(h.AcceptedCourses, courseAddress) {
		return nil
	}
	if len(h.AcceptedCourses) >= MaxAcceptedCourses {
		return ErrTooManyCourses
	}
	h.AcceptedCourses = append(h.AcceptedCourses, courseAddress)
	h.UpdatedAtSec = now
	return nil
}

// RemoveCourse drops a course address from the acceptance set; unlike
// provider removal, removal of a course that is not present fails
func (h *Hub) RemoveCourse(courseAddress string, now int64) error {
	filtered, removed := common.RemoveString(h.AcceptedCourses, courseAddress)
	if !removed {
		return ErrCourseNotAccepted
	}
	h.AcceptedCourses = pq.StringArray(filtered)
	h.UpdatedAtSec = now
	return nil
}

// TransferAuthority reassigns the hub authority in a single step
func (h *Hub) TransferAuthority(newAuthority string, now int64) error {
	if !common.IsWalletAddress(newAuthority) {
		return common.ValidationError("invalid_authority", "new authority must be a wallet address")
	}
	h.Authority = common.StringOrNil(newAuthority)
	h.UpdatedAtSec = now
	return nil
}

// UpdateConfig replaces the hub governance policy
func (h *Hub) UpdateConfig(cfg Config, now int64) {
	h.Config = cfg
	h.UpdatedAtSec = now
}

// save commits the mutable hub fields with a compare-and-swap on the record
// revision
func (h *Hub) save(tx *gorm.DB) error {
	rev := h.Revision
	result := tx.Model(&Hub{}).Where("id = ? AND revision = ?", h.ID, rev).Updates(map[string]interface{}{
		"authority":          h.Authority,
		"accepted_providers": h.AcceptedProviders,
		"accepted_courses":   h.AcceptedCourses,
		"config":             h.Config,
		"updated_at_sec":     h.UpdatedAtSec,
		"revision":           rev + 1,
	})
	if errors := result.GetErrors(); len(errors) > 0 {
		return errors[0]
	}
	if result.RowsAffected == 0 {
		return common.ErrRecordModified
	}
	h.Revision = rev + 1
	return nil
}

// Current resolves the singleton hub record, or nil if the hub has not been
// initialized
func Current(db *gorm.DB) *Hub {
	h := &Hub{}
	db.Order("created_at_sec asc").First(&h)
	if h.Address == nil {
		return nil
	}
	return h
}
