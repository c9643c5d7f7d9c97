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
	"encoding/json"

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	provide "github.com/provideplatform/provide-go/common"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/pda"
	"github.com/faircredit/registry/store"
)

// InstallAPI registers the provider API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.POST("/api/v1/providers", registerProviderHandler)
	r.GET("/api/v1/providers", listProvidersHandler)
	r.GET("/api/v1/providers/:address", providerDetailsHandler)
	r.DELETE("/api/v1/providers/:address", closeProviderHandler)
	r.POST("/api/v1/providers/:address/endorsers", addEndorserHandler)
	r.DELETE("/api/v1/providers/:address/endorsers/:endorser", removeEndorserHandler)
}

func registerProviderHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	prvdr := &Provider{}
	err = json.Unmarshal(buf, &prvdr)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	hubAddress, _, err := pda.HubAddress()
	if err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	prvdr.Hub = common.StringOrNil(hubAddress)
	prvdr.Wallet = wallet
	prvdr.RegisteredAt = common.DefaultClock.Now().Unix()
	prvdr.Endorsers = nil

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	var hubCount int
	tx.Table("hubs").Where("address = ?", hubAddress).Count(&hubCount)
	if hubCount == 0 {
		provide.RenderError("hub has not been initialized", 404, c)
		return
	}

	if existing := FindByWallet(tx, hubAddress, *wallet); existing != nil {
		common.RenderError(ErrProviderAlreadyRegistered, c)
		return
	}

	if prvdr.Create(tx) {
		if err := store.Append(tx, *prvdr.Address, "register_provider", buf); err != nil {
			provide.RenderError(err.Error(), 500, c)
			return
		}
		tx.Commit()
		prvdr.dispatchNotification(natsProviderRegisteredEvent, map[string]interface{}{
			"name":          prvdr.Name,
			"provider_type": prvdr.ProviderType,
			"registered_at": prvdr.RegisteredAt,
		})
		provide.Render(prvdr, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = prvdr.Errors
		provide.Render(obj, 422, c)
	}
}

func listProvidersHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()
	query := db.Order("registered_at desc")

	if providerType := c.Query("provider_type"); providerType != "" {
		query = query.Where("provider_type = ?", providerType)
	}
	if endorser := c.Query("endorser"); endorser != "" {
		query = query.Where("? = ANY(endorsers)", endorser)
	}

	var providers []*Provider
	provide.Paginate(c, query, &Provider{}).Find(&providers)
	provide.Render(providers, 200, c)
}

func providerDetailsHandler(c *gin.Context) {
	prvdr := Find(dbconf.DatabaseConnection(), c.Param("address"))
	if prvdr == nil {
		provide.RenderError("provider not found", 404, c)
		return
	}
	provide.Render(prvdr, 200, c)
}

func closeProviderHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	prvdr := Find(tx, c.Param("address"))
	if prvdr == nil {
		provide.RenderError("provider not found", 404, c)
		return
	}

	if err := prvdr.RequireAuthority(*wallet); err != nil {
		common.RenderError(err, c)
		return
	}

	result := tx.Delete(&prvdr)
	if errors := result.GetErrors(); len(errors) > 0 {
		provide.RenderError(errors[0].Error(), 500, c)
		return
	}

	if err := store.Append(tx, *prvdr.Address, "close_provider", nil); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	prvdr.dispatchNotification(natsProviderClosedEvent, nil)
	provide.Render(nil, 204, c)
}

func addEndorserHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := map[string]interface{}{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	endorser, endorserOk := params["endorser"].(string)
	if !endorserOk || !common.IsWalletAddress(endorser) {
		provide.RenderError("endorser wallet address required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	prvdr := Find(tx, c.Param("address"))
	if prvdr == nil {
		provide.RenderError("provider not found", 404, c)
		return
	}

	if err := prvdr.RequireAuthority(*wallet); err != nil {
		common.RenderError(err, c)
		return
	}

	now := common.DefaultClock.Now().Unix()
	if err := prvdr.AddEndorser(endorser, now); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := prvdr.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *prvdr.Address, "add_endorser", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	prvdr.dispatchNotification(natsProviderEndorserAddedEvent, map[string]interface{}{
		"endorser": endorser,
	})
	provide.Render(prvdr, 200, c)
}

func removeEndorserHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	prvdr := Find(tx, c.Param("address"))
	if prvdr == nil {
		provide.RenderError("provider not found", 404, c)
		return
	}

	if err := prvdr.RequireAuthority(*wallet); err != nil {
		common.RenderError(err, c)
		return
	}

	endorser := c.Param("endorser")
	prvdr.RemoveEndorser(endorser, common.DefaultClock.Now().Unix())

	if err := prvdr.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *prvdr.Address, "remove_endorser", []byte(endorser)); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	prvdr.dispatchNotification(natsProviderEndorserRemovedEvent, map[string]interface{}{
		"endorser": endorser,
	})
	provide.Render(prvdr, 204, c)
}
