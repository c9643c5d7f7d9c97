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
	"encoding/json"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	redisutil "github.com/kthomas/go-redisutil"
	provide "github.com/provideplatform/provide-go/common"

	"github.com/faircredit/registry/activity"
	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/course"
	nft "github.com/faircredit/registry/nft/providers"
	"github.com/faircredit/registry/provider"
	"github.com/faircredit/registry/store"
)

// InstallAPI registers the credential API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.POST("/api/v1/credentials", createCredentialHandler)
	r.GET("/api/v1/credentials", listCredentialsHandler)
	r.GET("/api/v1/credentials/:address", credentialDetailsHandler)
	r.PUT("/api/v1/credentials/:address/metadata", updateCredentialMetadataHandler)
	r.POST("/api/v1/credentials/:address/activities", linkActivityHandler)
	r.POST("/api/v1/credentials/:address/endorse", endorseCredentialHandler)
	r.POST("/api/v1/credentials/:address/approve", approveCredentialHandler)
	r.POST("/api/v1/credentials/:address/mint", mintCredentialHandler)
	r.POST("/api/v1/credentials/:address/verify", verifyCredentialHandler)
}

func createCredentialHandler(c *gin.Context) {
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

	courseAddress, courseOk := params["course"].(string)
	if !courseOk {
		provide.RenderError("course address required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	crs := course.Find(tx, courseAddress)
	if crs == nil {
		provide.RenderError("course not found", 404, c)
		return
	}

	if !crs.Active() {
		common.RenderError(ErrCourseNotActive, c)
		return
	}

	now := common.DefaultClock.Now().Unix()
	cred := &Credential{
		Course:       crs.Address,
		Student:      wallet,
		CreatedAtSec: now,
	}

	// metadata title and description are copied from the course
	cred.Metadata.Title = truncate(*crs.Name, maxTitleLen)
	if crs.Description != nil {
		cred.Metadata.Description = truncate(*crs.Description, maxDescriptionLen)
	}
	if completionDate, completionDateOk := params["completion_date"].(float64); completionDateOk {
		date := int64(completionDate)
		cred.Metadata.CompletionDate = &date
	}

	if cred.Create(tx) {
		if err := store.Append(tx, *cred.Address, "create_credential", buf); err != nil {
			provide.RenderError(err.Error(), 500, c)
			return
		}
		tx.Commit()
		cred.dispatchNotification(natsCredentialCreatedEvent, nil)
		provide.Render(cred, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = cred.Errors
		provide.Render(obj, 422, c)
	}
}

func listCredentialsHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()
	query := db.Order("created_at_sec desc")

	if courseAddress := c.Query("course"); courseAddress != "" {
		query = query.Where("course = ?", courseAddress)
	}
	if student := c.Query("student"); student != "" {
		query = query.Where("student = ?", student)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if mentor := c.Query("mentor"); mentor != "" {
		query = query.Where("mentor_wallet = ?", mentor)
	}

	var credentials []*Credential
	provide.Paginate(c, query, &Credential{}).Find(&credentials)
	provide.Render(credentials, 200, c)
}

func credentialDetailsHandler(c *gin.Context) {
	cred := Find(dbconf.DatabaseConnection(), c.Param("address"))
	if cred == nil {
		provide.RenderError("credential not found", 404, c)
		return
	}
	provide.Render(cred, 200, c)
}

func updateCredentialMetadataHandler(c *gin.Context) {
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

	params := &struct {
		ResearchOutput *string  `json:"research_output"`
		Skills         []string `json:"skills"`
		CompletionDate *int64   `json:"completion_date"`
	}{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	cred := Find(tx, c.Param("address"))
	if cred == nil {
		provide.RenderError("credential not found", 404, c)
		return
	}

	if *cred.Student != *wallet {
		common.RenderError(ErrUnauthorizedCredentialAction, c)
		return
	}

	if err := cred.UpdateMetadata(params.ResearchOutput, params.Skills, params.CompletionDate, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := cred.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *cred.Address, "update_credential_metadata", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(cred, 200, c)
}

func linkActivityHandler(c *gin.Context) {
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

	activityAddress, activityOk := params["activity"].(string)
	if !activityOk {
		provide.RenderError("activity address required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	cred := Find(tx, c.Param("address"))
	if cred == nil {
		provide.RenderError("credential not found", 404, c)
		return
	}

	act := activity.Find(tx, activityAddress)
	if act == nil {
		provide.RenderError("activity not found", 404, c)
		return
	}

	// the caller must own both the credential and the linked activity
	if *cred.Student != *wallet || *act.Student != *wallet {
		common.RenderError(ErrUnauthorizedCredentialAction, c)
		return
	}

	if err := cred.LinkActivity(*act.Address, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := cred.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *cred.Address, "link_activity", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(cred, 200, c)
}

func endorseCredentialHandler(c *gin.Context) {
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

	endorsement, endorsementOk := params["endorsement"].(string)
	if !endorsementOk {
		provide.RenderError("endorsement required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	cred := Find(tx, c.Param("address"))
	if cred == nil {
		provide.RenderError("credential not found", 404, c)
		return
	}

	if err := cred.Endorse(*wallet, endorsement, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := cred.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *cred.Address, "endorse_credential", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	cred.dispatchNotification(natsCredentialEndorsedEvent, map[string]interface{}{
		"mentor": cred.MentorWallet,
	})
	provide.Render(cred, 200, c)
}

func approveCredentialHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	cred := Find(tx, c.Param("address"))
	if cred == nil {
		provide.RenderError("credential not found", 404, c)
		return
	}

	crs := course.Find(tx, *cred.Course)
	if crs == nil {
		provide.RenderError("course not found", 404, c)
		return
	}

	prvdr := provider.Find(tx, *crs.Provider)
	if prvdr == nil || *prvdr.Wallet != *wallet {
		common.RenderError(ErrUnauthorizedCredentialAction, c)
		return
	}

	now := common.DefaultClock.Now().Unix()
	if err := cred.Approve(now); err != nil {
		common.RenderError(err, c)
		return
	}

	// approval is recorded on both sides; a duplicate course-side entry
	// fails the whole instruction
	if err := crs.AddApprovedCredential(*cred.Address, now); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := cred.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := crs.Save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *cred.Address, "approve_credential", nil); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	cred.dispatchNotification(natsCredentialApprovedEvent, map[string]interface{}{
		"course": crs.Address,
	})
	provide.Render(cred, 200, c)
}

func mintCredentialHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	mintProvider, err := nft.New(os.Getenv("NFT_MINT_PROVIDER"))
	if err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	address := c.Param("address")

	// minting is irreversible; the distributed lock keeps a double-submitted
	// mint from reaching the collaborator twice
	lockKey := fmt.Sprintf("registry.credential.mint.%s", address)
	var cred *Credential
	mintErr := redisutil.WithRedlock(lockKey, func() error {
		db := dbconf.DatabaseConnection()
		tx := db.Begin()
		defer tx.RollbackUnlessCommitted()

		cred = Find(tx, address)
		if cred == nil {
			return common.StateError("credential_not_found", "credential not found")
		}

		if *cred.Student != *wallet {
			return ErrUnauthorizedCredentialAction
		}

		if err := cred.Mintable(); err != nil {
			return err
		}

		tokenName := nft.TokenName(cred.Metadata.Title)
		tokenURI := nft.TokenURI(*cred.Address)

		tokenAddress, err := mintProvider.MintOne(*cred.Address, *cred.Student, tokenName, nft.TokenSymbol, tokenURI)
		if err != nil {
			return fmt.Errorf("failed to mint credential token; %s", err.Error())
		}

		if err := cred.RecordMint(tokenAddress, common.DefaultClock.Now().Unix()); err != nil {
			return err
		}

		if err := cred.save(tx); err != nil {
			return err
		}

		if err := store.Append(tx, *cred.Address, "mint_credential", []byte(tokenAddress)); err != nil {
			return err
		}

		tx.Commit()
		return nil
	})

	if mintErr != nil {
		common.RenderError(mintErr, c)
		return
	}

	cred.dispatchNotification(natsCredentialMintedEvent, map[string]interface{}{
		"token_address": cred.TokenAddress,
	})
	provide.Render(cred, 200, c)
}

func verifyCredentialHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	cred := Find(tx, c.Param("address"))
	if cred == nil {
		provide.RenderError("credential not found", 404, c)
		return
	}

	cred.RecordVerification(common.DefaultClock.Now().Unix())

	if err := cred.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *cred.Address, "verify_credential", []byte(*wallet)); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	cred.dispatchNotification(natsCredentialVerifiedEvent, map[string]interface{}{
		"verifier":           wallet,
		"verification_count": cred.VerificationCount,
	})
	provide.Render(cred, 200, c)
}
