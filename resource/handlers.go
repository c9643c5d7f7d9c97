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
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	provide "github.com/provideplatform/provide-go/common"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/course"
	"github.com/faircredit/registry/provider"
	"github.com/faircredit/registry/store"
)

// InstallAPI registers the resource, asset and submission API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.POST("/api/v1/resources", createResourceHandler)
	r.GET("/api/v1/resources", listResourcesHandler)
	r.GET("/api/v1/resources/:address", resourceDetailsHandler)
	r.PUT("/api/v1/resources/:address", updateResourceHandler)
	r.DELETE("/api/v1/resources/:address", closeResourceHandler)
	r.POST("/api/v1/resources/:address/assets", addResourceAssetHandler)
	r.POST("/api/v1/resources/:address/tags", addResourceTagHandler)
	r.PUT("/api/v1/resources/:address/nostr", setResourceNostrRefHandler)
	r.PUT("/api/v1/resources/:address/walrus", setResourceWalrusRefHandler)

	r.POST("/api/v1/assets", createAssetHandler)
	r.GET("/api/v1/assets", listAssetsHandler)
	r.GET("/api/v1/assets/:address", assetDetailsHandler)
	r.PUT("/api/v1/assets/:address/nostr", setAssetNostrRefHandler)
	r.PUT("/api/v1/assets/:address/walrus", setAssetWalrusRefHandler)

	r.POST("/api/v1/submissions", createSubmissionHandler)
	r.GET("/api/v1/submissions", listSubmissionsHandler)
	r.GET("/api/v1/submissions/:address", submissionDetailsHandler)
	r.POST("/api/v1/submissions/:address/grade", gradeSubmissionHandler)
	r.POST("/api/v1/submissions/:address/accept", acceptSubmissionHandler)
	r.POST("/api/v1/submissions/:address/return", returnSubmissionHandler)
	r.PUT("/api/v1/submissions/:address/nostr", setSubmissionNostrRefHandler)
	r.PUT("/api/v1/submissions/:address/walrus", setSubmissionWalrusRefHandler)
}

// requireResourceOwner loads the resource and asserts the caller wallet owns
// it, rendering the failure if not
func requireResourceOwner(c *gin.Context, tx *gorm.DB, wallet string) *Resource {
	res := Find(tx, c.Param("address"))
	if res == nil {
		provide.RenderError("resource not found", 404, c)
		return nil
	}
	if err := res.RequireOwner(wallet); err != nil {
		common.RenderError(err, c)
		return nil
	}
	return res
}

// authorizedGrader returns true if the wallet may grade submissions against
// the resource: the resource owner or one of the course provider's endorsers
func authorizedGrader(tx *gorm.DB, res *Resource, wallet string) bool {
	if res.Owner != nil && *res.Owner == wallet {
		return true
	}

	crs := course.Find(tx, *res.Course)
	if crs == nil {
		return false
	}
	prvdr := provider.Find(tx, *crs.Provider)
	if prvdr == nil {
		return false
	}
	return common.ContainsString(prvdr.Endorsers, wallet)
}

func createResourceHandler(c *gin.Context) {
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

	res := &Resource{}
	err = json.Unmarshal(buf, &res)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	if res.Course == nil {
		provide.RenderError("course address required", 422, c)
		return
	}

	crs := course.Find(tx, *res.Course)
	if crs == nil {
		provide.RenderError("course not found", 404, c)
		return
	}

	prvdr := provider.Find(tx, *crs.Provider)
	if prvdr == nil || *prvdr.Wallet != *wallet {
		common.RenderError(ErrUnauthorizedResourceAction, c)
		return
	}

	res.Owner = wallet
	res.Assets = nil

	if res.Create(tx, common.DefaultClock.Now().Unix()) {
		if err := store.Append(tx, *res.Address, "create_resource", buf); err != nil {
			provide.RenderError(err.Error(), 500, c)
			return
		}
		tx.Commit()
		res.dispatchNotification(natsResourceCreatedEvent, map[string]interface{}{
			"name": res.Name,
			"kind": res.Kind,
		})
		provide.Render(res, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = res.Errors
		provide.Render(obj, 422, c)
	}
}

func listResourcesHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()
	query := db.Order("creation_timestamp desc")

	if courseAddress := c.Query("course"); courseAddress != "" {
		query = query.Where("course = ?", courseAddress)
	}
	if kind := c.Query("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if tag := c.Query("tag"); tag != "" {
		query = query.Where("? = ANY(tags)", tag)
	}

	var resources []*Resource
	provide.Paginate(c, query, &Resource{}).Find(&resources)
	provide.Render(resources, 200, c)
}

func resourceDetailsHandler(c *gin.Context) {
	res := Find(dbconf.DatabaseConnection(), c.Param("address"))
	if res == nil {
		provide.RenderError("resource not found", 404, c)
		return
	}
	provide.Render(res, 200, c)
}

func updateResourceHandler(c *gin.Context) {
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
		Name            *string  `json:"name"`
		ExternalID      *string  `json:"external_id"`
		WorkloadMinutes *uint32  `json:"workload_minutes"`
		Tags            []string `json:"tags"`
	}{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	res := requireResourceOwner(c, tx, *wallet)
	if res == nil {
		return
	}

	if err := res.UpdateData(params.Name, params.ExternalID, params.WorkloadMinutes, params.Tags, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := res.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *res.Address, "update_resource_data", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(res, 200, c)
}

func closeResourceHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	res := requireResourceOwner(c, tx, *wallet)
	if res == nil {
		return
	}

	address := *res.Address
	result := tx.Delete(&res)
	if errors := result.GetErrors(); len(errors) > 0 {
		provide.RenderError(errors[0].Error(), 500, c)
		return
	}

	if err := store.Append(tx, address, "close_resource", nil); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	res.dispatchNotification(natsResourceClosedEvent, nil)
	provide.Render(nil, 204, c)
}

func addResourceAssetHandler(c *gin.Context) {
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

	assetAddress, assetOk := params["asset"].(string)
	if !assetOk {
		provide.RenderError("asset address required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	res := requireResourceOwner(c, tx, *wallet)
	if res == nil {
		return
	}

	asset := FindAsset(tx, assetAddress)
	if asset == nil {
		provide.RenderError("asset not found", 404, c)
		return
	}

	if err := res.AddAsset(*asset.Address, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := res.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *res.Address, "add_resource_asset", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(res, 200, c)
}

func addResourceTagHandler(c *gin.Context) {
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

	tag, tagOk := params["tag"].(string)
	if !tagOk || tag == "" {
		provide.RenderError("tag required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	res := requireResourceOwner(c, tx, *wallet)
	if res == nil {
		return
	}

	if err := res.AddTag(tag, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := res.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *res.Address, "add_resource_tag", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(res, 200, c)
}

func setResourceNostrRefHandler(c *gin.Context) {
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

	ref, refOk := params["ref"].(string)
	if !refOk {
		provide.RenderError("nostr ref required", 422, c)
		return
	}
	force, _ := params["force"].(bool)

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	res := requireResourceOwner(c, tx, *wallet)
	if res == nil {
		return
	}

	if err := res.SetNostrRef(ref, force, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := res.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *res.Address, "set_resource_nostr_ref", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(res, 200, c)
}

func setResourceWalrusRefHandler(c *gin.Context) {
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

	ref, refOk := params["ref"].(string)
	if !refOk {
		provide.RenderError("walrus ref required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	res := requireResourceOwner(c, tx, *wallet)
	if res == nil {
		return
	}

	res.SetWalrusRef(ref, common.DefaultClock.Now().Unix())

	if err := res.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *res.Address, "set_resource_walrus_ref", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(res, 200, c)
}

func createAssetHandler(c *gin.Context) {
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

	asset := &Asset{}
	err = json.Unmarshal(buf, &asset)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	asset.Owner = wallet
	if asset.Resource != nil {
		if Find(tx, *asset.Resource) == nil {
			provide.RenderError("resource not found", 404, c)
			return
		}
	}

	if asset.Create(tx, common.DefaultClock.Now().Unix()) {
		if err := store.Append(tx, *asset.Address, "create_asset", buf); err != nil {
			provide.RenderError(err.Error(), 500, c)
			return
		}
		tx.Commit()
		provide.Render(asset, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = asset.Errors
		provide.Render(obj, 422, c)
	}
}

func listAssetsHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()
	query := db.Order("creation_timestamp desc")

	if owner := c.Query("owner"); owner != "" {
		query = query.Where("owner = ?", owner)
	}
	if resourceAddress := c.Query("resource"); resourceAddress != "" {
		query = query.Where("resource = ?", resourceAddress)
	}

	var assets []*Asset
	provide.Paginate(c, query, &Asset{}).Find(&assets)
	provide.Render(assets, 200, c)
}

func assetDetailsHandler(c *gin.Context) {
	asset := FindAsset(dbconf.DatabaseConnection(), c.Param("address"))
	if asset == nil {
		provide.RenderError("asset not found", 404, c)
		return
	}
	provide.Render(asset, 200, c)
}

func setAssetNostrRefHandler(c *gin.Context) {
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

	ref, refOk := params["ref"].(string)
	if !refOk {
		provide.RenderError("nostr ref required", 422, c)
		return
	}
	force, _ := params["force"].(bool)

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	asset := FindAsset(tx, c.Param("address"))
	if asset == nil {
		provide.RenderError("asset not found", 404, c)
		return
	}

	if err := asset.RequireOwner(*wallet); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := asset.SetNostrRef(ref, force, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := asset.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *asset.Address, "set_asset_nostr_ref", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(asset, 200, c)
}

func setAssetWalrusRefHandler(c *gin.Context) {
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

	ref, refOk := params["ref"].(string)
	if !refOk {
		provide.RenderError("walrus ref required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	asset := FindAsset(tx, c.Param("address"))
	if asset == nil {
		provide.RenderError("asset not found", 404, c)
		return
	}

	if err := asset.RequireOwner(*wallet); err != nil {
		common.RenderError(err, c)
		return
	}

	asset.SetWalrusRef(ref, common.DefaultClock.Now().Unix())

	if err := asset.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *asset.Address, "set_asset_walrus_ref", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(asset, 200, c)
}

func createSubmissionHandler(c *gin.Context) {
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

	submission := &Submission{}
	err = json.Unmarshal(buf, &submission)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	if submission.Resource == nil {
		provide.RenderError("resource address required", 422, c)
		return
	}
	if Find(tx, *submission.Resource) == nil {
		provide.RenderError("resource not found", 404, c)
		return
	}

	submission.Student = wallet

	if submission.Create(tx, common.DefaultClock.Now().Unix()) {
		if err := store.Append(tx, *submission.Address, "create_submission", buf); err != nil {
			provide.RenderError(err.Error(), 500, c)
			return
		}
		tx.Commit()
		submission.dispatchNotification(natsSubmissionCreatedEvent, nil)
		provide.Render(submission, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = submission.Errors
		provide.Render(obj, 422, c)
	}
}

func listSubmissionsHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()
	query := db.Order("submission_timestamp desc")

	if resourceAddress := c.Query("resource"); resourceAddress != "" {
		query = query.Where("resource = ?", resourceAddress)
	}
	if student := c.Query("student"); student != "" {
		query = query.Where("student = ?", student)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var submissions []*Submission
	provide.Paginate(c, query, &Submission{}).Find(&submissions)
	provide.Render(submissions, 200, c)
}

func submissionDetailsHandler(c *gin.Context) {
	submission := FindSubmission(dbconf.DatabaseConnection(), c.Param("address"))
	if submission == nil {
		provide.RenderError("submission not found", 404, c)
		return
	}
	provide.Render(submission, 200, c)
}

func gradeSubmissionHandler(c *gin.Context) {
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

	grade, gradeOk := params["grade"].(float64)
	if !gradeOk {
		provide.RenderError("grade required", 422, c)
		return
	}
	var feedback *string
	if text, textOk := params["feedback"].(string); textOk {
		feedback = common.StringOrNil(text)
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	submission := FindSubmission(tx, c.Param("address"))
	if submission == nil {
		provide.RenderError("submission not found", 404, c)
		return
	}

	res := Find(tx, *submission.Resource)
	if res == nil {
		provide.RenderError("resource not found", 404, c)
		return
	}

	if !authorizedGrader(tx, res, *wallet) {
		common.RenderError(ErrUnauthorizedGrader, c)
		return
	}

	if err := submission.ApplyGrade(grade, feedback, *wallet, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := submission.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *submission.Address, "grade_submission", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	submission.dispatchNotification(natsSubmissionGradedEvent, map[string]interface{}{
		"grade":     grade,
		"graded_by": wallet,
	})
	provide.Render(submission, 200, c)
}

func acceptSubmissionHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	submission := FindSubmission(tx, c.Param("address"))
	if submission == nil {
		provide.RenderError("submission not found", 404, c)
		return
	}

	res := Find(tx, *submission.Resource)
	if res == nil {
		provide.RenderError("resource not found", 404, c)
		return
	}

	if !authorizedGrader(tx, res, *wallet) {
		common.RenderError(ErrUnauthorizedGrader, c)
		return
	}

	if err := submission.Accept(common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := submission.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *submission.Address, "accept_submission", nil); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	submission.dispatchNotification(natsSubmissionAcceptedEvent, nil)
	provide.Render(submission, 200, c)
}

func returnSubmissionHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	submission := FindSubmission(tx, c.Param("address"))
	if submission == nil {
		provide.RenderError("submission not found", 404, c)
		return
	}

	res := Find(tx, *submission.Resource)
	if res == nil {
		provide.RenderError("resource not found", 404, c)
		return
	}

	if !authorizedGrader(tx, res, *wallet) {
		common.RenderError(ErrUnauthorizedGrader, c)
		return
	}

	submission.ReturnForRevision(common.DefaultClock.Now().Unix())

	if err := submission.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *submission.Address, "return_submission", nil); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	submission.dispatchNotification(natsSubmissionReturnedEvent, nil)
	provide.Render(submission, 200, c)
}

func setSubmissionNostrRefHandler(c *gin.Context) {
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

	ref, refOk := params["ref"].(string)
	if !refOk {
		provide.RenderError("nostr ref required", 422, c)
		return
	}
	force, _ := params["force"].(bool)

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	submission := FindSubmission(tx, c.Param("address"))
	if submission == nil {
		provide.RenderError("submission not found", 404, c)
		return
	}

	// off-chain refs on a submission belong to the student who submitted it
	if *submission.Student != *wallet {
		common.RenderError(ErrUnauthorizedResourceAction, c)
		return
	}

	if err := submission.SetNostrRef(ref, force, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := submission.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *submission.Address, "set_submission_nostr_ref", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(submission, 200, c)
}

func setSubmissionWalrusRefHandler(c *gin.Context) {
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

	ref, refOk := params["ref"].(string)
	if !refOk {
		provide.RenderError("walrus ref required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	submission := FindSubmission(tx, c.Param("address"))
	if submission == nil {
		provide.RenderError("submission not found", 404, c)
		return
	}

	if *submission.Student != *wallet {
		common.RenderError(ErrUnauthorizedResourceAction, c)
		return
	}

	submission.SetWalrusRef(ref, common.DefaultClock.Now().Unix())

	if err := submission.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *submission.Address, "set_submission_walrus_ref", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(submission, 200, c)
}
