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
	"database/sql"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	provide "github.com/provideplatform/provide-go/common"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/pda"
	"github.com/faircredit/registry/provider"
	"github.com/faircredit/registry/store"
)

// InstallAPI registers the course API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.POST("/api/v1/courses", createCourseHandler)
	r.GET("/api/v1/courses", listCoursesHandler)
	r.GET("/api/v1/courses/:address", courseDetailsHandler)
	r.DELETE("/api/v1/courses/:address", closeCourseHandler)
	r.POST("/api/v1/courses/:address/modules", addModuleHandler)
	r.PUT("/api/v1/courses/:address/status", updateCourseStatusHandler)
	r.PUT("/api/v1/courses/:address/nostr", setCourseNostrRefHandler)
	r.PUT("/api/v1/courses/:address/walrus", setCourseWalrusRefHandler)
}

// hubAuthority resolves the hub authority wallet, or nil if the hub has not
// been initialized
func hubAuthority(db *gorm.DB) *string {
	var authority string
	err := db.Table("hubs").Select("authority").Row().Scan(&authority)
	if err != nil {
		return nil
	}
	return common.StringOrNil(authority)
}

// requireCourseProvider loads the course and asserts the caller wallet is the
// course provider's own wallet, rendering the failure if not
func requireCourseProvider(c *gin.Context, tx *gorm.DB, wallet string) *Course {
	crs := Find(tx, c.Param("address"))
	if crs == nil {
		provide.RenderError("course not found", 404, c)
		return nil
	}

	prvdr := provider.Find(tx, *crs.Provider)
	if prvdr == nil {
		provide.RenderError("course provider not found", 404, c)
		return nil
	}

	if *prvdr.Wallet != wallet {
		common.RenderError(ErrUnauthorizedCourseAction, c)
		return nil
	}

	return crs
}

func createCourseHandler(c *gin.Context) {
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

	crs := &Course{}
	err = json.Unmarshal(buf, &crs)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	hubAddress, _, err := pda.HubAddress()
	if err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	prvdr := provider.FindByWallet(tx, hubAddress, *wallet)
	if prvdr == nil {
		common.RenderError(ErrUnauthorizedCourseAction, c)
		return
	}

	crs.Hub = common.StringOrNil(hubAddress)
	crs.Provider = prvdr.Address
	crs.Modules = nil
	crs.ApprovedCredentials = nil
	crs.RejectionReason = nil

	if crs.Create(tx, common.DefaultClock.Now().Unix()) {
		if err := store.Append(tx, *crs.Address, "create_course", buf); err != nil {
			provide.RenderError(err.Error(), 500, c)
			return
		}
		tx.Commit()
		crs.dispatchNotification(natsCourseCreatedEvent, map[string]interface{}{
			"name":     crs.Name,
			"provider": crs.Provider,
		})
		provide.Render(crs, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = crs.Errors
		provide.Render(obj, 422, c)
	}
}

func listCoursesHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()
	query := db.Order("creation_timestamp desc")

	if providerAddress := c.Query("provider"); providerAddress != "" {
		query = query.Where("provider = ?", providerAddress)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var courses []*Course
	provide.Paginate(c, query, &Course{}).Find(&courses)
	provide.Render(courses, 200, c)
}

func courseDetailsHandler(c *gin.Context) {
	crs := Find(dbconf.DatabaseConnection(), c.Param("address"))
	if crs == nil {
		provide.RenderError("course not found", 404, c)
		return
	}
	provide.Render(crs, 200, c)
}

func addModuleHandler(c *gin.Context) {
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

	module := &Module{}
	err = json.Unmarshal(buf, &module)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	crs := requireCourseProvider(c, tx, *wallet)
	if crs == nil {
		return
	}

	var resourceCount int
	tx.Table("resources").Where("address = ?", module.Resource).Count(&resourceCount)
	if resourceCount == 0 {
		provide.RenderError("resource not found", 404, c)
		return
	}

	var workloadMinutes sql.NullInt64
	tx.Table("resources").Select("workload_minutes").Where("address = ?", module.Resource).Row().Scan(&workloadMinutes)

	if err := crs.AddModule(module.Resource, module.Percentage, uint32(workloadMinutes.Int64), common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := crs.Save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *crs.Address, "add_course_module", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	crs.dispatchNotification(natsCourseModuleAddedEvent, map[string]interface{}{
		"resource":   module.Resource,
		"percentage": module.Percentage,
	})
	provide.Render(crs, 200, c)
}

func updateCourseStatusHandler(c *gin.Context) {
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

	status, statusOk := params["status"].(string)
	if !statusOk {
		provide.RenderError("status required", 422, c)
		return
	}

	var rejectionReason *string
	if reason, reasonOk := params["rejection_reason"].(string); reasonOk {
		rejectionReason = common.StringOrNil(reason)
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	crs := Find(tx, c.Param("address"))
	if crs == nil {
		provide.RenderError("course not found", 404, c)
		return
	}

	prvdr := provider.Find(tx, *crs.Provider)
	if prvdr == nil {
		provide.RenderError("course provider not found", 404, c)
		return
	}

	// review outcomes are reserved to the hub authority; the provider may
	// submit for review or archive
	switch status {
	case StatusVerified, StatusRejected:
		authority := hubAuthority(tx)
		if authority == nil || *authority != *wallet {
			common.RenderError(ErrUnauthorizedCourseAction, c)
			return
		}
	default:
		if *prvdr.Wallet != *wallet {
			common.RenderError(ErrUnauthorizedCourseAction, c)
			return
		}
	}

	previousStatus := *crs.Status
	if err := crs.UpdateStatus(status, rejectionReason, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := crs.Save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *crs.Address, "update_course_status", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	crs.dispatchNotification(natsCourseStatusUpdatedEvent, map[string]interface{}{
		"previous_status":  previousStatus,
		"status":           status,
		"rejection_reason": rejectionReason,
	})
	provide.Render(crs, 200, c)
}

func setCourseNostrRefHandler(c *gin.Context) {
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

	crs := requireCourseProvider(c, tx, *wallet)
	if crs == nil {
		return
	}

	if err := crs.SetNostrRef(ref, force, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := crs.Save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *crs.Address, "set_course_nostr_ref", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(crs, 200, c)
}

func setCourseWalrusRefHandler(c *gin.Context) {
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

	crs := requireCourseProvider(c, tx, *wallet)
	if crs == nil {
		return
	}

	crs.SetWalrusRef(ref, common.DefaultClock.Now().Unix())

	if err := crs.Save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *crs.Address, "set_course_walrus_ref", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(crs, 200, c)
}

func closeCourseHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	crs := requireCourseProvider(c, tx, *wallet)
	if crs == nil {
		return
	}

	address := *crs.Address
	result := tx.Delete(&crs)
	if errors := result.GetErrors(); len(errors) > 0 {
		provide.RenderError(errors[0].Error(), 500, c)
		return
	}

	if err := store.Append(tx, address, "close_course", nil); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()

	// the closed event triggers best-effort removal from the hub acceptance
	// set; a course that was never accepted is tolerated
	crs.dispatchNotification(natsCourseClosedEvent, nil)
	provide.Render(nil, 204, c)
}
