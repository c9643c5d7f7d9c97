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

package activity

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	provide "github.com/provideplatform/provide-go/common"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/provider"
	"github.com/faircredit/registry/store"
)

// InstallAPI registers the activity API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.POST("/api/v1/activities", createActivityHandler)
	r.GET("/api/v1/activities", listActivitiesHandler)
	r.GET("/api/v1/activities/:address", activityDetailsHandler)
	r.POST("/api/v1/activities/:address/feedback", addActivityFeedbackHandler)
	r.POST("/api/v1/activities/:address/grade", addActivityGradeHandler)
	r.POST("/api/v1/activities/:address/attendance", addActivityAttendanceHandler)
	r.POST("/api/v1/activities/:address/archive", archiveActivityHandler)
}

// authorizedAssessor returns true if the wallet may attach feedback or a
// grade to the activity: the provider's own wallet or one of its endorsers
func authorizedAssessor(tx *gorm.DB, a *Activity, wallet string) bool {
	prvdr := provider.Find(tx, *a.Provider)
	if prvdr == nil {
		return false
	}
	if prvdr.Wallet != nil && *prvdr.Wallet == wallet {
		return true
	}
	return common.ContainsString(prvdr.Endorsers, wallet)
}

func createActivityHandler(c *gin.Context) {
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

	act := &Activity{}
	err = json.Unmarshal(buf, &act)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	if act.Provider == nil {
		provide.RenderError("provider address required", 422, c)
		return
	}
	if provider.Find(tx, *act.Provider) == nil {
		provide.RenderError("provider not found", 404, c)
		return
	}

	act.Student = wallet

	if act.Create(tx, common.DefaultClock.Now().Unix()) {
		if err := store.Append(tx, *act.Address, "create_activity", buf); err != nil {
			provide.RenderError(err.Error(), 500, c)
			return
		}
		tx.Commit()
		act.dispatchNotification(natsActivityCreatedEvent, map[string]interface{}{
			"kind": act.Kind,
		})
		provide.Render(act, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = act.Errors
		provide.Render(obj, 422, c)
	}
}

func listActivitiesHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()
	query := db.Order("creation_timestamp desc")

	if providerAddress := c.Query("provider"); providerAddress != "" {
		query = query.Where("provider = ?", providerAddress)
	}
	if student := c.Query("student"); student != "" {
		query = query.Where("student = ?", student)
	}
	if kind := c.Query("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var activities []*Activity
	provide.Paginate(c, query, &Activity{}).Find(&activities)
	provide.Render(activities, 200, c)
}

func activityDetailsHandler(c *gin.Context) {
	act := Find(dbconf.DatabaseConnection(), c.Param("address"))
	if act == nil {
		provide.RenderError("activity not found", 404, c)
		return
	}
	provide.Render(act, 200, c)
}

func addActivityFeedbackHandler(c *gin.Context) {
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
		Feedback *string  `json:"feedback"`
		Assets   []string `json:"assets"`
	}{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	if params.Feedback == nil {
		provide.RenderError("feedback required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	act := Find(tx, c.Param("address"))
	if act == nil {
		provide.RenderError("activity not found", 404, c)
		return
	}

	if !authorizedAssessor(tx, act, *wallet) {
		common.RenderError(ErrUnauthorizedActivityAction, c)
		return
	}

	if err := act.AddFeedback(*params.Feedback, params.Assets, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := act.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *act.Address, "add_activity_feedback", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(act, 200, c)
}

func addActivityGradeHandler(c *gin.Context) {
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
		Grade    *float64 `json:"grade"`
		Evidence []string `json:"evidence"`
	}{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	if params.Grade == nil {
		provide.RenderError("grade required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	act := Find(tx, c.Param("address"))
	if act == nil {
		provide.RenderError("activity not found", 404, c)
		return
	}

	if !authorizedAssessor(tx, act, *wallet) {
		common.RenderError(ErrUnauthorizedActivityAction, c)
		return
	}

	if err := act.AddGrade(*params.Grade, *wallet, params.Evidence, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := act.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *act.Address, "add_activity_grade", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	act.dispatchNotification(natsActivityGradedEvent, map[string]interface{}{
		"grade":     params.Grade,
		"graded_by": wallet,
	})
	provide.Render(act, 200, c)
}

func addActivityAttendanceHandler(c *gin.Context) {
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
		Assets []string `json:"assets"`
	}{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	act := Find(tx, c.Param("address"))
	if act == nil {
		provide.RenderError("activity not found", 404, c)
		return
	}

	// attendance proof is attached by the student who attended
	if *act.Student != *wallet {
		common.RenderError(ErrUnauthorizedActivityAction, c)
		return
	}

	if err := act.AddAttendance(params.Assets, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := act.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *act.Address, "add_activity_attendance", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(act, 200, c)
}

func archiveActivityHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	act := Find(tx, c.Param("address"))
	if act == nil {
		provide.RenderError("activity not found", 404, c)
		return
	}

	if *act.Student != *wallet && !authorizedAssessor(tx, act, *wallet) {
		common.RenderError(ErrUnauthorizedActivityAction, c)
		return
	}

	if err := act.Archive(common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := act.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *act.Address, "archive_activity", nil); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	act.dispatchNotification(natsActivityArchivedEvent, nil)
	provide.Render(act, 200, c)
}
