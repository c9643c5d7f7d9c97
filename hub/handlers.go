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
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	provide "github.com/provideplatform/provide-go/common"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/course"
	"github.com/faircredit/registry/provider"
	"github.com/faircredit/registry/store"
)

// InstallAPI registers the hub API handlers with gin
func InstallAPI(r *gin.Engine) {
	r.POST("/api/v1/hub", initializeHubHandler)
	r.GET("/api/v1/hub", hubDetailsHandler)
	r.DELETE("/api/v1/hub", closeHubHandler)
	r.PUT("/api/v1/hub/config", updateHubConfigHandler)
	r.POST("/api/v1/hub/authority", transferHubAuthorityHandler)

	r.POST("/api/v1/hub/providers", acceptProviderHandler)
	r.DELETE("/api/v1/hub/providers/:wallet", removeAcceptedProviderHandler)

	r.POST("/api/v1/hub/courses", acceptCourseHandler)
	r.DELETE("/api/v1/hub/courses/:address", removeAcceptedCourseHandler)

	r.POST("/api/v1/hub/course_lists", createCourseListHandler)
	r.GET("/api/v1/hub/course_lists", listCourseListsHandler)
	r.GET("/api/v1/hub/course_lists/:index", courseListDetailsHandler)
	r.PUT("/api/v1/hub/course_lists/:index/next", setCourseListNextHandler)
	r.POST("/api/v1/hub/course_lists/:index/courses", addCourseToListHandler)
	r.DELETE("/api/v1/hub/course_lists/:index/courses/:address", removeCourseFromListHandler)
}

// requireHubAuthority loads the hub and asserts the given wallet is its
// authority, rendering the failure if not
func requireHubAuthority(c *gin.Context, tx *gorm.DB, wallet string) *Hub {
	h := Current(tx)
	if h == nil {
		provide.RenderError("hub has not been initialized", 404, c)
		return nil
	}
	if err := h.RequireAuthority(wallet); err != nil {
		common.RenderError(err, c)
		return nil
	}
	return h
}

func initializeHubHandler(c *gin.Context) {
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

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	if Current(tx) != nil {
		common.RenderError(ErrHubAlreadyInitialized, c)
		return
	}

	h := &Hub{
		Authority:    wallet,
		CreatedAtSec: common.DefaultClock.Now().Unix(),
	}

	if h.Create(tx) {
		if err := store.Append(tx, *h.Address, "initialize_hub", buf); err != nil {
			provide.RenderError(err.Error(), 500, c)
			return
		}
		tx.Commit()
		h.dispatchNotification(natsHubInitializedEvent, map[string]interface{}{
			"authority": h.Authority,
		})
		provide.Render(h, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = h.Errors
		provide.Render(obj, 422, c)
	}
}

func hubDetailsHandler(c *gin.Context) {
	h := Current(dbconf.DatabaseConnection())
	if h == nil {
		provide.RenderError("hub has not been initialized", 404, c)
		return
	}
	provide.Render(h, 200, c)
}

func closeHubHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	address := *h.Address
	result := tx.Delete(&h)
	if errors := result.GetErrors(); len(errors) > 0 {
		provide.RenderError(errors[0].Error(), 500, c)
		return
	}

	if err := store.Append(tx, address, "close_hub", nil); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	h.dispatchNotification(natsHubClosedEvent, nil)
	provide.Render(nil, 204, c)
}

func updateHubConfigHandler(c *gin.Context) {
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

	cfg := DefaultConfig()
	err = json.Unmarshal(buf, &cfg)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	h.UpdateConfig(cfg, common.DefaultClock.Now().Unix())

	if err := h.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *h.Address, "update_hub_config", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	h.dispatchNotification(natsHubConfigUpdatedEvent, map[string]interface{}{
		"config": h.Config,
	})
	provide.Render(h, 200, c)
}

func transferHubAuthorityHandler(c *gin.Context) {
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

	newAuthority, authorityOk := params["authority"].(string)
	if !authorityOk {
		provide.RenderError("new authority wallet address required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	previousAuthority := *h.Authority
	if err := h.TransferAuthority(newAuthority, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := h.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *h.Address, "transfer_hub_authority", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	h.dispatchNotification(natsHubAuthorityTransferredEvent, map[string]interface{}{
		"previous_authority": previousAuthority,
		"authority":          newAuthority,
	})
	provide.Render(h, 200, c)
}

func acceptProviderHandler(c *gin.Context) {
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

	providerAddress, providerOk := params["provider"].(string)
	if !providerOk {
		provide.RenderError("provider address required", 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	prvdr := provider.Find(tx, providerAddress)
	if prvdr == nil {
		provide.RenderError("provider not found", 404, c)
		return
	}

	if err := h.AddProvider(*prvdr.Wallet, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := h.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *h.Address, "add_accepted_provider", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	h.dispatchNotification(natsHubProviderAcceptedEvent, map[string]interface{}{
		"provider": prvdr.Address,
		"wallet":   prvdr.Wallet,
	})
	provide.Render(h, 200, c)
}

func removeAcceptedProviderHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	removed := c.Param("wallet")
	h.RemoveProvider(removed, common.DefaultClock.Now().Unix())

	if err := h.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *h.Address, "remove_accepted_provider", []byte(removed)); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	h.dispatchNotification(natsHubProviderRemovedEvent, map[string]interface{}{
		"wallet": removed,
	})
	provide.Render(nil, 204, c)
}

func acceptCourseHandler(c *gin.Context) {
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

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	crs := course.Find(tx, courseAddress)
	if crs == nil {
		provide.RenderError("course not found", 404, c)
		return
	}

	prvdr := provider.Find(tx, *crs.Provider)
	if prvdr == nil {
		provide.RenderError("course provider not found", 404, c)
		return
	}

	now := common.DefaultClock.Now().Unix()
	if err := h.AddCourse(*crs.Address, *prvdr.Wallet, now); err != nil {
		common.RenderError(err, c)
		return
	}

	// acceptance verifies the course as a side effect
	if err := crs.Accept(tx, now); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := h.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *h.Address, "add_accepted_course", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	h.dispatchNotification(natsHubCourseAcceptedEvent, map[string]interface{}{
		"course":   crs.Address,
		"provider": crs.Provider,
	})
	provide.Render(h, 200, c)
}

func removeAcceptedCourseHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	removed := c.Param("address")
	if err := h.RemoveCourse(removed, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := h.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *h.Address, "remove_accepted_course", []byte(removed)); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	h.dispatchNotification(natsHubCourseRemovedEvent, map[string]interface{}{
		"course": removed,
	})
	provide.Render(nil, 204, c)
}

func createCourseListHandler(c *gin.Context) {
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

	list := &CourseList{}
	err = json.Unmarshal(buf, &list)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	list.Hub = h.Address
	list.Next = nil
	list.Courses = nil
	list.CreatedAtSec = common.DefaultClock.Now().Unix()

	if list.Create(tx) {
		if err := store.Append(tx, *list.Address, "create_course_list", buf); err != nil {
			provide.RenderError(err.Error(), 500, c)
			return
		}
		tx.Commit()
		h.dispatchNotification(natsHubCourseListCreatedEvent, map[string]interface{}{
			"course_list": list.Address,
			"index":       list.Index,
		})
		provide.Render(list, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = list.Errors
		provide.Render(obj, 422, c)
	}
}

func listCourseListsHandler(c *gin.Context) {
	db := dbconf.DatabaseConnection()
	query := db.Order("shard_index asc")

	var lists []*CourseList
	provide.Paginate(c, query, &CourseList{}).Find(&lists)
	provide.Render(lists, 200, c)
}

// parseCourseListIndex parses the :index path param as a shard index
func parseCourseListIndex(c *gin.Context) (uint16, bool) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 16)
	if err != nil {
		provide.RenderError("invalid course list index", 400, c)
		return 0, false
	}
	return uint16(index), true
}

func courseListDetailsHandler(c *gin.Context) {
	index, indexOk := parseCourseListIndex(c)
	if !indexOk {
		return
	}

	db := dbconf.DatabaseConnection()
	h := Current(db)
	if h == nil {
		provide.RenderError("hub has not been initialized", 404, c)
		return
	}

	list := FindCourseList(db, *h.Address, index)
	if list == nil {
		provide.RenderError("course list not found", 404, c)
		return
	}
	provide.Render(list, 200, c)
}

func setCourseListNextHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	index, indexOk := parseCourseListIndex(c)
	if !indexOk {
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

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	list := FindCourseList(tx, *h.Address, index)
	if list == nil {
		provide.RenderError("course list not found", 404, c)
		return
	}

	var next *string
	if nextAddress, nextOk := params["next"].(string); nextOk {
		successor := &CourseList{}
		tx.Where("hub = ? AND address = ?", *h.Address, nextAddress).Find(&successor)
		if successor.Address == nil {
			provide.RenderError("next course list not found", 404, c)
			return
		}
		next = successor.Address
	}

	list.SetNext(next, common.DefaultClock.Now().Unix())

	if err := list.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *list.Address, "set_course_list_next", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(list, 200, c)
}

func addCourseToListHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	index, indexOk := parseCourseListIndex(c)
	if !indexOk {
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

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	list := FindCourseList(tx, *h.Address, index)
	if list == nil {
		provide.RenderError("course list not found", 404, c)
		return
	}

	crs := course.Find(tx, courseAddress)
	if crs == nil {
		provide.RenderError("course not found", 404, c)
		return
	}

	if err := list.AddCourse(*crs.Address, common.DefaultClock.Now().Unix()); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := list.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := store.Append(tx, *list.Address, "add_course_to_list", buf); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(list, 200, c)
}

func removeCourseFromListHandler(c *gin.Context) {
	wallet := common.AuthorizedWallet(c)
	if wallet == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	index, indexOk := parseCourseListIndex(c)
	if !indexOk {
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := requireHubAuthority(c, tx, *wallet)
	if h == nil {
		return
	}

	list := FindCourseList(tx, *h.Address, index)
	if list == nil {
		provide.RenderError("course list not found", 404, c)
		return
	}

	removed := c.Param("address")
	now := common.DefaultClock.Now().Unix()
	if err := list.RemoveCourse(removed, now); err != nil {
		common.RenderError(err, c)
		return
	}

	if err := list.save(tx); err != nil {
		common.RenderError(err, c)
		return
	}

	// optionally unlink an emptied shard from its predecessor's chain
	if list.Empty() && c.Query("unlink_if_empty") == "true" {
		if predecessor := findCourseListPredecessor(tx, *list.Address); predecessor != nil {
			predecessor.SetNext(list.Next, now)
			if err := predecessor.save(tx); err != nil {
				common.RenderError(err, c)
				return
			}
		}
	}

	if err := store.Append(tx, *list.Address, "remove_course_from_list", []byte(removed)); err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	tx.Commit()
	provide.Render(list, 200, c)
}
