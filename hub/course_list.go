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
	"fmt"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/pda"
)

// MaxCoursesPerList caps each course list shard independently
const MaxCoursesPerList = 250

var (
	// ErrTooManyListCourses is returned when the shard is at capacity
	ErrTooManyListCourses = common.CapacityError("too_many_list_courses", fmt.Sprintf("course list shard capacity of %d reached", MaxCoursesPerList))

	// ErrCourseListExists is returned when a shard already exists at the given index
	ErrCourseListExists = common.ConflictError("course_list_exists", "a course list shard already exists at this index")

	// ErrCourseNotListed is returned when removal names a course absent from
	// the shard; consistent with the hub inline set, removal fails rather
	// than no-ops
	ErrCourseNotListed = common.StateError("course_not_listed", "course is not in this course list shard")
)

// CourseList is an overflow shard extending the hub's course acceptance set
// past the inline cap; shards chain into a singly linked list via Next
type CourseList struct {
	provide.Model

	Address *string `sql:"not null" json:"address"`
	Bump    uint8   `sql:"not null" json:"bump"`
	Hub     *string `sql:"not null" json:"hub"`
	Index   uint16  `gorm:"column:shard_index" json:"index"`

	Courses pq.StringArray `sql:"type:text[]" json:"courses"`
	Next    *string        `json:"next"` // address of the next shard in the chain

	CreatedAtSec int64 `gorm:"column:created_at_sec" json:"created_at_sec"`
	UpdatedAtSec int64 `gorm:"column:updated_at_sec" json:"updated_at_sec"`

	Revision uint64 `sql:"not null;default:0" json:"-"`
}

// TableName returns the course list table name
func (CourseList) TableName() string {
	return "course_lists"
}

// Create allocates a shard at the address derived from (hub, index); shard
// creation at an occupied index fails
func (l *CourseList) Create(tx *gorm.DB) bool {
	if l.Hub == nil {
		l.Errors = append(l.Errors, &provide.Error{
			Message: common.StringOrNil("hub address required"),
		})
		return false
	}

	address, bump, err := pda.Derive(pda.KindCourseList, pda.AddressSeed(*l.Hub), pda.IndexSeed(l.Index))
	if err != nil {
		l.Errors = append(l.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}
	l.Address = common.StringOrNil(address)
	l.Bump = bump

	var count int
	tx.Model(&CourseList{}).Where("address = ?", address).Count(&count)
	if count > 0 {
		l.Errors = append(l.Errors, &provide.Error{
			Message: common.StringOrNil(ErrCourseListExists.Message),
		})
		return false
	}

	if l.Courses == nil {
		l.Courses = pq.StringArray{}
	}
	l.UpdatedAtSec = l.CreatedAtSec

	result := tx.Create(&l)
	rowsAffected := result.RowsAffected
	errors := result.GetErrors()
	if len(errors) > 0 {
		for _, err := range errors {
			l.Errors = append(l.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
	}

	success := rowsAffected > 0
	if success {
		common.Log.Debugf("created course list shard %d at address %s", l.Index, address)
	}
	return success
}

// AddCourse inserts a course address into the shard; duplicates are an
// idempotent no-op
func (l *CourseList) AddCourse(courseAddress string, now int64) error {
	if common.ContainsString(l.Courses, courseAddress) {
		return nil
	}
	if len(l.Courses) >= MaxCoursesPerList {
		return ErrTooManyListCourses
	}
	l.Courses = append(l.Courses, courseAddress)
	l.UpdatedAtSec = now
	return nil
}

// RemoveCourse drops a course address from the shard; removal of a missing
// course fails
func (l *CourseList) RemoveCourse(courseAddress string, now int64) error {
	filtered, removed := common.RemoveString(l.Courses, courseAddress)
	if !removed {
		return ErrCourseNotListed
	}
	l.Courses = pq.StringArray(filtered)
	l.UpdatedAtSec = now
	return nil
}

// Empty returns true if the shard holds no course references
func (l *CourseList) Empty() bool {
	return len(l.Courses) == 0
}

// SetNext chains the shard to its successor
func (l *CourseList) SetNext(next *string, now int64) {
	l.Next = next
	l.UpdatedAtSec = now
}

// save commits the mutable shard fields with a compare-and-swap on the
// record revision
func (l *CourseList) save(tx *gorm.DB) error {
	rev := l.Revision
	result := tx.Model(&CourseList{}).Where("id = ? AND revision = ?", l.ID, rev).Updates(map[string]interface{}{
		"courses":        l.Courses,
		"next":           l.Next,
		"updated_at_sec": l.UpdatedAtSec,
		"revision":       rev + 1,
	})
	if errors := result.GetErrors(); len(errors) > 0 {
		return errors[0]
	}
	if result.RowsAffected == 0 {
		return common.ErrRecordModified
	}
	l.Revision = rev + 1
	return nil
}

// FindCourseList resolves a shard by its index under the given hub
func FindCourseList(db *gorm.DB, hubAddress string, index uint16) *CourseList {
	l := &CourseList{}
	db.Where("hub = ? AND shard_index = ?", hubAddress, index).Find(&l)
	if l.Address == nil {
		return nil
	}
	return l
}

// findCourseListPredecessor resolves the shard whose next pointer references
// the given shard address, if any
func findCourseListPredecessor(db *gorm.DB, address string) *CourseList {
	l := &CourseList{}
	db.Where("next = ?", address).Find(&l)
	if l.Address == nil {
		return nil
	}
	return l
}
