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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faircredit/registry/common"
)

func testCourseList() *CourseList {
	return &CourseList{
		Address:      common.StringOrNil("shard-address"),
		Hub:          common.StringOrNil("hub-address"),
		Index:        0,
		CreatedAtSec: 1700000000,
		UpdatedAtSec: 1700000000,
	}
}

func TestCourseListAddCourseIdempotent(t *testing.T) {
	l := testCourseList()

	assert.NoError(t, l.AddCourse("course-address", 1700000100))
	assert.Len(t, l.Courses, 1)

	assert.NoError(t, l.AddCourse("course-address", 1700000200))
	assert.Len(t, l.Courses, 1)
	assert.Equal(t, int64(1700000100), l.UpdatedAtSec)
}

func TestCourseListCapacity(t *testing.T) {
	l := testCourseList()
	for i := 0; i < MaxCoursesPerList; i++ {
		assert.NoError(t, l.AddCourse(fmt.Sprintf("course-%d", i), 1700000100))
	}

	err := l.AddCourse("one-too-many", 1700000200)
	assert.Equal(t, ErrTooManyListCourses, err)
	assert.Len(t, l.Courses, MaxCoursesPerList)
}

func TestCourseListRemoveCourseMissingFails(t *testing.T) {
	l := testCourseList()
	assert.NoError(t, l.AddCourse("course-address", 1700000100))

	err := l.RemoveCourse("never-listed", 1700000200)
	assert.Equal(t, ErrCourseNotListed, err)
	assert.Len(t, l.Courses, 1)

	assert.NoError(t, l.RemoveCourse("course-address", 1700000300))
	assert.True(t, l.Empty())
}

func TestCourseListSetNext(t *testing.T) {
	l := testCourseList()
	assert.Nil(t, l.Next)

	l.SetNext(common.StringOrNil("next-shard"), 1700000100)
	assert.Equal(t, "next-shard", *l.Next)

	// unlinking an emptied shard splices its successor into the chain
	l.SetNext(nil, 1700000200)
	assert.Nil(t, l.Next)
	assert.Equal(t, int64(1700000200), l.UpdatedAtSec)
}
